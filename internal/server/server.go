package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/supportdesk-rag/server/internal/agent/graph"
	logx "github.com/supportdesk-rag/server/pkg/logger"
)

// Config holds server configuration.
type Config struct {
	Host string `envconfig:"SERVER_HOST" default:"localhost"`
	Port int    `envconfig:"SERVER_PORT" default:"8000"`
}

// Runner is the serving-path slice of the agent graph.
type Runner interface {
	Run(ctx context.Context, history []*schema.Message, meta graph.Metadata) (*graph.Result, error)
	Stream(ctx context.Context, history []*schema.Message, meta graph.Metadata, sink graph.EventSink) (*graph.Result, error)
}

// Server exposes the agent over HTTP.
type Server struct {
	cfg        Config
	agent      Runner
	router     chi.Router
	httpServer *http.Server
}

// New creates the server and wires its routes.
func New(cfg Config, agent Runner) *Server {
	s := &Server{cfg: cfg, agent: agent}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Cache-Control", "Content-Type", "Connection"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleHome)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/streamchat", s.handleStreamChat)
	})

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured address and blocks until the
// listener closes.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logx.Info().Str("addr", addr).Msg("server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
