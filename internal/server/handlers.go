package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/supportdesk-rag/server/internal/agent/graph"
	errx "github.com/supportdesk-rag/server/internal/core/error"
	logx "github.com/supportdesk-rag/server/pkg/logger"
)

const (
	defaultUserID         = "test0001"
	defaultConversationID = "convtest0001"
	maxHistoryItems       = 100
	timestampLayout       = "2006-01-02 15:04:05"
)

// MessageItem is one history entry of a chat request.
type MessageItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of /api/v1/chat and /api/v1/streamchat.
type ChatRequest struct {
	UserID         string        `json:"user_id"`
	ConversationID string        `json:"conversation_id"`
	History        []MessageItem `json:"history"`
}

// ChatResponse is the non-streaming answer envelope.
type ChatResponse struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Timestamp      string `json:"timestamp"`
	Response       string `json:"response"`
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("<h1>Service: RAG Agents</h1>"))
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, history, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.agent.Run(r.Context(), history, graph.Metadata{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", req.ConversationID).Msg("chat run failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Timestamp:      time.Now().Format(timestampLayout),
		Response:       result.FinalAnswer(),
	})
}

func (s *Server) handleStreamChat(w http.ResponseWriter, r *http.Request) {
	req, history, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported by connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := &sseSink{w: w, flusher: flusher}
	_, err = s.agent.Stream(r.Context(), history, graph.Metadata{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
	}, sink)
	if err != nil {
		// Headers are already out; all that remains is logging and closing.
		logx.Error().Err(err).Str("conversation_id", req.ConversationID).Msg("stream run failed")
	}
}

// decodeChatRequest parses and validates the shared chat body, filling the
// identity defaults and converting the history to schema messages.
func decodeChatRequest(r *http.Request) (*ChatRequest, []*schema.Message, error) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, nil, errx.Validation(err, "invalid request body")
	}

	if req.UserID == "" {
		req.UserID = defaultUserID
	}
	if req.ConversationID == "" {
		req.ConversationID = defaultConversationID
	}
	if len(req.ConversationID) < 5 {
		return nil, nil, errx.Validation(fmt.Errorf("conversation_id too short"), "conversation_id must be at least 5 characters")
	}
	if len(req.History) == 0 {
		return nil, nil, errx.Validation(fmt.Errorf("empty history"), "history must contain at least 1 message")
	}
	if len(req.History) > maxHistoryItems {
		return nil, nil, errx.Validation(fmt.Errorf("history has %d items", len(req.History)), "history must contain at most 100 messages")
	}

	history := make([]*schema.Message, 0, len(req.History))
	for i, item := range req.History {
		msg, err := toSchemaMessage(item)
		if err != nil {
			return nil, nil, errx.Validation(err, fmt.Sprintf("history[%d]: unknown role %q", i, item.Role))
		}
		history = append(history, msg)
	}
	return &req, history, nil
}

func toSchemaMessage(item MessageItem) (*schema.Message, error) {
	switch item.Role {
	case "user":
		return schema.UserMessage(item.Content), nil
	case "assistant":
		return &schema.Message{Role: schema.Assistant, Content: item.Content}, nil
	case "system":
		return schema.SystemMessage(item.Content), nil
	}
	return nil, fmt.Errorf("unknown role %q", item.Role)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logx.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errx.StatusOf(err), map[string]string{"error": errx.MessageOf(err)})
}
