package graph

import (
	"context"
	"errors"
	"fmt"
	"io"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EventType discriminates the two streaming event families.
type EventType string

const (
	// EventMessages carries incremental assistant text (string payload).
	EventMessages EventType = "messages"
	// EventCustom carries tool/progress events (object payload).
	EventCustom EventType = "custom"
)

// Event is one streamed output unit.
type Event struct {
	Type EventType
	Data any
}

// EventSink receives streamed events. Send must honor ctx cancellation; a
// Send error stops the run without corrupting per-run state.
type EventSink interface {
	Send(ctx context.Context, ev Event) error
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(ctx context.Context, ev Event) error

func (f EventSinkFunc) Send(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// generateStreaming drives one chat-model call in streaming mode, forwarding
// content chunks to the sink and concatenating them into the full message the
// graph keeps in state.
func (g *Graph) generateStreaming(ctx context.Context, m einomodel.BaseChatModel, in []*schema.Message, sink EventSink) (*schema.Message, error) {
	sr, err := m.Stream(ctx, in)
	if err != nil {
		return nil, err
	}
	defer sr.Close()

	var chunks []*schema.Message
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)

		if chunk != nil && chunk.Content != "" {
			if err := sink.Send(ctx, Event{Type: EventMessages, Data: chunk.Content}); err != nil {
				return nil, err
			}
		}
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("empty stream from chat model")
	}
	return schema.ConcatMessages(chunks)
}
