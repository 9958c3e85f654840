package model

import (
	"github.com/cloudwego/eino/schema"
)

// Classification is the guardrail verdict over the latest user turn.
type Classification string

const (
	ClassificationAccepted Classification = "accepted"
	ClassificationRejected Classification = "rejected"
)

// Valid reports whether the value is one of the two allowed verdicts.
func (c Classification) Valid() bool {
	return c == ClassificationAccepted || c == ClassificationRejected
}

// ConversationState is the unit of work flowing through one graph run.
// It is created fresh per invocation, mutated only by graph nodes in strict
// sequence, and discarded after the terminal node returns. It is never shared
// across concurrent runs.
type ConversationState struct {
	UserID         string
	ConversationID string

	// Messages is append-only within a run. Ordering is the sole source of
	// conversational context given to the model.
	Messages []*schema.Message

	// Classification is set once by the guardrail node per run.
	Classification Classification
	// RejectReason is set only when Classification is rejected.
	RejectReason string

	// RetrievedIDs accumulates document content ids across every tool call in
	// the run. No duplicates, insertion order preserved except when cleared.
	RetrievedIDs []string

	seen map[string]struct{}
}

// NewConversationState builds the initial state for a run from the (already
// truncated) inbound history.
func NewConversationState(userID, conversationID string, history []*schema.Message) *ConversationState {
	return &ConversationState{
		UserID:         userID,
		ConversationID: conversationID,
		Messages:       history,
		seen:           make(map[string]struct{}),
	}
}

// LastMessage returns the most recent message, nil for an empty state.
func (s *ConversationState) LastMessage() *schema.Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// Delta is a command-style node output: the state changes a node wants merged
// after it returns. Merge rules are per field: messages append, retrieved ids
// union preserving first-seen order, scalar fields overwrite when set.
type Delta struct {
	Messages     []*schema.Message
	RetrievedIDs []string
	// ClearRetrievedIDs resets the accumulated ids to empty before any merge
	// from this delta, so a caller can restart accumulation mid-run.
	ClearRetrievedIDs bool
	Classification    Classification
	RejectReason      string
}

// Apply merges a delta into the state.
func (s *ConversationState) Apply(d Delta) {
	if d.ClearRetrievedIDs {
		s.RetrievedIDs = nil
		s.seen = make(map[string]struct{})
	}
	s.mergeIDs(d.RetrievedIDs)
	s.Messages = append(s.Messages, d.Messages...)
	if d.Classification != "" {
		s.Classification = d.Classification
	}
	if d.RejectReason != "" {
		s.RejectReason = d.RejectReason
	}
}

func (s *ConversationState) mergeIDs(ids []string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{}, len(s.RetrievedIDs))
		for _, id := range s.RetrievedIDs {
			s.seen[id] = struct{}{}
		}
	}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := s.seen[id]; dup {
			continue
		}
		s.seen[id] = struct{}{}
		s.RetrievedIDs = append(s.RetrievedIDs, id)
	}
}

// TruncateHistory keeps the most recent max messages of a history.
func TruncateHistory(history []*schema.Message, max int) []*schema.Message {
	if max <= 0 || len(history) <= max {
		return history
	}
	return history[len(history)-max:]
}
