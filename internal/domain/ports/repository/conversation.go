package repository

import (
	"context"

	"companion-ai-engine/internal/domain/model"
)

// StartSpec describes a conversation to create. ID may be empty, in which
// case the store assigns one.
type StartSpec struct {
	ID       string
	UserID   string
	Type     model.ConversationType
	AIRules  string
	Metadata map[string]string
}

// ConversationStore owns the lifecycle of TTL-bounded conversation state.
// Every mutation is a read-modify-write on a single key that resets the
// entry's TTL (sliding expiry). Concurrent writers on the same id are
// last-writer-wins; a conversation is expected to have one logical writer
// in flight at a time.
type ConversationStore interface {
	Start(ctx context.Context, spec StartSpec) (*model.Conversation, error)

	// AppendMessage loads the conversation, verifies it exists and is
	// active, appends, bumps LastActivity and rewrites with a fresh TTL.
	AppendMessage(ctx context.Context, id string, msg model.ChatMessage) (*model.Conversation, error)

	// Get returns the conversation or domain.ErrConversationNotFound.
	// An entry whose LastActivity is past the window is deleted on read.
	Get(ctx context.Context, id string) (*model.Conversation, error)

	// End computes a summary, deletes the key and cascades deletion of
	// audit rows tied to the conversation (best-effort).
	End(ctx context.Context, id string) (*model.ConversationSummary, error)

	// Sweep deletes orphaned entries (keys carrying no TTL marker) and
	// returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}
