package repository

import (
	"context"
	"time"

	"companion-ai-engine/internal/domain/model"
)

// -----------------------------
// Audit records
// -----------------------------

// AuditLogRepository persists one row per generated or received message for
// audit and notification purposes. Writes are fire-and-log from the worker's
// point of view: a failed audit write never fails the job.
type AuditLogRepository interface {
	Save(ctx context.Context, rec *model.AuditRecord) error
	// DeleteByConversation removes all rows tied to a conversation id.
	DeleteByConversation(ctx context.Context, conversationID string) (int64, error)
	// PurgeOlderThan deletes rows older than maxAge and reports the count.
	PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int64, error)
}
