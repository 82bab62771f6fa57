package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"companion-ai-engine/internal/domain/model"
	"companion-ai-engine/internal/domain/ports/repository"
)

var _ repository.AuditLogRepository = (*auditLogRepo)(nil)

// auditLogRepo persists generated exchanges to the message_records table.
// Redis holds the live conversation; this table is the durable trail that
// survives conversation expiry.
type auditLogRepo struct {
	pool *pgxpool.Pool
}

func NewAuditLogRepo(pool *pgxpool.Pool) repository.AuditLogRepository {
	return &auditLogRepo{pool: pool}
}

func (r *auditLogRepo) Save(ctx context.Context, rec *model.AuditRecord) error {
	const q = `
INSERT INTO message_records (id, conversation_id, user_id, content, message_type, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, q, id, rec.ConversationID, rec.UserID, rec.Text, string(rec.MessageType), createdAt)
	return err
}

func (r *auditLogRepo) DeleteByConversation(ctx context.Context, conversationID string) (int64, error) {
	const q = `DELETE FROM message_records WHERE conversation_id = $1`
	tag, err := r.pool.Exec(ctx, q, conversationID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *auditLogRepo) PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	const q = `DELETE FROM message_records WHERE created_at < $1`
	tag, err := r.pool.Exec(ctx, q, time.Now().UTC().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
