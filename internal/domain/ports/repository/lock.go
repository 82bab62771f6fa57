package repository

import (
	"context"
	"time"
)

// ConversationLocker hands out short-lived per-conversation write locks.
// The store itself accepts last-writer-wins; the append path takes a lock
// around its read-modify-write to keep message order stable under
// concurrent callers.
type ConversationLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
