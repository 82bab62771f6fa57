package repository

import (
	"context"
	"time"

	"companion-ai-engine/internal/domain/model"
)

// EnqueueSpec is what a caller provides to schedule a generation job.
type EnqueueSpec struct {
	Type           model.JobType
	ConversationID string
	UserID         string
	Payload        model.JobPayload
	Priority       model.JobPriority
	MaxRetries     int
}

// JobQueue is a priority-ordered, exclusive-claim work queue.
type JobQueue interface {
	// Enqueue inserts a new pending job and returns it with its assigned id.
	Enqueue(ctx context.Context, spec EnqueueSpec) (*model.Job, error)

	// ClaimNext atomically moves the highest-priority pending job into the
	// in-flight collection and returns it. No two concurrent callers can
	// claim the same job. Returns domain.ErrNotFound when nothing is pending.
	ClaimNext(ctx context.Context) (*model.Job, error)

	// MarkCompleted moves an in-flight job to the completed collection.
	// A job no longer in flight is a warning-level no-op.
	MarkCompleted(ctx context.Context, jobID, result string) error

	// MarkFailed either re-enqueues the job at a decayed priority or, once
	// the retry budget is spent, moves it to the terminal failed collection.
	MarkFailed(ctx context.Context, jobID, errMsg string) error

	// Stats counts jobs per collection without mutating anything.
	Stats(ctx context.Context) (*model.QueueStats, error)

	// Position reports a pending job's rank in claim order (0 = next).
	Position(ctx context.Context, jobID string) (int64, error)

	// SweepOld deletes completed/failed entries older than maxAge and
	// returns how many were removed.
	SweepOld(ctx context.Context, maxAge time.Duration) (int64, error)
}
