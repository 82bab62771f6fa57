// File: internal/usecase/job_uc.go
package usecase

import (
	"context"
	"time"

	"companion-ai-engine/internal/domain"
	"companion-ai-engine/internal/domain/model"
	"companion-ai-engine/internal/domain/ports/repository"
)

var _ JobUseCase = (*jobUC)(nil)

// EnqueueReceipt is what a caller gets back after scheduling a job.
type EnqueueReceipt struct {
	Job           *model.Job    `json:"job"`
	QueuePosition int64         `json:"queuePosition"`
	EstimatedWait time.Duration `json:"estimatedWait"`
}

// StatsReport extends raw queue counts with a wait estimate for new work.
type StatsReport struct {
	model.QueueStats
	EstimatedWait time.Duration `json:"estimatedWait"`
}

type CleanupReport struct {
	JobsRemoved    int64 `json:"jobsRemoved"`
	RecordsRemoved int64 `json:"recordsRemoved"`
}

type JobUseCase interface {
	Enqueue(ctx context.Context, spec repository.EnqueueSpec) (*EnqueueReceipt, error)
	Stats(ctx context.Context) (*StatsReport, error)
	// Cleanup removes terminal jobs and audit rows older than maxAgeHours.
	Cleanup(ctx context.Context, maxAgeHours int) (*CleanupReport, error)
}

type jobUC struct {
	queue   repository.JobQueue
	audit   repository.AuditLogRepository
	workers int
	perJob  time.Duration
}

const (
	// Cleanup horizon bounds, in hours.
	minCleanupAge = 1
	maxCleanupAge = 168

	defaultPerJob = 3 * time.Second
)

func NewJobUseCase(queue repository.JobQueue, audit repository.AuditLogRepository, workers int, perJob time.Duration) *jobUC {
	if workers < 1 {
		workers = 1
	}
	if perJob <= 0 {
		perJob = defaultPerJob
	}
	return &jobUC{queue: queue, audit: audit, workers: workers, perJob: perJob}
}

func (j *jobUC) Enqueue(ctx context.Context, spec repository.EnqueueSpec) (*EnqueueReceipt, error) {
	job, err := j.queue.Enqueue(ctx, spec)
	if err != nil {
		return nil, err
	}
	pos, err := j.queue.Position(ctx, job.ID)
	if err != nil {
		// The job may already have been claimed between the two calls.
		pos = 0
	}
	return &EnqueueReceipt{
		Job:           job,
		QueuePosition: pos,
		EstimatedWait: j.estimate(pos + 1),
	}, nil
}

func (j *jobUC) Stats(ctx context.Context) (*StatsReport, error) {
	stats, err := j.queue.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsReport{
		QueueStats:    *stats,
		EstimatedWait: j.estimate(stats.Pending + 1),
	}, nil
}

func (j *jobUC) Cleanup(ctx context.Context, maxAgeHours int) (*CleanupReport, error) {
	if maxAgeHours < minCleanupAge || maxAgeHours > maxCleanupAge {
		return nil, domain.ErrInvalidArgument
	}
	maxAge := time.Duration(maxAgeHours) * time.Hour

	jobs, err := j.queue.SweepOld(ctx, maxAge)
	if err != nil {
		return nil, err
	}
	records, err := j.audit.PurgeOlderThan(ctx, maxAge)
	if err != nil {
		return nil, err
	}
	return &CleanupReport{JobsRemoved: jobs, RecordsRemoved: records}, nil
}

// estimate answers "if my job is the depth-th in line, when does it run".
// It assumes the pool drains the line at workers jobs per perJob interval,
// which is rough but good enough for a progress hint.
func (j *jobUC) estimate(depth int64) time.Duration {
	if depth < 1 {
		depth = 1
	}
	rounds := (depth + int64(j.workers) - 1) / int64(j.workers)
	return time.Duration(rounds) * j.perJob
}
