package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"companion-ai-engine/internal/domain/ports/repository"
)

// QueueJanitor trims terminal jobs and their audit rows once they age out,
// keeping the completed/failed collections from growing without bound.
type QueueJanitor struct {
	interval  time.Duration
	retention time.Duration
	queue     repository.JobQueue
	audit     repository.AuditLogRepository
	log       *zerolog.Logger
}

func NewQueueJanitor(interval, retention time.Duration, queue repository.JobQueue, audit repository.AuditLogRepository, logger *zerolog.Logger) *QueueJanitor {
	janitorLog := logger.With().Str("component", "QueueJanitor").Logger()
	return &QueueJanitor{
		interval:  interval,
		retention: retention,
		queue:     queue,
		audit:     audit,
		log:       &janitorLog,
	}
}

func (w *QueueJanitor) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting queue janitor")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping queue janitor")
			return ctx.Err()
		case <-ticker.C:
			jobs, err := w.queue.SweepOld(ctx, w.retention)
			if err != nil {
				w.log.Error().Err(err).Msg("queue sweep error")
			}
			records, err := w.audit.PurgeOlderThan(ctx, w.retention)
			if err != nil {
				w.log.Error().Err(err).Msg("audit purge error")
			}
			if jobs > 0 || records > 0 {
				w.log.Info().Int64("jobs", jobs).Int64("records", records).Msg("aged-out entries removed")
			}
		}
	}
}
