package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"companion-ai-engine/internal/domain"
	"companion-ai-engine/internal/domain/model"
	"companion-ai-engine/internal/domain/ports/repository"
	"companion-ai-engine/internal/infra/logging"
	"companion-ai-engine/internal/infra/metrics"
)

// SchedulerOptions tune the poll and monitor loops. Worker count is fixed
// for the life of the process; there is deliberately no scaling here.
type SchedulerOptions struct {
	PollInterval    time.Duration
	MonitorInterval time.Duration
	BatchCap        int
	BacklogMultiple int
}

// Scheduler owns a fixed set of Workers and drives them from the queue.
// Each tick it claims up to min(idle, batchCap) jobs and dispatches them
// 1:1 to idle workers; one worker's failure never cancels its siblings.
type Scheduler struct {
	queue   repository.JobQueue
	workers []*Worker
	opts    SchedulerOptions
	log     *zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	completed atomic.Int64
	failed    atomic.Int64
}

func NewScheduler(queue repository.JobQueue, workers []*Worker, opts SchedulerOptions, logger *zerolog.Logger) *Scheduler {
	slog := logger.With().Str("component", "Scheduler").Logger()
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.MonitorInterval <= 0 {
		opts.MonitorInterval = 5 * time.Second
	}
	if opts.BatchCap <= 0 {
		opts.BatchCap = len(workers)
	}
	if opts.BacklogMultiple <= 0 {
		opts.BacklogMultiple = 10
	}
	return &Scheduler{
		queue:   queue,
		workers: workers,
		opts:    opts,
		log:     &slog,
	}
}

// Start launches the poll and monitor loops. Calling Start twice has no
// effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.cancel = cancel

	s.wg.Add(2)
	go s.pollLoop(ctx)
	go s.monitorLoop(ctx)
	s.log.Info().Int("workers", len(s.workers)).
		Dur("poll_interval", s.opts.PollInterval).Msg("scheduler started")
}

// Stop drains: no new ticks are started, in-flight jobs run to completion
// under their own timeouts, then both loops exit.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}

// BusyWorkers reports how many workers are executing right now.
func (s *Scheduler) BusyWorkers() int {
	n := 0
	for _, w := range s.workers {
		if w.Busy() {
			n++
		}
	}
	return n
}

func (s *Scheduler) Capacity() int { return len(s.workers) }

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	var idle []*Worker
	for _, w := range s.workers {
		if !w.Busy() {
			idle = append(idle, w)
		}
	}
	if len(idle) == 0 {
		return
	}
	n := len(idle)
	if n > s.opts.BatchCap {
		n = s.opts.BatchCap
	}

	var g errgroup.Group
	for i := 0; i < n; i++ {
		job, err := s.queue.ClaimNext(ctx)
		if errors.Is(err, domain.ErrNotFound) {
			break
		}
		if err != nil {
			// Store unreachable; the next tick retries.
			s.log.Error().Err(err).Msg("claim failed")
			break
		}
		w := idle[i]
		g.Go(func() error {
			s.runJob(ctx, w, job)
			return nil
		})
	}
	_ = g.Wait()
}

// runJob executes one claimed job and reports the outcome to the queue.
// Every failure is contained here and converted into markFailed; nothing
// propagates out of the tick.
func (s *Scheduler) runJob(ctx context.Context, w *Worker, job *model.Job) {
	jlog := logging.With(logging.WithJobID(ctx, job.ID), s.log)
	jlog.Debug().Str("type", string(job.Type)).Int("worker_id", w.ID()).Msg("dispatching job")

	result, err := w.Execute(ctx, job)

	// Bookkeeping runs on its own context so a shutdown mid-job still
	// records the outcome.
	bookCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err != nil {
		s.failed.Add(1)
		jlog.Warn().Err(err).Msg("job execution failed")
		if mErr := s.queue.MarkFailed(bookCtx, job.ID, err.Error()); mErr != nil {
			jlog.Error().Err(mErr).Msg("markFailed failed")
		}
		return
	}

	s.completed.Add(1)
	jlog.Info().Dur("elapsed", result.Elapsed).Int("worker_id", result.WorkerID).Msg("job completed")
	if mErr := s.queue.MarkCompleted(bookCtx, job.ID, result.Text); mErr != nil {
		jlog.Error().Err(mErr).Msg("markCompleted failed")
	}
}

// monitorLoop samples queue stats for metrics and logs a backlog advisory
// when pending volume outgrows capacity. It observes only; worker count
// never changes at runtime.
func (s *Scheduler) monitorLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.MonitorInterval)
	defer ticker.Stop()

	var lastCompleted, lastFailed int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := s.queue.Stats(ctx)
			if err != nil {
				s.log.Error().Err(err).Msg("stats sample failed")
				continue
			}
			metrics.SetQueueDepth("pending", stats.Pending)
			metrics.SetQueueDepth("processing", stats.Processing)
			metrics.SetQueueDepth("completed", stats.Completed)
			metrics.SetQueueDepth("failed", stats.Failed)
			busy := s.BusyWorkers()
			metrics.SetWorkersBusy(busy)

			completed := s.completed.Load()
			failed := s.failed.Load()
			s.log.Debug().
				Int64("pending", stats.Pending).
				Int64("processing", stats.Processing).
				Int("busy_workers", busy).
				Int64("completed_delta", completed-lastCompleted).
				Int64("failed_delta", failed-lastFailed).
				Msg("load sample")
			lastCompleted, lastFailed = completed, failed

			if threshold := int64(len(s.workers) * s.opts.BacklogMultiple); stats.Pending > threshold {
				s.log.Warn().Int64("pending", stats.Pending).Int64("threshold", threshold).
					Msg("pending backlog exceeds worker capacity; consider raising queue.workers")
			}
		}
	}
}
