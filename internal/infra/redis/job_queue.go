package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"companion-ai-engine/internal/domain"
	"companion-ai-engine/internal/domain/model"
	"companion-ai-engine/internal/domain/ports/repository"
	"companion-ai-engine/internal/infra/metrics"
)

var _ repository.JobQueue = (*JobQueue)(nil)

// Keys are namespaced under aiq: to avoid colliding with conversation state
// in the shared Redis instance.
const (
	keyPending    = "aiq:pending" // ZSET jobID -> score
	keyBodies     = "aiq:jobs"    // HASH jobID -> JSON (pending bodies)
	keyProcessing = "aiq:processing"
	keyCompleted  = "aiq:completed"
	keyFailed     = "aiq:failed"
	keySeq        = "aiq:seq"
)

// bandWidth separates priority bands in the pending score. A band holds up
// to bandWidth enqueues before sequence numbers could bleed into the band
// above, which at one enqueue per millisecond is ~31 years of uptime.
const bandWidth = 1e12

// JobQueue is a Redis-backed, priority-ordered, exclusive-claim work queue.
//
// Pending jobs live in a ZSET scored by priority band minus a monotonic
// sequence number, so claims come out highest-band first and FIFO within a
// band. Claiming is a ZREM on the candidate id: Redis executes ZREM
// atomically, so whichever caller sees the removal count of 1 owns the job.
type JobQueue struct {
	client     RedisClient
	maxRetries int
	log        *zerolog.Logger
	entropy    *ulid.MonotonicEntropy
}

func NewJobQueue(client RedisClient, maxRetries int, logger *zerolog.Logger) *JobQueue {
	qlog := logger.With().Str("component", "JobQueue").Logger()
	return &JobQueue{
		client:     client,
		maxRetries: maxRetries,
		log:        &qlog,
		entropy:    ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (q *JobQueue) newJobID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), q.entropy).String()
}

func score(band int, seq int64) float64 {
	return float64(band)*bandWidth - float64(seq)
}

func (q *JobQueue) Enqueue(ctx context.Context, spec repository.EnqueueSpec) (*model.Job, error) {
	if !model.ValidJobType(spec.Type) {
		return nil, domain.ErrInvalidArgument
	}
	maxRetries := spec.MaxRetries
	if maxRetries <= 0 {
		maxRetries = q.maxRetries
	}
	job := &model.Job{
		ID:             q.newJobID(),
		Type:           spec.Type,
		ConversationID: spec.ConversationID,
		UserID:         spec.UserID,
		Payload:        spec.Payload,
		Priority:       spec.Priority,
		Status:         model.JobStatusPending,
		MaxRetries:     maxRetries,
		CreatedAt:      time.Now(),
	}

	seq, err := q.client.Incr(ctx, keySeq)
	if err != nil {
		return nil, err
	}
	if err := q.putBody(ctx, keyBodies, job); err != nil {
		return nil, err
	}
	if err := q.client.ZAdd(ctx, keyPending, score(job.Priority.Score(), seq), job.ID); err != nil {
		return nil, err
	}
	q.log.Debug().Str("job_id", job.ID).Str("type", string(job.Type)).
		Str("priority", string(job.Priority)).Msg("job enqueued")
	return job, nil
}

// ClaimNext pops the highest-priority pending job. The ZREM result is the
// exclusivity proof: only the caller that removed the member proceeds to
// stamp and own the job. Losing a race just means trying the next candidate.
func (q *JobQueue) ClaimNext(ctx context.Context) (*model.Job, error) {
	for attempt := 0; attempt < 8; attempt++ {
		ids, err := q.client.ZRevRange(ctx, keyPending, 0, 0)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, domain.ErrNotFound
		}
		id := ids[0]

		removed, err := q.client.ZRem(ctx, keyPending, id)
		if err != nil {
			return nil, err
		}
		if removed == 0 {
			// Another claimer won this candidate.
			continue
		}

		raw, err := q.client.HGet(ctx, keyBodies, id)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				q.log.Warn().Str("job_id", id).Msg("claimed id has no body; skipping")
				continue
			}
			return nil, err
		}
		if _, err := q.client.HDel(ctx, keyBodies, id); err != nil {
			return nil, err
		}

		var job model.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			q.log.Error().Err(err).Str("job_id", id).Msg("corrupt job body dropped")
			continue
		}
		now := time.Now()
		job.Status = model.JobStatusProcessing
		job.StartedAt = &now
		if err := q.putBody(ctx, keyProcessing, &job); err != nil {
			return nil, err
		}
		metrics.IncJobClaimed()
		return &job, nil
	}
	return nil, domain.ErrNotFound
}

func (q *JobQueue) MarkCompleted(ctx context.Context, jobID, result string) error {
	job, err := q.takeInFlight(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		q.log.Warn().Str("job_id", jobID).Msg("markCompleted: job not in flight")
		return nil
	}
	now := time.Now()
	job.Status = model.JobStatusCompleted
	job.CompletedAt = &now
	job.Result = result
	if err := q.putBody(ctx, keyCompleted, job); err != nil {
		return err
	}
	metrics.IncJobProcessed(string(model.JobStatusCompleted))
	return nil
}

func (q *JobQueue) MarkFailed(ctx context.Context, jobID, errMsg string) error {
	job, err := q.takeInFlight(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		q.log.Warn().Str("job_id", jobID).Msg("markFailed: job not in flight")
		return nil
	}
	job.LastError = errMsg

	if job.RetryCount < job.MaxRetries {
		job.RetryCount++
		job.Status = model.JobStatusPending
		job.StartedAt = nil

		seq, err := q.client.Incr(ctx, keySeq)
		if err != nil {
			return err
		}
		if err := q.putBody(ctx, keyBodies, job); err != nil {
			return err
		}
		decayed := job.Priority.DecayedScore(job.RetryCount)
		if err := q.client.ZAdd(ctx, keyPending, score(decayed, seq), job.ID); err != nil {
			return err
		}
		metrics.IncJobRetried()
		q.log.Info().Str("job_id", job.ID).Int("retry", job.RetryCount).
			Int("decayed_band", decayed).Str("error", errMsg).Msg("job re-enqueued")
		return nil
	}

	now := time.Now()
	job.Status = model.JobStatusFailed
	job.FailedAt = &now
	if err := q.putBody(ctx, keyFailed, job); err != nil {
		return err
	}
	metrics.IncJobProcessed(string(model.JobStatusFailed))
	q.log.Warn().Str("job_id", job.ID).Int("retries", job.RetryCount).
		Str("error", errMsg).Msg("job terminally failed")
	return nil
}

func (q *JobQueue) Stats(ctx context.Context) (*model.QueueStats, error) {
	pending, err := q.client.ZCard(ctx, keyPending)
	if err != nil {
		return nil, err
	}
	processing, err := q.client.HLen(ctx, keyProcessing)
	if err != nil {
		return nil, err
	}
	completed, err := q.client.HLen(ctx, keyCompleted)
	if err != nil {
		return nil, err
	}
	failed, err := q.client.HLen(ctx, keyFailed)
	if err != nil {
		return nil, err
	}
	return &model.QueueStats{
		Pending:    pending,
		Processing: processing,
		Completed:  completed,
		Failed:     failed,
	}, nil
}

func (q *JobQueue) Position(ctx context.Context, jobID string) (int64, error) {
	rank, err := q.client.ZRevRank(ctx, keyPending, jobID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return rank, nil
}

func (q *JobQueue) SweepOld(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	var removed int64
	for _, key := range []string{keyCompleted, keyFailed} {
		entries, err := q.client.HGetAll(ctx, key)
		if err != nil {
			return removed, err
		}
		for id, raw := range entries {
			var job model.Job
			if err := json.Unmarshal([]byte(raw), &job); err != nil {
				// Unparseable terminal entries are garbage either way.
				if n, _ := q.client.HDel(ctx, key, id); n > 0 {
					removed += n
				}
				continue
			}
			ts := job.CompletedAt
			if ts == nil {
				ts = job.FailedAt
			}
			if ts == nil || ts.Before(cutoff) {
				n, err := q.client.HDel(ctx, key, id)
				if err != nil {
					return removed, err
				}
				removed += n
			}
		}
	}
	if removed > 0 {
		q.log.Info().Int64("count", removed).Dur("max_age", maxAge).Msg("terminal jobs swept")
	}
	return removed, nil
}

// takeInFlight removes a job from the processing hash and returns it.
// Returns (nil, nil) when the job is not in flight.
func (q *JobQueue) takeInFlight(ctx context.Context, jobID string) (*model.Job, error) {
	raw, err := q.client.HGet(ctx, keyProcessing, jobID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if _, err := q.client.HDel(ctx, keyProcessing, jobID); err != nil {
		return nil, err
	}
	var job model.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (q *JobQueue) putBody(ctx context.Context, key string, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.HSet(ctx, key, job.ID, data)
}
