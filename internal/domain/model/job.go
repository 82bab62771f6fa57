package model

import "time"

type JobType string

const (
	JobTypeFirstResponse      JobType = "first-response"
	JobTypeResponse           JobType = "response"
	JobTypeSummary            JobType = "summary"
	JobTypeUnfinishedExchange JobType = "unfinished-exchange"
)

// ValidJobType reports whether t is a member of the closed job type set.
// The Worker dispatches on JobType with an exhaustive switch; rejecting
// unknown tags at enqueue time keeps that switch total.
func ValidJobType(t JobType) bool {
	switch t {
	case JobTypeFirstResponse, JobTypeResponse, JobTypeSummary, JobTypeUnfinishedExchange:
		return true
	}
	return false
}

type JobPriority string

const (
	JobPriorityLow    JobPriority = "low"
	JobPriorityMedium JobPriority = "medium"
	JobPriorityHigh   JobPriority = "high"
)

// Numeric bands for the pending ordered set. Higher claims first.
const (
	scoreLow    = 1
	scoreMedium = 2
	scoreHigh   = 3
)

// Score maps a priority to its numeric band.
func (p JobPriority) Score() int {
	switch p {
	case JobPriorityHigh:
		return scoreHigh
	case JobPriorityMedium:
		return scoreMedium
	default:
		return scoreLow
	}
}

// DecayedScore lowers the band proportionally to the retry count so that
// repeatedly failing jobs sink behind healthy ones. Clamped at the low
// band: a decayed job is never starved out of the queue entirely.
func (p JobPriority) DecayedScore(retries int) int {
	s := p.Score() - retries
	if s < scoreLow {
		s = scoreLow
	}
	return s
}

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobPayload carries the type-specific input for a generation job.
type JobPayload struct {
	UserMessage   string `json:"user_message,omitempty"`
	PreviousTurn  string `json:"previous_turn,omitempty"`
	PromptContext string `json:"prompt_context,omitempty"`
}

// Job is one unit of asynchronous generation work.
type Job struct {
	ID             string      `json:"id"`
	Type           JobType     `json:"type"`
	ConversationID string      `json:"conversation_id"`
	UserID         string      `json:"user_id"`
	Payload        JobPayload  `json:"payload"`
	Priority       JobPriority `json:"priority"`
	Status         JobStatus   `json:"status"`
	RetryCount     int         `json:"retry_count"`
	MaxRetries     int         `json:"max_retries"`
	CreatedAt      time.Time   `json:"created_at"`
	StartedAt      *time.Time  `json:"started_at,omitempty"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
	FailedAt       *time.Time  `json:"failed_at,omitempty"`
	Result         string      `json:"result,omitempty"`
	LastError      string      `json:"last_error,omitempty"`
}

// JobResult is what a Worker hands back after executing a job.
type JobResult struct {
	JobID    string        `json:"job_id"`
	Type     JobType       `json:"type"`
	Text     string        `json:"text"`
	WorkerID int           `json:"worker_id"`
	Elapsed  time.Duration `json:"elapsed"`
}

// QueueStats is a point-in-time snapshot of per-status counts.
type QueueStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}
