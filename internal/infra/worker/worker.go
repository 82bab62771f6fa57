package worker

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"companion-ai-engine/internal/domain"
	"companion-ai-engine/internal/domain/model"
	"companion-ai-engine/internal/domain/ports/adapter"
	"companion-ai-engine/internal/domain/ports/repository"
	"companion-ai-engine/internal/infra/metrics"
)

// Worker executes one generation job at a time. Single-job-at-a-time is by
// construction: Execute fails fast with ErrWorkerBusy instead of queueing.
type Worker struct {
	id            int
	conversations repository.ConversationStore
	ai            adapter.AIServiceAdapter
	audit         repository.AuditLogRepository
	provider      string
	model         string
	recentWindow  int
	jobTimeout    time.Duration
	busy          atomic.Bool
	log           *zerolog.Logger
}

type WorkerOptions struct {
	Provider     string
	Model        string
	RecentWindow int
	JobTimeout   time.Duration
}

func NewWorker(
	id int,
	conversations repository.ConversationStore,
	ai adapter.AIServiceAdapter,
	audit repository.AuditLogRepository,
	opts WorkerOptions,
	logger *zerolog.Logger,
) *Worker {
	wlog := logger.With().Str("component", "Worker").Int("worker_id", id).Logger()
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = 15
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 60 * time.Second
	}
	return &Worker{
		id:            id,
		conversations: conversations,
		ai:            ai,
		audit:         audit,
		provider:      opts.Provider,
		model:         opts.Model,
		recentWindow:  opts.RecentWindow,
		jobTimeout:    opts.JobTimeout,
		log:           &wlog,
	}
}

func (w *Worker) ID() int    { return w.id }
func (w *Worker) Busy() bool { return w.busy.Load() }

// Execute runs a single job to completion. The context passed in scopes the
// bookkeeping only; the generation call itself runs under the worker's own
// hard timeout, detached from scheduler shutdown, so in-flight jobs drain
// instead of being killed.
func (w *Worker) Execute(ctx context.Context, job *model.Job) (*model.JobResult, error) {
	if !w.busy.CompareAndSwap(false, true) {
		return nil, domain.ErrWorkerBusy
	}
	defer w.busy.Store(false)

	runCtx, cancel := context.WithTimeout(context.Background(), w.jobTimeout)
	defer cancel()

	start := time.Now()
	conv, err := w.conversations.Get(runCtx, job.ConversationID)
	if err != nil {
		// The conversation expiring mid-flight is expected; the queue
		// decides whether to retry.
		return nil, err
	}

	msgs, err := w.buildPrompt(job, conv)
	if err != nil {
		return nil, err
	}

	callStart := time.Now()
	text, usage, err := w.ai.ChatWithUsage(runCtx, w.model, msgs)
	latency := time.Since(callStart)
	if err != nil {
		metrics.ObserveChatUsage(w.provider, w.model, 0, 0, 0, int(latency/time.Millisecond), false)
		return nil, fmt.Errorf("generation backend: %w", err)
	}
	metrics.ObserveChatUsage(w.provider, w.model,
		usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens,
		int(latency/time.Millisecond), true)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrNoGenerationOutput
	}

	botMsg := model.ChatMessage{
		Content: text,
		Type:    model.MessageBot,
		Metadata: map[string]string{
			"source": "worker",
			"model":  w.model,
			"job_id": job.ID,
		},
	}
	if _, err := w.conversations.AppendMessage(runCtx, job.ConversationID, botMsg); err != nil {
		return nil, fmt.Errorf("append reply: %w", err)
	}

	// Audit rows are fire-and-log; a failed write never fails the job.
	rec := &model.AuditRecord{
		ConversationID: job.ConversationID,
		UserID:         job.UserID,
		Text:           text,
		MessageType:    model.MessageBot,
	}
	if err := w.audit.Save(runCtx, rec); err != nil {
		w.log.Error().Err(err).Str("job_id", job.ID).Msg("audit record write failed")
	}

	elapsed := time.Since(start)
	metrics.ObserveJobDuration(string(job.Type), float64(elapsed/time.Millisecond))
	return &model.JobResult{
		JobID:    job.ID,
		Type:     job.Type,
		Text:     text,
		WorkerID: w.id,
		Elapsed:  elapsed,
	}, nil
}

// buildPrompt assembles the message list for the generation call. The
// switch over JobType is exhaustive; Enqueue rejects unknown tags.
func (w *Worker) buildPrompt(job *model.Job, conv *model.Conversation) ([]adapter.Message, error) {
	var msgs []adapter.Message
	if conv.AIRules != "" {
		msgs = append(msgs, adapter.Message{Role: "system", Content: conv.AIRules})
	}
	history := conv.RecentMessages(w.recentWindow)

	switch job.Type {
	case model.JobTypeFirstResponse:
		msgs = append(msgs, adapter.Message{
			Role:    "system",
			Content: "Open the conversation with a short, warm first message suited to a " + string(conv.Type) + " exchange.",
		})
		if job.Payload.PromptContext != "" {
			msgs = append(msgs, adapter.Message{Role: "system", Content: job.Payload.PromptContext})
		}

	case model.JobTypeResponse:
		msgs = append(msgs, historyMessages(history)...)
		if job.Payload.UserMessage != "" {
			msgs = append(msgs, adapter.Message{Role: "user", Content: job.Payload.UserMessage})
		}

	case model.JobTypeSummary:
		msgs = append(msgs, historyMessages(history)...)
		msgs = append(msgs, adapter.Message{
			Role:    "system",
			Content: "Summarize the exchange above in a few sentences addressed to the user.",
		})

	case model.JobTypeUnfinishedExchange:
		msgs = append(msgs, historyMessages(history)...)
		prev := job.Payload.PreviousTurn
		if prev == "" {
			prev = conv.Metadata["previous_turn"]
		}
		content := "The user went quiet. Write a gentle follow-up that picks the exchange back up."
		if prev != "" {
			content += " Their last turn was: " + prev
		}
		msgs = append(msgs, adapter.Message{Role: "system", Content: content})

	default:
		return nil, domain.ErrInvalidArgument
	}

	if len(msgs) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	return msgs, nil
}

func historyMessages(history []model.ChatMessage) []adapter.Message {
	out := make([]adapter.Message, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Type == model.MessageBot {
			role = "assistant"
		}
		out = append(out, adapter.Message{Role: role, Content: m.Content})
	}
	return out
}
