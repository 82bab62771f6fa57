// File: internal/infra/worker/mocks_test.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"companion-ai-engine/internal/domain"
	"companion-ai-engine/internal/domain/model"
	"companion-ai-engine/internal/domain/ports/adapter"
	"companion-ai-engine/internal/domain/ports/repository"
)

// memQueue is a small in-memory JobQueue used by scheduler tests.
type memQueue struct {
	mu         sync.Mutex
	seq        int
	pending    []*model.Job
	order      map[string]int // enqueue sequence, FIFO tiebreak
	processing map[string]*model.Job
	completed  map[string]*model.Job
	failed     map[string]*model.Job
}

var _ repository.JobQueue = (*memQueue)(nil)

func newMemQueue() *memQueue {
	return &memQueue{
		order:      map[string]int{},
		processing: map[string]*model.Job{},
		completed:  map[string]*model.Job{},
		failed:     map[string]*model.Job{},
	}
}

func (m *memQueue) Enqueue(ctx context.Context, spec repository.EnqueueSpec) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	job := &model.Job{
		ID:             fmt.Sprintf("job-%d", m.seq),
		Type:           spec.Type,
		ConversationID: spec.ConversationID,
		UserID:         spec.UserID,
		Payload:        spec.Payload,
		Priority:       spec.Priority,
		Status:         model.JobStatusPending,
		MaxRetries:     spec.MaxRetries,
		CreatedAt:      time.Now(),
	}
	m.pending = append(m.pending, job)
	m.order[job.ID] = m.seq
	return job, nil
}

func (m *memQueue) sortPending() {
	sort.SliceStable(m.pending, func(i, j int) bool {
		a, b := m.pending[i], m.pending[j]
		as := a.Priority.DecayedScore(a.RetryCount)
		bs := b.Priority.DecayedScore(b.RetryCount)
		if as != bs {
			return as > bs
		}
		return m.order[a.ID] < m.order[b.ID]
	})
}

func (m *memQueue) ClaimNext(ctx context.Context) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil, domain.ErrNotFound
	}
	m.sortPending()
	job := m.pending[0]
	m.pending = m.pending[1:]
	now := time.Now()
	job.Status = model.JobStatusProcessing
	job.StartedAt = &now
	m.processing[job.ID] = job
	cp := *job
	return &cp, nil
}

func (m *memQueue) MarkCompleted(ctx context.Context, jobID, result string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.processing[jobID]
	if !ok {
		return nil
	}
	delete(m.processing, jobID)
	now := time.Now()
	job.Status = model.JobStatusCompleted
	job.CompletedAt = &now
	job.Result = result
	m.completed[jobID] = job
	return nil
}

func (m *memQueue) MarkFailed(ctx context.Context, jobID, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.processing[jobID]
	if !ok {
		return nil
	}
	delete(m.processing, jobID)
	job.LastError = errMsg
	if job.RetryCount < job.MaxRetries {
		job.RetryCount++
		job.Status = model.JobStatusPending
		job.StartedAt = nil
		m.seq++
		m.order[job.ID] = m.seq
		m.pending = append(m.pending, job)
		return nil
	}
	now := time.Now()
	job.Status = model.JobStatusFailed
	job.FailedAt = &now
	m.failed[jobID] = job
	return nil
}

func (m *memQueue) Stats(ctx context.Context) (*model.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &model.QueueStats{
		Pending:    int64(len(m.pending)),
		Processing: int64(len(m.processing)),
		Completed:  int64(len(m.completed)),
		Failed:     int64(len(m.failed)),
	}, nil
}

func (m *memQueue) Position(ctx context.Context, jobID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sortPending()
	for i, job := range m.pending {
		if job.ID == jobID {
			return int64(i), nil
		}
	}
	return 0, domain.ErrNotFound
}

func (m *memQueue) SweepOld(ctx context.Context, maxAge time.Duration) (int64, error) {
	return 0, nil
}

func (m *memQueue) failedJob(id string) *model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed[id]
}

// memConvStore is an in-memory ConversationStore.
type memConvStore struct {
	mu    sync.Mutex
	byID  map[string]*model.Conversation
	audit repository.AuditLogRepository
}

var _ repository.ConversationStore = (*memConvStore)(nil)

func newMemConvStore() *memConvStore {
	return &memConvStore{byID: map[string]*model.Conversation{}}
}

func (m *memConvStore) Start(ctx context.Context, spec repository.StartSpec) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv := model.NewConversation(spec.ID, spec.UserID, spec.Type)
	conv.AIRules = spec.AIRules
	for k, v := range spec.Metadata {
		conv.Metadata[k] = v
	}
	m.byID[conv.ID] = conv
	return conv, nil
}

func (m *memConvStore) AppendMessage(ctx context.Context, id string, msg model.ChatMessage) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	if conv.Status != model.ConversationActive {
		return nil, domain.ErrConversationNotActive
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	conv.Append(msg)
	cp := *conv
	return &cp, nil
}

func (m *memConvStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	cp := *conv
	return &cp, nil
}

func (m *memConvStore) End(ctx context.Context, id string) (*model.ConversationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	delete(m.byID, id)
	return &model.ConversationSummary{ID: id, UserID: conv.UserID, MessageCount: len(conv.Messages)}, nil
}

func (m *memConvStore) Sweep(ctx context.Context) (int, error) { return 0, nil }

func (m *memConvStore) messages(id string) []model.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.byID[id]; ok {
		out := make([]model.ChatMessage, len(conv.Messages))
		copy(out, conv.Messages)
		return out
	}
	return nil
}

// fakeAI is a scripted generation backend.
type fakeAI struct {
	mu      sync.Mutex
	reply   string
	err     error
	block   chan struct{} // when set, Chat calls wait here
	calls   int
	lastMsg []adapter.Message
}

var _ adapter.AIServiceAdapter = (*fakeAI)(nil)

func (f *fakeAI) ListModels(ctx context.Context) ([]string, error) {
	return []string{"test-model"}, nil
}

func (f *fakeAI) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{Name: model}, nil
}

func (f *fakeAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return len(messages), nil
}

func (f *fakeAI) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	text, _, err := f.ChatWithUsage(ctx, model, messages)
	return text, err
}

func (f *fakeAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", adapter.Usage{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastMsg = messages
	if f.err != nil {
		return "", adapter.Usage{}, f.err
	}
	return f.reply, adapter.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil
}

func (f *fakeAI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAI) lastMessages() []adapter.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastMsg
}

// memAudit records saved rows.
type memAudit struct {
	mu      sync.Mutex
	saved   []*model.AuditRecord
	saveErr error
}

var _ repository.AuditLogRepository = (*memAudit)(nil)

func (m *memAudit) Save(ctx context.Context, rec *model.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, rec)
	return nil
}

func (m *memAudit) DeleteByConversation(ctx context.Context, conversationID string) (int64, error) {
	return 0, nil
}

func (m *memAudit) PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	return 0, nil
}

func (m *memAudit) savedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

var errBackendDown = errors.New("backend down")
