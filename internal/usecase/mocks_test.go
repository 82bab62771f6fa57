// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"companion-ai-engine/internal/domain"
	"companion-ai-engine/internal/domain/model"
	"companion-ai-engine/internal/domain/ports/repository"
)

type fakeQueue struct {
	mu         sync.Mutex
	jobs       []*model.Job
	enqueueErr error
	posErr     error
	sweepErr   error
	swept      int64
	sweptAge   time.Duration
	stats      model.QueueStats
	statsErr   error
}

var _ repository.JobQueue = (*fakeQueue)(nil)

func (q *fakeQueue) Enqueue(ctx context.Context, spec repository.EnqueueSpec) (*model.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return nil, q.enqueueErr
	}
	if !model.ValidJobType(spec.Type) {
		return nil, fmt.Errorf("%w: job type %q", domain.ErrInvalidArgument, spec.Type)
	}
	job := &model.Job{
		ID:             fmt.Sprintf("job-%d", len(q.jobs)+1),
		Type:           spec.Type,
		ConversationID: spec.ConversationID,
		UserID:         spec.UserID,
		Payload:        spec.Payload,
		Priority:       spec.Priority,
		Status:         model.JobStatusPending,
		MaxRetries:     spec.MaxRetries,
		CreatedAt:      time.Now().UTC(),
	}
	q.jobs = append(q.jobs, job)
	return job, nil
}

func (q *fakeQueue) ClaimNext(ctx context.Context) (*model.Job, error) {
	return nil, domain.ErrNotFound
}

func (q *fakeQueue) MarkCompleted(ctx context.Context, jobID, result string) error { return nil }
func (q *fakeQueue) MarkFailed(ctx context.Context, jobID, errMsg string) error    { return nil }

func (q *fakeQueue) Stats(ctx context.Context) (*model.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.statsErr != nil {
		return nil, q.statsErr
	}
	s := q.stats
	return &s, nil
}

func (q *fakeQueue) Position(ctx context.Context, jobID string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.posErr != nil {
		return 0, q.posErr
	}
	for i, j := range q.jobs {
		if j.ID == jobID {
			return int64(i), nil
		}
	}
	return 0, domain.ErrNotFound
}

func (q *fakeQueue) SweepOld(ctx context.Context, maxAge time.Duration) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sweepErr != nil {
		return 0, q.sweepErr
	}
	q.sweptAge = maxAge
	return q.swept, nil
}

func (q *fakeQueue) enqueued() []*model.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*model.Job, len(q.jobs))
	copy(out, q.jobs)
	return out
}

type fakeStore struct {
	mu        sync.Mutex
	convs     map[string]*model.Conversation
	appendErr error
}

var _ repository.ConversationStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{convs: map[string]*model.Conversation{}}
}

func (s *fakeStore) Start(ctx context.Context, spec repository.StartSpec) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if spec.UserID == "" {
		return nil, domain.ErrInvalidArgument
	}
	conv := model.NewConversation(spec.ID, spec.UserID, spec.Type)
	conv.AIRules = spec.AIRules
	conv.Metadata = spec.Metadata
	s.convs[conv.ID] = conv
	return conv, nil
}

func (s *fakeStore) AppendMessage(ctx context.Context, conversationID string, msg model.ChatMessage) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return nil, s.appendErr
	}
	conv, ok := s.convs[conversationID]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	msg.Timestamp = time.Now().UTC()
	conv.Append(msg)
	return conv, nil
}

func (s *fakeStore) Get(ctx context.Context, conversationID string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[conversationID]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return conv, nil
}

func (s *fakeStore) End(ctx context.Context, conversationID string) (*model.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[conversationID]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	delete(s.convs, conversationID)
	return &model.ConversationSummary{
		ID:           conv.ID,
		UserID:       conv.UserID,
		MessageCount: len(conv.Messages),
	}, nil
}

func (s *fakeStore) Sweep(ctx context.Context) (int, error) { return 0, nil }

type fakeLocker struct {
	mu      sync.Mutex
	held    map[string]string
	lockErr error
	locks   int
	unlocks int
}

var _ repository.ConversationLocker = (*fakeLocker)(nil)

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]string{}}
}

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lockErr != nil {
		return "", l.lockErr
	}
	if _, taken := l.held[key]; taken {
		return "", domain.ErrConversationLocked
	}
	token := fmt.Sprintf("tok-%d", l.locks)
	l.held[key] = token
	l.locks++
	return token, nil
}

func (l *fakeLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		l.unlocks++
	}
	return nil
}

type fakeAudit struct {
	mu       sync.Mutex
	purged   int64
	purgeErr error
	purgeAge time.Duration
}

var _ repository.AuditLogRepository = (*fakeAudit)(nil)

func (a *fakeAudit) Save(ctx context.Context, rec *model.AuditRecord) error { return nil }

func (a *fakeAudit) DeleteByConversation(ctx context.Context, conversationID string) (int64, error) {
	return 0, nil
}

func (a *fakeAudit) PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.purgeErr != nil {
		return 0, a.purgeErr
	}
	a.purgeAge = maxAge
	return a.purged, nil
}
