package web

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"companion-ai-engine/internal/domain"
	"companion-ai-engine/internal/domain/model"
	"companion-ai-engine/internal/domain/ports/repository"
	"companion-ai-engine/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

type mockJobUC struct {
	mu         sync.Mutex
	enqueued   []repository.EnqueueSpec
	enqueueErr error
	stats      usecase.StatsReport
	cleanupFn  func(maxAgeHours int) (*usecase.CleanupReport, error)
}

var _ usecase.JobUseCase = (*mockJobUC)(nil)

func (m *mockJobUC) Enqueue(ctx context.Context, spec repository.EnqueueSpec) (*usecase.EnqueueReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enqueueErr != nil {
		return nil, m.enqueueErr
	}
	if !model.ValidJobType(spec.Type) {
		return nil, domain.ErrInvalidArgument
	}
	m.enqueued = append(m.enqueued, spec)
	return &usecase.EnqueueReceipt{
		Job:           &model.Job{ID: "j1", Type: spec.Type, Priority: spec.Priority},
		QueuePosition: 2,
		EstimatedWait: 6 * time.Second,
	}, nil
}

func (m *mockJobUC) Stats(ctx context.Context) (*usecase.StatsReport, error) {
	s := m.stats
	return &s, nil
}

func (m *mockJobUC) Cleanup(ctx context.Context, maxAgeHours int) (*usecase.CleanupReport, error) {
	if m.cleanupFn != nil {
		return m.cleanupFn(maxAgeHours)
	}
	if maxAgeHours < 1 || maxAgeHours > 168 {
		return nil, domain.ErrInvalidArgument
	}
	return &usecase.CleanupReport{JobsRemoved: 3, RecordsRemoved: 7}, nil
}

func (m *mockJobUC) enqueuedSpecs() []repository.EnqueueSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.EnqueueSpec, len(m.enqueued))
	copy(out, m.enqueued)
	return out
}

type mockConvUC struct {
	mu    sync.Mutex
	convs map[string]*model.Conversation
}

var _ usecase.ConversationUseCase = (*mockConvUC)(nil)

func newMockConvUC() *mockConvUC {
	return &mockConvUC{convs: map[string]*model.Conversation{}}
}

func (m *mockConvUC) Start(ctx context.Context, req usecase.StartConversationRequest) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.UserID == "" {
		return nil, domain.ErrInvalidArgument
	}
	conv := model.NewConversation(req.ID, req.UserID, req.Type)
	m.convs[conv.ID] = conv
	return conv, nil
}

func (m *mockConvUC) SendMessage(ctx context.Context, conversationID, content string) (*model.Conversation, *model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[conversationID]
	if !ok {
		return nil, nil, domain.ErrConversationNotFound
	}
	conv.Append(model.ChatMessage{Content: content, Type: model.MessageUser})
	return conv, &model.Job{ID: "j-reply", Type: model.JobTypeResponse}, nil
}

func (m *mockConvUC) Get(ctx context.Context, conversationID string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[conversationID]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return conv, nil
}

func (m *mockConvUC) End(ctx context.Context, conversationID string) (*model.ConversationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[conversationID]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	delete(m.convs, conversationID)
	return &model.ConversationSummary{ID: conv.ID, UserID: conv.UserID}, nil
}

type mockLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	deny   bool
}

func newMockLimiter() *mockLimiter {
	return &mockLimiter{counts: map[string]int{}}
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deny {
		return false, nil
	}
	m.counts[key]++
	return m.counts[key] <= limit, nil
}
