// File: internal/usecase/conversation_uc.go
package usecase

import (
	"context"
	"strings"
	"time"

	"companion-ai-engine/internal/domain"
	"companion-ai-engine/internal/domain/model"
	"companion-ai-engine/internal/domain/ports/repository"
)

// Compile-time check
var _ ConversationUseCase = (*conversationUC)(nil)

type StartConversationRequest struct {
	ID          string
	UserID      string
	Type        model.ConversationType
	AIRules     string
	Metadata    map[string]string
	WithOpening bool // enqueue a first-response job right away
}

type ConversationUseCase interface {
	Start(ctx context.Context, req StartConversationRequest) (*model.Conversation, error)
	// SendMessage appends a user message and schedules the bot's reply.
	SendMessage(ctx context.Context, conversationID, content string) (*model.Conversation, *model.Job, error)
	Get(ctx context.Context, conversationID string) (*model.Conversation, error)
	End(ctx context.Context, conversationID string) (*model.ConversationSummary, error)
}

type conversationUC struct {
	store  repository.ConversationStore
	queue  repository.JobQueue
	locker repository.ConversationLocker
}

// lockTTL bounds how long a crashed caller can hold a conversation lock.
const lockTTL = 10 * time.Second

func NewConversationUseCase(store repository.ConversationStore, queue repository.JobQueue, locker repository.ConversationLocker) *conversationUC {
	return &conversationUC{store: store, queue: queue, locker: locker}
}

func (c *conversationUC) Start(ctx context.Context, req StartConversationRequest) (*model.Conversation, error) {
	conv, err := c.store.Start(ctx, repository.StartSpec{
		ID:       req.ID,
		UserID:   req.UserID,
		Type:     req.Type,
		AIRules:  req.AIRules,
		Metadata: req.Metadata,
	})
	if err != nil {
		return nil, err
	}
	if req.WithOpening {
		// Opening messages jump the line; the user is staring at an
		// empty screen.
		_, err := c.queue.Enqueue(ctx, repository.EnqueueSpec{
			Type:           model.JobTypeFirstResponse,
			ConversationID: conv.ID,
			UserID:         conv.UserID,
			Priority:       model.JobPriorityHigh,
		})
		if err != nil {
			return nil, err
		}
	}
	return conv, nil
}

func (c *conversationUC) SendMessage(ctx context.Context, conversationID, content string) (*model.Conversation, *model.Job, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, domain.ErrInvalidArgument
	}

	key := lockKey(conversationID)
	token, err := c.locker.TryLock(ctx, key, lockTTL)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = c.locker.Unlock(ctx, key, token) }()

	conv, err := c.store.AppendMessage(ctx, conversationID, model.ChatMessage{
		Content: content,
		Type:    model.MessageUser,
	})
	if err != nil {
		return nil, nil, err
	}

	job, err := c.queue.Enqueue(ctx, repository.EnqueueSpec{
		Type:           model.JobTypeResponse,
		ConversationID: conversationID,
		UserID:         conv.UserID,
		Payload:        model.JobPayload{UserMessage: content},
		Priority:       model.JobPriorityMedium,
	})
	if err != nil {
		return nil, nil, err
	}
	return conv, job, nil
}

func (c *conversationUC) Get(ctx context.Context, conversationID string) (*model.Conversation, error) {
	return c.store.Get(ctx, conversationID)
}

func (c *conversationUC) End(ctx context.Context, conversationID string) (*model.ConversationSummary, error) {
	return c.store.End(ctx, conversationID)
}

func lockKey(conversationID string) string {
	return "conv_lock:" + conversationID
}
