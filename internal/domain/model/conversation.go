package model

import (
	"time"
)

type ConversationType string

const (
	ConversationBilan              ConversationType = "bilan"
	ConversationActivity           ConversationType = "activity"
	ConversationRecommendation     ConversationType = "recommendation"
	ConversationUnfinishedExchange ConversationType = "unfinished-exchange"
)

type ConversationStatus string

const (
	ConversationActive    ConversationStatus = "active"
	ConversationCompleted ConversationStatus = "completed"
	ConversationArchived  ConversationStatus = "archived"
)

type MessageType string

const (
	MessageUser MessageType = "user"
	MessageBot  MessageType = "bot"
)

// ChatMessage is one message within a conversation. Insertion order is
// significant; messages are append-only.
type ChatMessage struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Type      MessageType       `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Conversation is the aggregate root for one ongoing exchange. The store
// owns the canonical copy; callers and workers only ever read-modify-write
// it through the store API.
type Conversation struct {
	ID           string             `json:"id"`
	UserID       string             `json:"user_id"`
	Type         ConversationType   `json:"type"`
	Status       ConversationStatus `json:"status"`
	StartTime    time.Time          `json:"start_time"`
	LastActivity time.Time          `json:"last_activity"`
	Messages     []ChatMessage      `json:"messages"`
	Metadata     map[string]string  `json:"metadata,omitempty"`
	AIRules      string             `json:"ai_rules,omitempty"`
	ActivityData map[string]string  `json:"activity_data,omitempty"`
}

func NewConversation(id, userID string, typ ConversationType) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:           id,
		UserID:       userID,
		Type:         typ,
		Status:       ConversationActive,
		StartTime:    now,
		LastActivity: now,
		Messages:     make([]ChatMessage, 0, 8),
		Metadata:     map[string]string{},
	}
}

// Append adds a message and bumps LastActivity. LastActivity only moves
// forward.
func (c *Conversation) Append(msg ChatMessage) {
	c.Messages = append(c.Messages, msg)
	if now := time.Now(); now.After(c.LastActivity) {
		c.LastActivity = now
	}
}

func (c *Conversation) RecentMessages(n int) []ChatMessage {
	if n <= 0 || len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// ConversationSummary is returned by End.
type ConversationSummary struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	MessageCount int           `json:"message_count"`
	UserMessages int           `json:"user_messages"`
	BotMessages  int           `json:"bot_messages"`
	Duration     time.Duration `json:"duration"`
}
