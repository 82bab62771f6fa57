package model

import "time"

// AuditRecord is one persisted row in the external record store.
type AuditRecord struct {
	ID             string
	ConversationID string
	UserID         string
	Text           string
	MessageType    MessageType
	CreatedAt      time.Time
}
