package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound              = errors.New("entity not found")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrConversationNotActive = errors.New("conversation is not active")
	ErrConversationLocked    = errors.New("conversation has a writer in flight")
	ErrWorkerBusy            = errors.New("worker is already executing a job")
	ErrRetriesExhausted      = errors.New("job retries exhausted")
	ErrNoGenerationOutput    = errors.New("generation produced no output")
)
