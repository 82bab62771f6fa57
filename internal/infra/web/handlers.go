package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"companion-ai-engine/internal/domain"
	"companion-ai-engine/internal/domain/model"
	"companion-ai-engine/internal/domain/ports/repository"
	red "companion-ai-engine/internal/infra/redis"
	"companion-ai-engine/internal/usecase"
)

type enqueueRequest struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	UserMessage    string `json:"user_message,omitempty"`
	PreviousTurn   string `json:"previous_turn,omitempty"`
	PromptContext  string `json:"prompt_context,omitempty"`
	Priority       string `json:"priority,omitempty"`
	MaxRetries     int    `json:"max_retries,omitempty"`
}

type startConversationRequest struct {
	ID          string            `json:"id,omitempty"`
	UserID      string            `json:"user_id"`
	Type        string            `json:"type"`
	AIRules     string            `json:"ai_rules,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	WithOpening bool              `json:"with_opening,omitempty"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type sendMessageResponse struct {
	Conversation *model.Conversation `json:"conversation"`
	Job          *model.Job          `json:"job"`
}

type cleanupRequest struct {
	MaxAgeHours int `json:"maxAgeHours"`
}

func (s *Server) enqueueHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.ConversationID == "" {
		http.Error(w, "user_id and conversation_id are required", http.StatusBadRequest)
		return
	}

	allowed, err := s.limiter.Allow(ctx, red.EnqueueRateKey(req.UserID), s.opts.EnqueueLimit, s.opts.EnqueueWindow)
	if err != nil {
		s.log.Error().Err(err).Msg("rate limiter check failed")
		http.Error(w, "Failed to enqueue job", http.StatusInternalServerError)
		return
	}
	if !allowed {
		http.Error(w, "Too many jobs, slow down", http.StatusTooManyRequests)
		return
	}

	priority := model.JobPriority(req.Priority)
	if req.Priority == "" {
		priority = model.JobPriorityMedium
	}
	receipt, err := s.jobUC.Enqueue(ctx, repository.EnqueueSpec{
		Type:           model.JobType(req.Type),
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Payload: model.JobPayload{
			UserMessage:   req.UserMessage,
			PreviousTurn:  req.PreviousTurn,
			PromptContext: req.PromptContext,
		},
		Priority:   priority,
		MaxRetries: req.MaxRetries,
	})
	if err != nil {
		s.writeError(w, err, "Failed to enqueue job")
		return
	}
	writeJSON(w, http.StatusAccepted, receipt)
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.jobUC.Stats(r.Context())
	if err != nil {
		s.writeError(w, err, "Failed to get stats")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) cleanupHandler(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	report, err := s.jobUC.Cleanup(r.Context(), req.MaxAgeHours)
	if err != nil {
		s.writeError(w, err, "Failed to clean up")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) startConversationHandler(w http.ResponseWriter, r *http.Request) {
	var req startConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	conv, err := s.convUC.Start(r.Context(), usecase.StartConversationRequest{
		ID:          req.ID,
		UserID:      req.UserID,
		Type:        model.ConversationType(req.Type),
		AIRules:     req.AIRules,
		Metadata:    req.Metadata,
		WithOpening: req.WithOpening,
	})
	if err != nil {
		s.writeError(w, err, "Failed to start conversation")
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) getConversationHandler(w http.ResponseWriter, r *http.Request) {
	conv, err := s.convUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err, "Failed to get conversation")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) sendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	conv, job, err := s.convUC.SendMessage(r.Context(), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		s.writeError(w, err, "Failed to send message")
		return
	}
	writeJSON(w, http.StatusAccepted, sendMessageResponse{Conversation: conv, Job: job})
}

func (s *Server) endConversationHandler(w http.ResponseWriter, r *http.Request) {
	sum, err := s.convUC.End(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err, "Failed to end conversation")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	result := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.log.Warn().Err(err).Str("check", name).Msg("health check failed")
			result[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		result[name] = "up"
	}
	writeJSON(w, status, result)
}

// writeError maps domain sentinels onto HTTP status codes. Anything
// unrecognized is a 500 with a generic message; details stay in the log.
func (s *Server) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrConversationNotFound), errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrConversationNotActive):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrConversationLocked):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.log.Error().Err(err).Msg(fallback)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
