package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"companion-ai-engine/internal/usecase"
)

// RateLimiter gates job submission per user.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// HealthCheck probes one backing service. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

type ServerOptions struct {
	APIKey        string
	EnqueueLimit  int           // max enqueues per user per window
	EnqueueWindow time.Duration // rate limit window
}

type Server struct {
	jobUC   usecase.JobUseCase
	convUC  usecase.ConversationUseCase
	limiter RateLimiter
	checks  map[string]HealthCheck
	opts    ServerOptions
	log     *zerolog.Logger
}

func NewServer(
	jobUC usecase.JobUseCase,
	convUC usecase.ConversationUseCase,
	limiter RateLimiter,
	checks map[string]HealthCheck,
	opts ServerOptions,
	logger *zerolog.Logger,
) *Server {
	if opts.EnqueueLimit <= 0 {
		opts.EnqueueLimit = 30
	}
	if opts.EnqueueWindow <= 0 {
		opts.EnqueueWindow = time.Minute
	}
	return &Server{
		jobUC:   jobUC,
		convUC:  convUC,
		limiter: limiter,
		checks:  checks,
		opts:    opts,
		log:     logger,
	}
}

// Router builds the full HTTP surface. /health and /metrics are open;
// everything under /api/v1 sits behind the bearer-key middleware.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/jobs", s.enqueueHandler)
		r.Get("/stats", s.statsHandler)
		r.Post("/cleanup", s.cleanupHandler)

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", s.startConversationHandler)
			r.Get("/{id}", s.getConversationHandler)
			r.Post("/{id}/messages", s.sendMessageHandler)
			r.Delete("/{id}", s.endConversationHandler)
		})
	})
	return r
}

// authMiddleware provides simple Bearer token authentication for the API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.APIKey == "" {
			s.log.Error().Msg("API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}

		if tokenParts[1] != s.opts.APIKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
