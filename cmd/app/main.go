// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"companion-ai-engine/internal/config"
	"companion-ai-engine/internal/domain/ports/adapter"
	aiAdapters "companion-ai-engine/internal/infra/adapters/ai"
	pg "companion-ai-engine/internal/infra/db/postgres"
	"companion-ai-engine/internal/infra/logging"
	"companion-ai-engine/internal/infra/metrics"
	red "companion-ai-engine/internal/infra/redis"
	"companion-ai-engine/internal/infra/sched"
	"companion-ai-engine/internal/infra/web"
	"companion-ai-engine/internal/infra/worker"
	"companion-ai-engine/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, noop AI fallback)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	auditRepo := pg.NewAuditLogRepo(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()

	queue := red.NewJobQueue(redisClient, cfg.Queue.MaxRetries, logger)
	convStore := red.NewConversationStore(redisClient, auditRepo, cfg.Conversation.TTL, logger)
	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- AI adapters (every configured provider; multi-routes when both are set) ----
	byProvider := map[string]adapter.AIServiceAdapter{}
	if cfg.AI.OpenAIKey != "" {
		a, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.DefaultModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter")
		}
		byProvider["openai"] = a
	}
	if cfg.AI.GeminiKey != "" {
		a, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel, 0)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter")
		}
		byProvider["gemini"] = a
	}

	var ai adapter.AIServiceAdapter
	provider := ""
	switch {
	case len(byProvider) > 1:
		ai = aiAdapters.NewMultiAIAdapter("openai", byProvider, cfg.AI.ModelProviders)
		provider = "multi"
	case byProvider["openai"] != nil:
		ai, provider = byProvider["openai"], "openai"
	case byProvider["gemini"] != nil:
		ai, provider = byProvider["gemini"], "gemini"
	case cfg.Runtime.Dev:
		ai, provider = aiAdapters.NewNoopAIAdapter(), "noop"
	default:
		logger.Fatal().Msgf("no AI provider configured: set ai.openai_key or ai.gemini_key in %s", *cfgPath)
	}
	ai = aiAdapters.NewLimitedAI(ai, cfg.AI.ConcurrentLimit)
	logger.Info().Str("provider", provider).Str("model", cfg.AI.DefaultModel).Msg("AI adapter ready")

	// ---- Workers and scheduler ----
	workers := make([]*worker.Worker, 0, cfg.Queue.Workers)
	for i := 0; i < cfg.Queue.Workers; i++ {
		workers = append(workers, worker.NewWorker(i, convStore, ai, auditRepo, worker.WorkerOptions{
			Provider:     provider,
			Model:        cfg.AI.DefaultModel,
			RecentWindow: cfg.Conversation.RecentWindow,
			JobTimeout:   cfg.Queue.JobTimeout,
		}, logger))
	}
	scheduler := worker.NewScheduler(queue, workers, worker.SchedulerOptions{
		PollInterval:    cfg.Queue.PollInterval,
		MonitorInterval: cfg.Queue.MonitorInterval,
		BatchCap:        cfg.Queue.BatchCap,
		BacklogMultiple: cfg.Queue.BacklogMultiple,
	}, logger)
	scheduler.Start(ctx)

	// ---- Background maintenance ----
	sweeper := sched.NewConversationSweeper(cfg.Conversation.SweepInterval, convStore, logger)
	go func() { _ = sweeper.Run(ctx) }()
	janitor := sched.NewQueueJanitor(time.Hour, cfg.Queue.TerminalRetention, queue, auditRepo, logger)
	go func() { _ = janitor.Run(ctx) }()

	// ---- Use cases ----
	convUC := usecase.NewConversationUseCase(convStore, queue, locker)
	jobUC := usecase.NewJobUseCase(queue, auditRepo, cfg.Queue.Workers, 0)

	// ---- HTTP API ----
	checks := map[string]web.HealthCheck{
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx) },
		"postgres": func(ctx context.Context) error { return pool.Ping(ctx) },
	}
	srv := web.NewServer(jobUC, convUC, rateLimiter, checks, web.ServerOptions{
		APIKey: cfg.Admin.APIKey,
	}, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	cancel()
	scheduler.Stop() // waits for in-flight jobs
	logger.Info().Msg("shutdown complete")
}
