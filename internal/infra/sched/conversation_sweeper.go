package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"companion-ai-engine/internal/domain/ports/repository"
)

// ConversationSweeper periodically removes conversations that lost their
// expiry, usually after a crash between write and expire.
type ConversationSweeper struct {
	interval time.Duration
	store    repository.ConversationStore
	log      *zerolog.Logger
}

func NewConversationSweeper(interval time.Duration, store repository.ConversationStore, logger *zerolog.Logger) *ConversationSweeper {
	sweepLog := logger.With().Str("component", "ConversationSweeper").Logger()
	return &ConversationSweeper{
		interval: interval,
		store:    store,
		log:      &sweepLog,
	}
}

func (w *ConversationSweeper) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting conversation sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping conversation sweeper")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.store.Sweep(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("conversation sweep error")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("orphaned conversations removed")
			}
		}
	}
}
