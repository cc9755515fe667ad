package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"logistics-payment-engine/internal/domain"
	"logistics-payment-engine/internal/infra/worker"
	"logistics-payment-engine/internal/usecase"
)

// BillingScheduler periodically sweeps subscriptions whose next billing date
// has passed and submits a renewal charge for each to the worker pool. The
// per-subscription redis lock inside the use case makes overlapping sweeps
// (and multi-instance deployments) safe.
type BillingScheduler struct {
	interval  time.Duration
	batchSize int
	subs      usecase.SubscriptionManager
	log       *zerolog.Logger
}

func NewBillingScheduler(interval time.Duration, batchSize int, subs usecase.SubscriptionManager, logger *zerolog.Logger) *BillingScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	compLog := logger.With().Str("component", "BillingScheduler").Logger()
	return &BillingScheduler{
		interval:  interval,
		batchSize: batchSize,
		subs:      subs,
		log:       &compLog,
	}
}

func (w *BillingScheduler) Run(ctx context.Context, pool *worker.Pool) error {
	w.log.Info().Msg("Starting billing scheduler")
	// Run once on startup, then on every tick
	w.sweep(ctx, pool)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping billing scheduler")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx, pool)
		}
	}
}

func (w *BillingScheduler) sweep(ctx context.Context, pool *worker.Pool) {
	due, err := w.subs.ListDue(ctx, time.Now(), w.batchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("list due subscriptions failed")
		return
	}
	for _, sub := range due {
		id := sub.ID
		_ = pool.Submit(func(ctx context.Context) error {
			_, perr := w.subs.ProcessSubscriptionPayment(ctx, id)
			switch {
			case perr == nil:
			case errors.Is(perr, domain.ErrLockNotAcquired), errors.Is(perr, domain.ErrStateConflict):
				// another instance got there first
			case errors.Is(perr, domain.ErrGatewayTimeout):
				w.log.Warn().Str("subscription_id", id).Msg("renewal charge timed out; left for reconciler")
			default:
				w.log.Error().Err(perr).Str("subscription_id", id).Msg("renewal charge failed")
			}
			return nil
		})
	}
	if len(due) > 0 {
		w.log.Info().Int("count", len(due)).Msg("billing sweep submitted")
	}
}
