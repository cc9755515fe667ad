package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"logistics-payment-engine/internal/usecase"
)

// TransactionReconciler periodically resolves transactions stuck in pending
// or processing after gateway timeouts or crashes mid-flow, by asking the
// provider for the real outcome.
type TransactionReconciler struct {
	interval   time.Duration
	staleAfter time.Duration
	batch      int
	uc         usecase.Reconciler
	log        *zerolog.Logger
}

func NewTransactionReconciler(interval, staleAfter time.Duration, batch int, uc usecase.Reconciler, logger *zerolog.Logger) *TransactionReconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if batch <= 0 {
		batch = 50
	}
	compLog := logger.With().Str("component", "TransactionReconciler").Logger()
	return &TransactionReconciler{
		interval:   interval,
		staleAfter: staleAfter,
		batch:      batch,
		uc:         uc,
		log:        &compLog,
	}
}

func (w *TransactionReconciler) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting transaction reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping transaction reconciler")
			return ctx.Err()
		case <-t.C:
			n, err := w.uc.ReconcileStale(ctx, w.staleAfter, w.batch)
			if err != nil {
				w.log.Error().Err(err).Msg("reconcile sweep failed")
				continue
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("stale transactions reconciled")
			}
		}
	}
}
