package worker

import (
	"context"
	"time"

	"rentflow/internal/metrics"
	"rentflow/internal/service"

	"github.com/rs/zerolog"
)

// LedgerAuditor recomputes pending balances from the holds.
type LedgerAuditor interface {
	Reconcile(ctx context.Context) ([]service.WalletDrift, error)
}

// Reconciler periodically audits the escrow ledger. It never corrects balances, it only
// reports drift through logs and the ledger_drift gauge.
type Reconciler struct {
	auditor  LedgerAuditor
	interval time.Duration
	retry    RetryPolicy
	logger   *zerolog.Logger
}

func NewReconciler(auditor LedgerAuditor, interval time.Duration, retry RetryPolicy, logger *zerolog.Logger) *Reconciler {
	return &Reconciler{
		auditor:  auditor,
		interval: interval,
		retry:    retry,
		logger:   logger,
	}
}

// Start blocks until ctx is done. A non-positive interval disables the worker.
func (r *Reconciler) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info().Msg("ledger reconciler disabled")
		return
	}

	r.logger.Info().Dur("interval", r.interval).Msg("ledger reconciler started")
	defer r.logger.Info().Msg("ledger reconciler stopped")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error().Err(err).Msg("ledger reconciliation failed")
			}
		}
	}
}

// RunOnce performs one audit, retrying storage failures with backoff.
func (r *Reconciler) RunOnce(ctx context.Context) ([]service.WalletDrift, error) {
	var drifts []service.WalletDrift

	err := r.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		drifts, err = r.auditor.Reconcile(ctx)
		if err != nil {
			r.logger.Warn().Err(err).Msg("ledger reconciliation attempt failed")
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.SetLedgerDrift(len(drifts))
	for _, d := range drifts {
		r.logger.Warn().
			Int64("wallet_id", d.WalletID).
			Int64("owner_id", d.OwnerID).
			Str("recorded", d.Recorded.String()).
			Str("expected", d.Expected.String()).
			Msg("pending balance drift")
	}
	if len(drifts) == 0 {
		r.logger.Debug().Msg("ledger consistent")
	}
	return drifts, nil
}
