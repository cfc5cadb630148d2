// Package reconciler periodically checks every account's recorded balance
// against the sum of its entries and reports drift.
package reconciler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/ledgerbook/internal/usecase"
)

// ReportGenerator produces reconciliation reports.
type ReportGenerator interface {
	GenerateReconciliationReport(ctx context.Context) (*usecase.ReconciliationReport, error)
}

// Observer records the outcome of each run.
type Observer interface {
	ObserveReconciliation(discrepancies int)
}

// Worker runs reconciliation on a fixed interval.
type Worker struct {
	reports  ReportGenerator
	metrics  Observer
	logger   zerolog.Logger
	interval time.Duration
}

// NewWorker creates a Worker. metrics may be nil.
func NewWorker(reports ReportGenerator, metrics Observer, logger zerolog.Logger, interval time.Duration) *Worker {
	return &Worker{
		reports:  reports,
		metrics:  metrics,
		logger:   logger.With().Str("component", "reconciler").Logger(),
		interval: interval,
	}
}

// Start runs until ctx is cancelled. A non-positive interval disables the
// worker and Start returns nil immediately.
func (w *Worker) Start(ctx context.Context) error {
	if w.interval <= 0 {
		w.logger.Info().Msg("reconciler disabled")
		return nil
	}

	w.logger.Info().Dur("interval", w.interval).Msg("reconciler started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("reconciler shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error().Err(err).Msg("reconciliation failed")
			}
		}
	}
}

// RunOnce generates one report and logs every discrepancy it finds.
func (w *Worker) RunOnce(ctx context.Context) (*usecase.ReconciliationReport, error) {
	report, err := w.reports.GenerateReconciliationReport(ctx)
	if err != nil {
		return nil, err
	}

	if w.metrics != nil {
		w.metrics.ObserveReconciliation(len(report.Discrepancies))
	}

	for _, d := range report.Discrepancies {
		w.logger.Warn().
			Str("account_number", d.AccountNumber).
			Str("recorded_balance", d.RecordedBalance.String()).
			Str("calculated_balance", d.CalculatedBalance.String()).
			Str("difference", d.Difference.String()).
			Msg("balance discrepancy")
	}

	w.logger.Info().
		Int("total_accounts", report.TotalAccounts).
		Int("reconciled_accounts", report.ReconciledAccounts).
		Int("discrepancies", len(report.Discrepancies)).
		Msg("reconciliation finished")

	return report, nil
}
