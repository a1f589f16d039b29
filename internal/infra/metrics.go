package infra

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics bundles the counters the reconciliation core reports. Without an
// SDK installed the counters are no-ops, so instrumented code never branches
// on whether metrics are wired.
type Metrics struct {
	SweepsRun            metric.Int64Counter
	SweepsSkipped        metric.Int64Counter
	JobsReconciled       metric.Int64Counter
	RefundsIssued        metric.Int64Counter
	IntegrityFaults      metric.Int64Counter
	TimingRegressions    metric.Int64Counter
	NotificationsDropped metric.Int64Counter
}

// NewMetrics registers the core counters on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("server/reconcile")

	m := &Metrics{}
	var err error
	if m.SweepsRun, err = meter.Int64Counter("reconcile_sweeps_total",
		metric.WithDescription("Reconciliation sweeps executed by this instance")); err != nil {
		return nil, err
	}
	if m.SweepsSkipped, err = meter.Int64Counter("reconcile_sweeps_skipped_total",
		metric.WithDescription("Sweeps skipped because another instance held the lock")); err != nil {
		return nil, err
	}
	if m.JobsReconciled, err = meter.Int64Counter("reconcile_jobs_total",
		metric.WithDescription("Jobs whose signals were merged during a sweep")); err != nil {
		return nil, err
	}
	if m.RefundsIssued, err = meter.Int64Counter("ledger_refunds_total",
		metric.WithDescription("Refund ledger entries written")); err != nil {
		return nil, err
	}
	if m.IntegrityFaults, err = meter.Int64Counter("integrity_faults_total",
		metric.WithDescription("Jobs whose result digest failed verification")); err != nil {
		return nil, err
	}
	if m.TimingRegressions, err = meter.Int64Counter("reconcile_timing_regressions_total",
		metric.WithDescription("Escrow timing updates rejected for moving backwards")); err != nil {
		return nil, err
	}
	if m.NotificationsDropped, err = meter.Int64Counter("notify_dropped_total",
		metric.WithDescription("Malformed or undeliverable change notifications dropped")); err != nil {
		return nil, err
	}
	return m, nil
}

// CountJob records one reconciled job tagged by type.
func (m *Metrics) CountJob(ctx context.Context, jobType string) {
	if m == nil {
		return
	}
	m.JobsReconciled.Add(ctx, 1, metric.WithAttributes(attribute.String("job_type", jobType)))
}
