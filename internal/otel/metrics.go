package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "panerun"

// Metrics holds all metric instruments. Counters are cumulative and
// safe for concurrent use; a nil *Metrics is safe to record against.
type Metrics struct {
	// Execution lifecycle counters
	Submissions metric.Int64Counter
	Completions metric.Int64Counter // partitioned by terminal status
	Retries     metric.Int64Counter
	Cancels     metric.Int64Counter

	// Transport failure counter (partitioned by operation)
	TransportErrors metric.Int64Counter
}

// NewMetrics creates all metric instruments. With no MeterProvider
// registered they are no-ops, so this is safe to call unconditionally.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Submissions, err = meter.Int64Counter("executions.submitted",
		metric.WithDescription("Commands submitted for tracking"))
	if err != nil {
		return nil, err
	}

	m.Completions, err = meter.Int64Counter("executions.finished",
		metric.WithDescription("Executions that reached a terminal status, partitioned by status"))
	if err != nil {
		return nil, err
	}

	m.Retries, err = meter.Int64Counter("executions.retries",
		metric.WithDescription("Composite line re-sends after a missed start marker"))
	if err != nil {
		return nil, err
	}

	m.Cancels, err = meter.Int64Counter("executions.cancels",
		metric.WithDescription("Cancel requests that transitioned a record"))
	if err != nil {
		return nil, err
	}

	m.TransportErrors, err = meter.Int64Counter("transport.errors",
		metric.WithDescription("Failed tmux invocations, partitioned by operation"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordSubmission records one accepted submission.
func (m *Metrics) RecordSubmission(ctx context.Context) {
	if m == nil {
		return
	}
	m.Submissions.Add(ctx, 1)
}

// RecordCompletion records a terminal transition with its status.
func (m *Metrics) RecordCompletion(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.Completions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("execution.status", status),
	))
}

// RecordRetry records one composite re-send.
func (m *Metrics) RecordRetry(ctx context.Context) {
	if m == nil {
		return
	}
	m.Retries.Add(ctx, 1)
}

// RecordCancel records a cancel that actually transitioned a record.
func (m *Metrics) RecordCancel(ctx context.Context) {
	if m == nil {
		return
	}
	m.Cancels.Add(ctx, 1)
}

// RecordTransportError records a failed tmux invocation.
func (m *Metrics) RecordTransportError(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.TransportErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("transport.op", op),
	))
}
