package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Operation names used as the "operation" attribute.
const (
	OpProvision = "provision_seed"
	OpGenerate  = "generate_code"
	OpVerify    = "verify_code"
	OpSign      = "sign_commit"
)

// Instruments are the counters and histograms recorded by the service.
type Instruments struct {
	operations metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewInstruments registers the service instruments on m.
func NewInstruments(m *Meter) (*Instruments, error) {
	ops, err := m.CreateCounter("seedkeeper_operations_total", "Core operations by name and result")
	if err != nil {
		return nil, err
	}
	dur, err := m.CreateHistogram("seedkeeper_operation_duration", "Core operation latency", "ms")
	if err != nil {
		return nil, err
	}
	return &Instruments{operations: ops, duration: dur}, nil
}

// Record counts one operation with its result and latency. result is a
// stable error code or "ok".
func (i *Instruments) Record(ctx context.Context, operation, result string, started time.Time) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", result),
	)
	i.operations.Add(ctx, 1, attrs)
	i.duration.Record(ctx, float64(time.Since(started).Microseconds())/1000, attrs)
}
