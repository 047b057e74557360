package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName names the harness tracer and meter
const InstrumentationName = "github.com/platinummonkey/harness"

// OTelMetrics holds OpenTelemetry metric instruments.
// Without InitOTel the global meter provider is a no-op.
type OTelMetrics struct {
	initDuration    metric.Float64Histogram
	runtimeDuration metric.Float64Histogram
	transitions     metric.Int64Counter
	running         metric.Int64UpDownCounter
}

// NewOTelMetrics creates a new OTel metrics instance
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter(InstrumentationName)

	m := &OTelMetrics{}
	var err error

	m.initDuration, err = meter.Float64Histogram(
		"harness.plugin.init.duration",
		metric.WithDescription("Plugin init hook duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create init duration histogram: %w", err)
	}

	m.runtimeDuration, err = meter.Float64Histogram(
		"harness.plugin.runtime",
		metric.WithDescription("Time a plugin instance ran before its start hook returned"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime histogram: %w", err)
	}

	m.transitions, err = meter.Int64Counter(
		"harness.plugin.transitions",
		metric.WithDescription("Total number of plugin instance state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transitions counter: %w", err)
	}

	m.running, err = meter.Int64UpDownCounter(
		"harness.plugin.running",
		metric.WithDescription("Number of start hooks currently running"),
		metric.WithUnit("{instance}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create running counter: %w", err)
	}

	return m, nil
}

// RecordInit records an init hook
func (m *OTelMetrics) RecordInit(ctx context.Context, plugin string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("plugin.name", plugin),
		attribute.Bool("error", err != nil),
	}
	m.initDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordStarted marks a start hook as running
func (m *OTelMetrics) RecordStarted(ctx context.Context, plugin string) {
	if m == nil {
		return
	}
	m.running.Add(ctx, 1, metric.WithAttributes(attribute.String("plugin.name", plugin)))
}

// RecordRuntime records a start hook that returned
func (m *OTelMetrics) RecordRuntime(ctx context.Context, plugin, key string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("plugin.name", plugin),
		attribute.String("plugin.key", key),
		attribute.Bool("error", err != nil),
	}
	m.running.Add(ctx, -1, metric.WithAttributes(attribute.String("plugin.name", plugin)))
	m.runtimeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordTransition records an instance state transition
func (m *OTelMetrics) RecordTransition(ctx context.Context, plugin, state string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("plugin.name", plugin),
		attribute.String("plugin.state", state),
	))
}
