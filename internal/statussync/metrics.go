package statussync

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "lens-tracker/statussync"

// Metrics holds the synchronizer's instruments.
type Metrics struct {
	runs     metric.Int64Counter
	failures metric.Int64Counter
	synced   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics creates instruments on mp. Instrument errors fall back to the
// bare-named instrument; they only happen with invalid options.
func NewMetrics(mp metric.MeterProvider) *Metrics {
	meter := mp.Meter(instrumentationName)
	m := &Metrics{}
	var err error

	m.runs, err = meter.Int64Counter("statussync.runs",
		metric.WithDescription("Synchronizer runs started"),
		metric.WithUnit("{run}"))
	if err != nil {
		m.runs, _ = meter.Int64Counter("statussync.runs")
	}
	m.failures, err = meter.Int64Counter("statussync.failures",
		metric.WithDescription("Synchronizer runs that aborted"),
		metric.WithUnit("{run}"))
	if err != nil {
		m.failures, _ = meter.Int64Counter("statussync.failures")
	}
	m.synced, err = meter.Int64Counter("statussync.rows",
		metric.WithDescription("Rows copied into the canonical status log"),
		metric.WithUnit("{row}"))
	if err != nil {
		m.synced, _ = meter.Int64Counter("statussync.rows")
	}
	m.duration, err = meter.Float64Histogram("statussync.duration",
		metric.WithDescription("Synchronizer run duration in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		m.duration, _ = meter.Float64Histogram("statussync.duration")
	}
	return m
}

// NewNoopMetrics creates metrics that do nothing.
func NewNoopMetrics() *Metrics {
	return NewMetrics(noop.NewMeterProvider())
}

func (m *Metrics) record(ctx context.Context, trigger string, synced int, ms float64, failed bool) {
	attrs := metric.WithAttributes(attribute.String("trigger", trigger))
	m.runs.Add(ctx, 1, attrs)
	m.duration.Record(ctx, ms, attrs)
	if failed {
		m.failures.Add(ctx, 1, attrs)
	}
	if synced > 0 {
		m.synced.Add(ctx, int64(synced), attrs)
	}
}
