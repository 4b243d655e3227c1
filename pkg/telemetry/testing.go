// ABOUTME: In-memory telemetry for tests that need to assert on recorded metrics and spans
// ABOUTME: Backed by the real SDK providers with a manual metric reader and an in-memory span exporter

package telemetry

import (
	"context"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// Recorder is a Telemetry that keeps everything it records in memory.
type Recorder struct {
	*TelemetryProvider
	reader *sdkmetric.ManualReader
	spans  *tracetest.InMemoryExporter
}

// NewRecorder creates an enabled, fully sampled in-memory telemetry instance.
func NewRecorder() *Recorder {
	cfg := DefaultConfig()
	cfg.Enabled = true

	reader := sdkmetric.NewManualReader()
	spans := tracetest.NewInMemoryExporter()
	return &Recorder{
		TelemetryProvider: newProvider(cfg, reader, spans),
		reader:            reader,
		spans:             spans,
	}
}

func (r *Recorder) collect() []metricdata.Metrics {
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(context.Background(), &rm); err != nil {
		return nil
	}
	var metrics []metricdata.Metrics
	for _, sm := range rm.ScopeMetrics {
		metrics = append(metrics, sm.Metrics...)
	}
	return metrics
}

// CounterValue returns the total of the named counter across all attribute sets.
func (r *Recorder) CounterValue(name string) int64 {
	var total int64
	for _, m := range r.collect() {
		if m.Name != name {
			continue
		}
		if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

// HistogramCount returns how many values the named histogram has recorded.
func (r *Recorder) HistogramCount(name string) uint64 {
	var count uint64
	for _, m := range r.collect() {
		if m.Name != name {
			continue
		}
		if hist, ok := m.Data.(metricdata.Histogram[float64]); ok {
			for _, dp := range hist.DataPoints {
				count += dp.Count
			}
		}
	}
	return count
}

// SpanNames returns the names of all ended spans in the order they ended.
func (r *Recorder) SpanNames() []string {
	var names []string
	for _, span := range r.spans.GetSpans() {
		names = append(names, span.Name)
	}
	return names
}
