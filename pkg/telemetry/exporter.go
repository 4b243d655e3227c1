// ABOUTME: Exporter factory for the metric and trace destinations a TelemetryProvider writes to
// ABOUTME: Only stdout-style exporters are supported; output goes to a caller-supplied writer

package telemetry

import (
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// createMetricReader creates a periodic reader pushing to the configured exporter.
func createMetricReader(cfg Config, w io.Writer) (sdkmetric.Reader, error) {
	if !cfg.HasExporter("stdout") {
		return sdkmetric.NewManualReader(), nil
	}

	exporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(w),
		stdoutmetric.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
	}
	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.ExportInterval)), nil
}

// createSpanExporter creates the trace exporter, or nil when none is configured.
func createSpanExporter(cfg Config, w io.Writer) (sdktrace.SpanExporter, error) {
	if !cfg.HasExporter("stdout") {
		return nil, nil
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
	}
	return exporter, nil
}
