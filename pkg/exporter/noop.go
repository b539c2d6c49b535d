package exporter

import (
	"context"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NoopSpanExporter accepts every batch and exports nothing.
type NoopSpanExporter struct{}

var _ sdktrace.SpanExporter = NoopSpanExporter{}

func (NoopSpanExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }

func (NoopSpanExporter) Shutdown(context.Context) error { return nil }

// NoopMetricExporter accepts every export and sends nothing.
type NoopMetricExporter struct{}

var _ sdkmetric.Exporter = NoopMetricExporter{}

func (NoopMetricExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (NoopMetricExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (NoopMetricExporter) Export(context.Context, *metricdata.ResourceMetrics) error { return nil }

func (NoopMetricExporter) ForceFlush(context.Context) error { return nil }

func (NoopMetricExporter) Shutdown(context.Context) error { return nil }

// IsNoop reports whether exporter is one of the no-op exporters.
func IsNoop(exporter any) bool {
	switch exporter.(type) {
	case NoopSpanExporter, *NoopSpanExporter, NoopMetricExporter, *NoopMetricExporter:
		return true
	}
	return false
}
