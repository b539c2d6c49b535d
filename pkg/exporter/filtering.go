package exporter

import (
	"context"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// FilterSpans drops spans whose name the filter rejects. A filter that admits
// everything returns next unchanged.
func FilterSpans(next sdktrace.SpanExporter, filter NameFilter) sdktrace.SpanExporter {
	if filter.IsZero() {
		return next
	}
	return &filteredSpanExporter{next: next, filter: filter}
}

type filteredSpanExporter struct {
	next   sdktrace.SpanExporter
	filter NameFilter
}

func (f *filteredSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	kept := make([]sdktrace.ReadOnlySpan, 0, len(spans))
	for _, span := range spans {
		if f.filter.Allow(span.Name()) {
			kept = append(kept, span)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return f.next.ExportSpans(ctx, kept)
}

func (f *filteredSpanExporter) Shutdown(ctx context.Context) error {
	return f.next.Shutdown(ctx)
}

// FilterMetrics drops metrics whose name the filter rejects. Scopes left
// without metrics are dropped as well. A filter that admits everything
// returns next unchanged.
func FilterMetrics(next sdkmetric.Exporter, filter NameFilter) sdkmetric.Exporter {
	if filter.IsZero() {
		return next
	}
	return &filteredMetricExporter{Exporter: next, filter: filter}
}

type filteredMetricExporter struct {
	sdkmetric.Exporter
	filter NameFilter
}

func (f *filteredMetricExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	if rm == nil {
		return f.Exporter.Export(ctx, rm)
	}

	filtered := &metricdata.ResourceMetrics{Resource: rm.Resource}
	for _, sm := range rm.ScopeMetrics {
		var metrics []metricdata.Metrics
		for _, m := range sm.Metrics {
			if f.filter.Allow(m.Name) {
				metrics = append(metrics, m)
			}
		}
		if len(metrics) == 0 {
			continue
		}
		filtered.ScopeMetrics = append(filtered.ScopeMetrics, metricdata.ScopeMetrics{
			Scope:   sm.Scope,
			Metrics: metrics,
		})
	}
	if len(filtered.ScopeMetrics) == 0 {
		return nil
	}
	return f.Exporter.Export(ctx, filtered)
}
