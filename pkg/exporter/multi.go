package exporter

import (
	"context"
	"errors"
	"slices"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// MultiSpanExporter forwards every call to all members and joins their
// errors.
type MultiSpanExporter struct {
	members []sdktrace.SpanExporter
}

var _ sdktrace.SpanExporter = (*MultiSpanExporter)(nil)

// NewMultiSpanExporter fans out to members.
func NewMultiSpanExporter(members ...sdktrace.SpanExporter) *MultiSpanExporter {
	return &MultiSpanExporter{members: slices.Clone(members)}
}

// Members returns the exporters the calls are forwarded to.
func (m *MultiSpanExporter) Members() []sdktrace.SpanExporter {
	return slices.Clone(m.members)
}

func (m *MultiSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	var errs []error
	for _, member := range m.members {
		if err := member.ExportSpans(ctx, spans); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSpanExporter) Shutdown(ctx context.Context) error {
	var errs []error
	for _, member := range m.members {
		if err := member.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiMetricExporter forwards every call to all members and joins their
// errors. Temporality and aggregation are taken from the first member; the
// members of one backend share them.
type MultiMetricExporter struct {
	members []sdkmetric.Exporter
}

var _ sdkmetric.Exporter = (*MultiMetricExporter)(nil)

// NewMultiMetricExporter fans out to members.
func NewMultiMetricExporter(members ...sdkmetric.Exporter) *MultiMetricExporter {
	return &MultiMetricExporter{members: slices.Clone(members)}
}

// Members returns the exporters the calls are forwarded to.
func (m *MultiMetricExporter) Members() []sdkmetric.Exporter {
	return slices.Clone(m.members)
}

func (m *MultiMetricExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	if len(m.members) == 0 {
		return sdkmetric.DefaultTemporalitySelector(k)
	}
	return m.members[0].Temporality(k)
}

func (m *MultiMetricExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	if len(m.members) == 0 {
		return sdkmetric.DefaultAggregationSelector(k)
	}
	return m.members[0].Aggregation(k)
}

func (m *MultiMetricExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	return m.each(func(e sdkmetric.Exporter) error { return e.Export(ctx, rm) })
}

func (m *MultiMetricExporter) ForceFlush(ctx context.Context) error {
	return m.each(func(e sdkmetric.Exporter) error { return e.ForceFlush(ctx) })
}

func (m *MultiMetricExporter) Shutdown(ctx context.Context) error {
	return m.each(func(e sdkmetric.Exporter) error { return e.Shutdown(ctx) })
}

func (m *MultiMetricExporter) each(fn func(sdkmetric.Exporter) error) error {
	var errs []error
	for _, member := range m.members {
		if err := fn(member); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
