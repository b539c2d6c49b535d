package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	tlspkg "github.com/polisai/polis-bindings/internal/tls"
	"github.com/polisai/polis-bindings/pkg/binding"
	"github.com/polisai/polis-bindings/pkg/config"
	"github.com/polisai/polis-bindings/pkg/domain"
)

// Selection is the outcome of discovery for one enabled backend.
type Selection struct {
	Backend   Backend
	Traces    bool
	Metrics   bool
	Instances []domain.ServiceInstance
}

// Assembler builds composite exporters from discovered bindings.
type Assembler struct {
	Resolver *config.Resolver
	Observer Observer
	Logger   *slog.Logger
	// Files tracks the certificate files written by the default backends.
	Files *tlspkg.TempFiles

	backends []Backend
}

// NewAssembler creates an assembler that knows the given backends. Without
// backends it registers Cloud Logging and Dynatrace over deps.
func NewAssembler(deps Deps, backends ...Backend) *Assembler {
	deps = deps.withProvisioner()
	if len(backends) == 0 {
		backends = []Backend{NewCloudLogging(deps), NewDynatrace(deps)}
	}
	return &Assembler{
		Resolver: deps.Resolver,
		Observer: deps.Observer,
		Logger:   deps.logger(),
		Files:    deps.Provisioner.Registry(),
		backends: backends,
	}
}

// RemoveFiles deletes the certificate files tracked in a.Files.
func (a *Assembler) RemoveFiles() error {
	if a.Files == nil {
		return nil
	}
	return a.Files.RemoveAll()
}

// Backend returns the registered backend called name.
func (a *Assembler) Backend(name string) (Backend, bool) {
	for _, b := range a.backends {
		if b.Name() == name {
			return b, true
		}
	}
	return nil, false
}

// Discover selects the bindings of every backend named in the traces and
// metrics exporter lists, in order of first mention. The prometheus and none
// entries are not binding backends and are skipped.
func (a *Assembler) Discover(catalog []domain.ServiceInstance) []Selection {
	traces := config.Resolve(a.Resolver, config.TracesExporters)
	metrics := config.Resolve(a.Resolver, config.MetricsExporters)

	var selections []Selection
	for _, name := range slices.Concat(traces, metrics) {
		if name == config.BackendPrometheus || name == config.BackendNone {
			continue
		}
		if slices.ContainsFunc(selections, func(s Selection) bool { return s.Backend.Name() == name }) {
			continue
		}
		b, ok := a.Backend(name)
		if !ok {
			a.logger().Warn("Ignoring exporter", "exporter", name, "error", fmt.Errorf("%q: %w", name, domain.ErrUnknownBackend))
			continue
		}

		instances := binding.Select(catalog, b.Criteria())
		a.logger().Info("Discovered bindings", "backend", name, "count", len(instances))
		selections = append(selections, Selection{
			Backend:   b,
			Traces:    slices.Contains(traces, name),
			Metrics:   slices.Contains(metrics, name),
			Instances: instances,
		})
	}
	return selections
}

// Pipelines builds one pipeline per binding. Bindings whose credentials are
// incomplete, or whose transport cannot be prepared, are counted in skipped.
func (a *Assembler) Pipelines(ctx context.Context, b Backend, instances []domain.ServiceInstance) (pipelines []Pipeline, skipped int) {
	for _, instance := range instances {
		p, err := b.Pipeline(ctx, instance)
		if err != nil {
			skipped++
			if errors.Is(err, domain.ErrInvalidCredentials) {
				a.logger().Warn("Binding has incomplete credentials, exporting nothing for it",
					"backend", b.Name(), "binding", instance.Name())
			} else {
				a.logger().Warn("Could not prepare pipeline, exporting nothing for it",
					"backend", b.Name(), "binding", instance.Name(), "error", err)
			}
			continue
		}
		pipelines = append(pipelines, p)
	}
	return pipelines, skipped
}

// SpanExporter assembles the span exporter of backend b over instances.
func (a *Assembler) SpanExporter(ctx context.Context, b Backend, instances []domain.ServiceInstance) sdktrace.SpanExporter {
	pipelines, skipped := a.Pipelines(ctx, b, instances)
	return a.spanExporter(ctx, b, pipelines, skipped)
}

// MetricExporter assembles the metric exporter of backend b over instances.
func (a *Assembler) MetricExporter(ctx context.Context, b Backend, instances []domain.ServiceInstance) sdkmetric.Exporter {
	pipelines, skipped := a.Pipelines(ctx, b, instances)
	return a.metricExporter(ctx, b, pipelines, skipped)
}

// Exporters assembles the exporters of a selection, preparing each pipeline
// once for both signals. Disabled signals yield nil.
func (a *Assembler) Exporters(ctx context.Context, s Selection) (sdktrace.SpanExporter, sdkmetric.Exporter) {
	pipelines, skipped := a.Pipelines(ctx, s.Backend, s.Instances)

	var (
		spans   sdktrace.SpanExporter
		metrics sdkmetric.Exporter
	)
	if s.Traces {
		spans = a.spanExporter(ctx, s.Backend, pipelines, skipped)
	}
	if s.Metrics {
		metrics = a.metricExporter(ctx, s.Backend, pipelines, skipped)
	}
	return spans, metrics
}

func (a *Assembler) spanExporter(ctx context.Context, b Backend, pipelines []Pipeline, skipped int) sdktrace.SpanExporter {
	a.observeNoop(b.Name(), SignalTraces, skipped)

	var members []sdktrace.SpanExporter
	for _, p := range pipelines {
		exporter, err := p.SpanExporter(ctx)
		if err != nil {
			a.logger().Warn("Could not create span exporter, exporting nothing for it",
				"backend", b.Name(), "binding", p.Instance(), "error", err)
			a.observe(b.Name(), SignalTraces, false)
			continue
		}
		a.observe(b.Name(), SignalTraces, true)
		members = append(members, exporter)
	}

	spanFilter, _ := b.Filters()
	switch len(members) {
	case 0:
		return NoopSpanExporter{}
	case 1:
		return FilterSpans(members[0], spanFilter)
	default:
		return FilterSpans(NewMultiSpanExporter(members...), spanFilter)
	}
}

func (a *Assembler) metricExporter(ctx context.Context, b Backend, pipelines []Pipeline, skipped int) sdkmetric.Exporter {
	a.observeNoop(b.Name(), SignalMetrics, skipped)

	var members []sdkmetric.Exporter
	for _, p := range pipelines {
		exporter, err := p.MetricExporter(ctx)
		if err != nil {
			a.logger().Warn("Could not create metric exporter, exporting nothing for it",
				"backend", b.Name(), "binding", p.Instance(), "error", err)
			a.observe(b.Name(), SignalMetrics, false)
			continue
		}
		a.observe(b.Name(), SignalMetrics, true)
		members = append(members, exporter)
	}

	_, metricFilter := b.Filters()
	switch len(members) {
	case 0:
		return NoopMetricExporter{}
	case 1:
		return FilterMetrics(members[0], metricFilter)
	default:
		return FilterMetrics(NewMultiMetricExporter(members...), metricFilter)
	}
}

func (a *Assembler) observe(backend, signal string, real bool) {
	if a.Observer != nil {
		a.Observer.PipelineBuilt(backend, signal, real)
	}
}

func (a *Assembler) observeNoop(backend, signal string, n int) {
	for range n {
		a.observe(backend, signal, false)
	}
}

func (a *Assembler) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
