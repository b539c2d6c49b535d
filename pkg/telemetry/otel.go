package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/otlptranslator"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	tlspkg "github.com/polisai/polis-bindings/internal/tls"
	"github.com/polisai/polis-bindings/pkg/binding"
	"github.com/polisai/polis-bindings/pkg/config"
	"github.com/polisai/polis-bindings/pkg/domain"
	"github.com/polisai/polis-bindings/pkg/exporter"
)

// Options describes the telemetry bootstrap inputs.
type Options struct {
	Resolver *config.Resolver
	// LookupEnv reads VCAP_SERVICES and VCAP_APPLICATION. Defaults to
	// os.LookupEnv.
	LookupEnv func(string) (string, bool)
	Logger    *slog.Logger
	// TempFiles receives the materialized certificates. A private registry is
	// used when nil; either way Shutdown removes them.
	TempFiles *tlspkg.TempFiles
	// Backends replaces the default Cloud Logging and Dynatrace backends.
	Backends func(exporter.Deps) []exporter.Backend
}

// Providers holds the configured SDK providers.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Resource       *resource.Resource
	Selections     []exporter.Selection
	// Registry backs the Prometheus scrape endpoint. It is nil unless the
	// prometheus metrics exporter is enabled.
	Registry *prometheus.Registry

	files *tlspkg.TempFiles
}

// Setup discovers the service bindings, assembles their exporters and
// installs the resulting providers as the process-wide OpenTelemetry
// providers. A binding catalog that cannot be parsed is logged and treated as
// empty; startup only fails when the SDK itself cannot be configured.
func Setup(ctx context.Context, opts Options) (*Providers, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	files := opts.TempFiles
	if files == nil {
		files = tlspkg.NewTempFiles()
	}
	r := opts.Resolver

	catalog, err := binding.NewParser(logger).FromEnv(lookup)
	if err != nil {
		logger.Error("Could not parse service bindings, continuing without them", "error", err)
		catalog = nil
	}

	app, err := binding.ApplicationFromEnv(lookup)
	if err != nil {
		logger.Warn("Could not parse application description", "error", err)
	}

	res, err := newResource(ctx, config.Resolve(r, config.ServiceName), app)
	if err != nil {
		return nil, err
	}

	events := &bootstrapEvents{}
	deps := exporter.Deps{
		Resolver:    r,
		Provisioner: tlspkg.NewProvisioner(files),
		Downloader:  exporter.NewDownloader(r, logger),
		Observer:    events,
		Logger:      logger,
	}
	var backends []exporter.Backend
	if opts.Backends != nil {
		backends = opts.Backends(deps)
	}
	assembler := exporter.NewAssembler(deps, backends...)

	selections := assembler.Discover(catalog)

	var (
		spanExporters   []sdktrace.SpanExporter
		metricExporters []sdkmetric.Exporter
	)
	for _, s := range selections {
		events.Discovered(s.Backend.Name(), len(s.Instances))
		spans, metrics := assembler.Exporters(ctx, s)
		if spans != nil && !exporter.IsNoop(spans) {
			spanExporters = append(spanExporters, spans)
		}
		if metrics != nil && !exporter.IsNoop(metrics) {
			metricExporters = append(metricExporters, metrics)
		}
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	for _, e := range spanExporters {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(e,
			sdktrace.WithMaxExportBatchSize(512),
			sdktrace.WithBatchTimeout(5*time.Second),
		))
	}

	interval := config.Resolve(r, config.MetricExportInterval)
	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, e := range metricExporters {
		meterOpts = append(meterOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(e, sdkmetric.WithInterval(interval))))
	}

	var registry *prometheus.Registry
	if slices.Contains(config.Resolve(r, config.MetricsExporters), config.BackendPrometheus) {
		registry = prometheus.NewRegistry()
		reader, err := newPrometheusReader(registry)
		if err != nil {
			logger.Warn("Could not create Prometheus exporter, metrics will not be served", "error", err)
			registry = nil
		} else {
			meterOpts = append(meterOpts, sdkmetric.WithReader(reader))
		}
	}

	p := &Providers{
		TracerProvider: sdktrace.NewTracerProvider(traceOpts...),
		MeterProvider:  sdkmetric.NewMeterProvider(meterOpts...),
		Resource:       res,
		Selections:     selections,
		Registry:       registry,
		files:          files,
	}
	otel.SetTracerProvider(p.TracerProvider)
	otel.SetMeterProvider(p.MeterProvider)

	events.replay(ctx)

	logger.Info("Telemetry configured",
		"span_exporters", len(spanExporters),
		"metric_exporters", len(metricExporters),
		"prometheus", registry != nil,
	)
	return p, nil
}

// newPrometheusReader registers a pull exporter with registry. Metric names
// are served with underscores and unit suffixes.
var newPrometheusReader = func(registry prometheus.Registerer) (sdkmetric.Reader, error) {
	return otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithTranslationStrategy(otlptranslator.UnderscoreEscapingWithSuffixes),
	)
}

// MetricsHandler serves the Prometheus registry, or reports false when the
// prometheus exporter is disabled.
func (p *Providers) MetricsHandler() (http.Handler, bool) {
	if p == nil || p.Registry == nil {
		return nil, false
	}
	return promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}), true
}

// Shutdown flushes and stops both providers, then removes the materialized
// certificate files.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}
	if p.files != nil {
		if err := p.files.RemoveAll(); err != nil {
			errs = append(errs, fmt.Errorf("remove temporary files: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Catalog parses the binding catalog from lookup without configuring
// anything. A missing catalog is empty.
func Catalog(lookup func(string) (string, bool), logger *slog.Logger) ([]domain.ServiceInstance, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return binding.NewParser(logger).FromEnv(lookup)
}
