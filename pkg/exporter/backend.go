package exporter

import (
	"context"
	"log/slog"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	tlspkg "github.com/polisai/polis-bindings/internal/tls"
	"github.com/polisai/polis-bindings/pkg/config"
	"github.com/polisai/polis-bindings/pkg/credentials"
	"github.com/polisai/polis-bindings/pkg/domain"
)

// Signal names used in logs and metrics.
const (
	SignalTraces  = "traces"
	SignalMetrics = "metrics"
)

// Pipeline is the export configuration derived from one valid binding.
type Pipeline interface {
	// Instance names the binding the pipeline was built from.
	Instance() string
	SpanExporter(ctx context.Context) (sdktrace.SpanExporter, error)
	MetricExporter(ctx context.Context) (sdkmetric.Exporter, error)
}

// Backend turns bindings of one service type into pipelines.
type Backend interface {
	Name() string
	// Criteria selects the bindings this backend consumes.
	Criteria() domain.SelectionCriteria
	// Credentials extracts the backend view of the binding credentials.
	Credentials(instance domain.ServiceInstance) credentials.Set
	// Pipeline validates the binding credentials and prepares the transport.
	// Incomplete credentials yield an error wrapping
	// domain.ErrInvalidCredentials.
	Pipeline(ctx context.Context, instance domain.ServiceInstance) (Pipeline, error)
	// Filters returns the span and metric name filters of the backend.
	Filters() (spans, metrics NameFilter)
}

// Observer is notified about assembly outcomes.
type Observer interface {
	PipelineBuilt(backend, signal string, real bool)
	CertificateDownloaded(backend string, ok bool)
}

// Deps carries the collaborators shared by all backends.
type Deps struct {
	Resolver    *config.Resolver
	Provisioner *tlspkg.Provisioner
	Downloader  *tlspkg.Downloader
	Observer    Observer
	Logger      *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// withProvisioner fills in a provisioner so that every copy of d shares one
// file registry.
func (d Deps) withProvisioner() Deps {
	if d.Provisioner == nil {
		d.Provisioner = tlspkg.NewProvisioner(nil)
	}
	return d
}

func (d Deps) provisioner() *tlspkg.Provisioner {
	return d.withProvisioner().Provisioner
}

func (d Deps) downloader() *tlspkg.Downloader {
	if d.Downloader != nil {
		return d.Downloader
	}
	return NewDownloader(d.Resolver, d.logger())
}

// NewDownloader creates a certificate downloader configured from r.
func NewDownloader(r *config.Resolver, logger *slog.Logger) *tlspkg.Downloader {
	d := tlspkg.NewDownloader(config.Resolve(r, config.CertificateDownloadTimeout), logger)
	d.Retries = config.Resolve(r, config.CertificateDownloadRetries)
	return d
}

// transportSettings are the resolved exporter settings of one backend.
type transportSettings struct {
	compression  string
	timeout      time.Duration
	spanFilter   NameFilter
	metricFilter NameFilter
}

func resolveTransport(r *config.Resolver, backend string) transportSettings {
	s := config.ExporterSettingsFor(backend)
	return transportSettings{
		compression: config.Resolve(r, s.Compression),
		timeout:     config.Resolve(r, s.Timeout),
		spanFilter: NewNameFilter(
			config.Resolve(r, s.SpansInclude),
			config.Resolve(r, s.SpansExclude),
		),
		metricFilter: NewNameFilter(
			config.Resolve(r, s.MetricsInclude),
			config.Resolve(r, s.MetricsExclude),
		),
	}
}

func (t transportSettings) gzip() bool {
	return t.compression == "gzip"
}
