package exporter

import (
	"context"
	"crypto/tls"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	tlspkg "github.com/polisai/polis-bindings/internal/tls"
	"github.com/polisai/polis-bindings/pkg/config"
	"github.com/polisai/polis-bindings/pkg/credentials"
	"github.com/polisai/polis-bindings/pkg/domain"
)

// Dynatrace exports over OTLP/HTTP to the environment API of the binding.
// Metrics use delta temporality.
type Dynatrace struct {
	deps      Deps
	criteria  domain.SelectionCriteria
	tokenName string
	pin       bool
	transport transportSettings
}

var _ Backend = (*Dynatrace)(nil)

// NewDynatrace resolves the Dynatrace settings from deps.Resolver.
func NewDynatrace(deps Deps) *Dynatrace {
	deps = deps.withProvisioner()
	r := deps.Resolver
	return &Dynatrace{
		deps: deps,
		criteria: domain.SelectionCriteria{
			CandidateLabels: []string{
				config.Resolve(r, config.UserProvidedLabel),
				config.Resolve(r, config.DynatraceLabel),
			},
			RequiredTags: []string{config.Resolve(r, config.DynatraceTag)},
		},
		tokenName: config.Resolve(r, config.DynatraceTokenName),
		pin:       config.Resolve(r, config.DynatracePinCertificate),
		transport: resolveTransport(r, config.BackendDynatrace),
	}
}

func (b *Dynatrace) Name() string { return config.BackendDynatrace }

func (b *Dynatrace) Criteria() domain.SelectionCriteria { return b.criteria }

func (b *Dynatrace) Credentials(instance domain.ServiceInstance) credentials.Set {
	return credentials.ParseDynatrace(instance.Credentials(), b.tokenName)
}

func (b *Dynatrace) Filters() (spans, metrics NameFilter) {
	return b.transport.spanFilter, b.transport.metricFilter
}

// Pipeline validates the API URL and token. With pinning enabled the
// certificate presented by the API host becomes the only trusted root; a
// failed download falls back to the system roots.
func (b *Dynatrace) Pipeline(ctx context.Context, instance domain.ServiceInstance) (Pipeline, error) {
	creds := credentials.ParseDynatrace(instance.Credentials(), b.tokenName)
	if !creds.Validate() {
		return nil, fmt.Errorf("%s binding %q: %w", b.Name(), instance.Name(), domain.ErrInvalidCredentials)
	}

	p := &httpPipeline{
		instance:   instance.Name(),
		tracesURL:  creds.TracesEndpoint(),
		metricsURL: creds.MetricsEndpoint(),
		headers:    map[string]string{"Authorization": creds.AuthorizationHeader()},
		transport:  b.transport,
	}
	if b.pin {
		p.tlsConfig = b.pinnedConfig(ctx, instance.Name(), creds.APIURL())
	}

	b.deps.logger().Debug("Prepared pipeline",
		"backend", b.Name(),
		"binding", instance.Name(),
		"credentials", creds.String(),
		"pinned", p.tlsConfig != nil,
	)
	return p, nil
}

func (b *Dynatrace) pinnedConfig(ctx context.Context, binding, apiURL string) *tls.Config {
	logger := b.deps.logger().With("backend", b.Name(), "binding", binding)

	certPEM, ok := b.deps.downloader().Download(ctx, apiURL)
	if b.deps.Observer != nil {
		b.deps.Observer.CertificateDownloaded(b.Name(), ok)
	}
	if !ok {
		logger.Warn("Certificate pinning unavailable, using system roots", "error", domain.ErrNoCertificate)
		return nil
	}

	material, err := b.deps.provisioner().Materialize(b.Name(), certPEM, "", "")
	if err != nil {
		logger.Warn("Could not write pinned certificate, using system roots", "error", err)
		return nil
	}
	cfg, err := tlspkg.BuildClient(material.ClientConfig(""))
	if err != nil {
		logger.Warn("Could not load pinned certificate, using system roots", "error", err)
		return nil
	}
	return cfg
}

type httpPipeline struct {
	instance   string
	tracesURL  string
	metricsURL string
	headers    map[string]string
	// tlsConfig is nil unless the certificate is pinned.
	tlsConfig *tls.Config
	transport transportSettings
}

func (p *httpPipeline) Instance() string { return p.instance }

func (p *httpPipeline) SpanExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(p.tracesURL),
		otlptracehttp.WithHeaders(p.headers),
		otlptracehttp.WithTimeout(p.transport.timeout),
	}
	if p.transport.gzip() {
		opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
	} else {
		opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.NoCompression))
	}
	if p.tlsConfig != nil {
		opts = append(opts, otlptracehttp.WithTLSClientConfig(p.tlsConfig))
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("create otlp span exporter: %w", err)
	}
	return exporter, nil
}

func (p *httpPipeline) MetricExporter(ctx context.Context) (sdkmetric.Exporter, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpointURL(p.metricsURL),
		otlpmetrichttp.WithHeaders(p.headers),
		otlpmetrichttp.WithTimeout(p.transport.timeout),
		otlpmetrichttp.WithTemporalitySelector(deltaTemporality),
	}
	if p.transport.gzip() {
		opts = append(opts, otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression))
	} else {
		opts = append(opts, otlpmetrichttp.WithCompression(otlpmetrichttp.NoCompression))
	}
	if p.tlsConfig != nil {
		opts = append(opts, otlpmetrichttp.WithTLSClientConfig(p.tlsConfig))
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}
	return exporter, nil
}

// deltaTemporality reports counters and histograms as deltas. Up-down
// counters stay cumulative.
func deltaTemporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	switch k {
	case sdkmetric.InstrumentKindUpDownCounter, sdkmetric.InstrumentKindObservableUpDownCounter:
		return metricdata.CumulativeTemporality
	}
	return metricdata.DeltaTemporality
}
