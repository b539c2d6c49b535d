package exporter

import (
	"context"
	"crypto/tls"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	grpccreds "google.golang.org/grpc/credentials"

	tlspkg "github.com/polisai/polis-bindings/internal/tls"
	"github.com/polisai/polis-bindings/pkg/config"
	"github.com/polisai/polis-bindings/pkg/credentials"
	"github.com/polisai/polis-bindings/pkg/domain"
)

// CloudLogging exports over OTLP/gRPC with mutual TLS built from the binding
// certificates.
type CloudLogging struct {
	deps      Deps
	criteria  domain.SelectionCriteria
	transport transportSettings
}

var _ Backend = (*CloudLogging)(nil)

// NewCloudLogging resolves the Cloud Logging settings from deps.Resolver.
func NewCloudLogging(deps Deps) *CloudLogging {
	deps = deps.withProvisioner()
	r := deps.Resolver
	return &CloudLogging{
		deps: deps,
		criteria: domain.SelectionCriteria{
			CandidateLabels: []string{
				config.Resolve(r, config.UserProvidedLabel),
				config.Resolve(r, config.CloudLoggingLabel),
			},
			RequiredTags: []string{config.Resolve(r, config.CloudLoggingTag)},
		},
		transport: resolveTransport(r, config.BackendCloudLogging),
	}
}

func (b *CloudLogging) Name() string { return config.BackendCloudLogging }

func (b *CloudLogging) Criteria() domain.SelectionCriteria { return b.criteria }

func (b *CloudLogging) Credentials(instance domain.ServiceInstance) credentials.Set {
	return credentials.ParseCloudLogging(instance.Credentials())
}

func (b *CloudLogging) Filters() (spans, metrics NameFilter) {
	return b.transport.spanFilter, b.transport.metricFilter
}

// Pipeline writes the binding certificates to temporary files and builds a
// verified client configuration over them. Write or load failures degrade to
// the system roots without a client certificate.
func (b *CloudLogging) Pipeline(_ context.Context, instance domain.ServiceInstance) (Pipeline, error) {
	creds := credentials.ParseCloudLogging(instance.Credentials())
	if !creds.Validate() {
		return nil, fmt.Errorf("%s binding %q: %w", b.Name(), instance.Name(), domain.ErrInvalidCredentials)
	}

	logger := b.deps.logger().With("backend", b.Name(), "binding", instance.Name())

	material, err := b.deps.provisioner().Materialize(b.Name(), creds.ServerCert(), creds.ClientCert(), creds.ClientKey())
	if err != nil {
		logger.Warn("Could not write secure material, continuing without it", "error", err)
	}

	tlsConfig, err := tlspkg.BuildClient(material.ClientConfig(""))
	if err != nil {
		logger.Warn("Could not load secure material, using system roots", "error", err)
		if tlsConfig, err = tlspkg.BuildClient(tlspkg.Config{}); err != nil {
			return nil, err
		}
	}

	logger.Debug("Prepared pipeline", "credentials", creds.String(), "mtls", len(tlsConfig.Certificates) > 0)

	return &grpcPipeline{
		instance:  instance.Name(),
		endpoint:  creds.Endpoint(),
		tlsConfig: tlsConfig,
		transport: b.transport,
	}, nil
}

type grpcPipeline struct {
	instance  string
	endpoint  string
	tlsConfig *tls.Config
	transport transportSettings
}

func (p *grpcPipeline) Instance() string { return p.instance }

func (p *grpcPipeline) SpanExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpointURL(p.endpoint),
		otlptracegrpc.WithTLSCredentials(grpccreds.NewTLS(p.tlsConfig)),
		otlptracegrpc.WithTimeout(p.transport.timeout),
	}
	if p.transport.gzip() {
		opts = append(opts, otlptracegrpc.WithCompressor("gzip"))
	}

	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("create otlp span exporter: %w", err)
	}
	return exporter, nil
}

func (p *grpcPipeline) MetricExporter(ctx context.Context) (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpointURL(p.endpoint),
		otlpmetricgrpc.WithTLSCredentials(grpccreds.NewTLS(p.tlsConfig)),
		otlpmetricgrpc.WithTimeout(p.transport.timeout),
	}
	if p.transport.gzip() {
		opts = append(opts, otlpmetricgrpc.WithCompressor("gzip"))
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}
	return exporter, nil
}
