package exporter

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"math/big"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	collectormetrics "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	grpccreds "google.golang.org/grpc/credentials"

	tlspkg "github.com/polisai/polis-bindings/internal/tls"
)

// testPKI is a CA with one server and one client certificate.
type testPKI struct {
	caPEM         []byte
	serverCertPEM []byte
	serverKeyPEM  []byte
	clientCertPEM []byte
	clientKeyPEM  []byte
}

func newTestPKI(t *testing.T) testPKI {
	t.Helper()

	caPEM, caKeyPEM, err := tlspkg.GenerateSelfSignedCertificate(tlspkg.CertificateGenerationOptions{
		CommonName: "test-ca",
		IsCA:       true,
	})
	require.NoError(t, err)
	caPair, err := tls.X509KeyPair(caPEM, caKeyPEM)
	require.NoError(t, err)
	caCert, err := tlspkg.ParseCertificatePEM(caPEM)
	require.NoError(t, err)

	serverCertPEM, serverKeyPEM, err := tlspkg.GenerateSelfSignedCertificate(tlspkg.CertificateGenerationOptions{
		CommonName:   "127.0.0.1",
		SerialNumber: big.NewInt(2),
		ParentCert:   caCert,
		ParentKey:    caPair.PrivateKey,
	})
	require.NoError(t, err)

	clientCertPEM, clientKeyPEM, err := tlspkg.GenerateSelfSignedCertificate(tlspkg.CertificateGenerationOptions{
		CommonName:   "app",
		IsClientCert: true,
		SerialNumber: big.NewInt(3),
		ParentCert:   caCert,
		ParentKey:    caPair.PrivateKey,
	})
	require.NoError(t, err)

	return testPKI{
		caPEM:         caPEM,
		serverCertPEM: serverCertPEM,
		serverKeyPEM:  serverKeyPEM,
		clientCertPEM: clientCertPEM,
		clientKeyPEM:  clientKeyPEM,
	}
}

// mockCollector is an OTLP/gRPC collector that requires client certificates
// signed by the test CA.
type mockCollector struct {
	collectortrace.UnimplementedTraceServiceServer

	mu            sync.Mutex
	resourceSpans []*tracepb.ResourceSpans
	metricNames   []string
}

func startMockCollector(t *testing.T, pki testPKI) (*mockCollector, string) {
	t.Helper()

	serverPair, err := tls.X509KeyPair(pki.serverCertPEM, pki.serverKeyPEM)
	require.NoError(t, err)
	clientCAs := x509.NewCertPool()
	require.True(t, clientCAs.AppendCertsFromPEM(pki.caPEM))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	collector := &mockCollector{}
	server := grpc.NewServer(grpc.Creds(grpccreds.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{serverPair},
		ClientCAs:    clientCAs,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	})))
	collectortrace.RegisterTraceServiceServer(server, collector)
	collectormetrics.RegisterMetricsServiceServer(server, metricsService{collector: collector})

	go func() {
		_ = server.Serve(lis)
	}()
	t.Cleanup(func() {
		server.Stop()
		_ = lis.Close()
	})

	return collector, lis.Addr().String()
}

func (m *mockCollector) Export(_ context.Context, req *collectortrace.ExportTraceServiceRequest) (*collectortrace.ExportTraceServiceResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resourceSpans = append(m.resourceSpans, req.ResourceSpans...)
	return &collectortrace.ExportTraceServiceResponse{}, nil
}

// metricsService adapts the collector to the metrics service, whose Export
// method clashes with the trace service one.
type metricsService struct {
	collectormetrics.UnimplementedMetricsServiceServer
	collector *mockCollector
}

func (s metricsService) Export(_ context.Context, req *collectormetrics.ExportMetricsServiceRequest) (*collectormetrics.ExportMetricsServiceResponse, error) {
	s.collector.mu.Lock()
	defer s.collector.mu.Unlock()
	for _, rm := range req.ResourceMetrics {
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				s.collector.metricNames = append(s.collector.metricNames, m.Name)
			}
		}
	}
	return &collectormetrics.ExportMetricsServiceResponse{}, nil
}

func (m *mockCollector) spanNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, rs := range m.resourceSpans {
		for _, scope := range rs.ScopeSpans {
			for _, span := range scope.Spans {
				names = append(names, span.Name)
			}
		}
	}
	return names
}

func (m *mockCollector) metrics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.metricNames...)
}
