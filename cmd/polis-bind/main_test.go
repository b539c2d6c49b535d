package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	tlspkg "github.com/polisai/polis-bindings/internal/tls"
	"github.com/polisai/polis-bindings/pkg/domain"
	"github.com/polisai/polis-bindings/pkg/telemetry"
)

const catalog = `{
  "cloud-logging": [
    {"name": "cls", "tags": ["Cloud Logging"], "credentials": {"ingest-otlp-endpoint": "cls.example.com:443"}}
  ],
  "user-provided": [
    {"name": "dt", "tags": ["dynatrace"], "credentials": {"apiurl": "https://dt.example.com/api", "apitoken": "dt0c01.abcdefghijklmnop"}}
  ]
}`

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func execute(t *testing.T, ctx context.Context, env map[string]string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd(envLookup(env))
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func restoreGlobals(t *testing.T) {
	t.Helper()
	prevTracer := otel.GetTracerProvider()
	prevMeter := otel.GetMeterProvider()
	telemetry.ResetMetricsForTest()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTracer)
		otel.SetMeterProvider(prevMeter)
		telemetry.ResetMetricsForTest()
	})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bindings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseCLIConfig(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected *CLIConfig
	}{
		{
			name:     "default values",
			args:     nil,
			expected: &CLIConfig{LogLevel: defaultLogLevel},
		},
		{
			name:     "all flags",
			args:     []string{"--config", "bindings.yaml", "--log-level", "debug", "--pretty"},
			expected: &CLIConfig{Config: "bindings.yaml", LogLevel: "debug", Pretty: true},
		},
		{
			name:     "short flags",
			args:     []string{"-c", "other.yaml", "-l", "warn"},
			expected: &CLIConfig{Config: "other.yaml", LogLevel: "warn"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd(envLookup(nil))
			require.NoError(t, cmd.ParseFlags(tt.args))

			got, err := parseCLIConfig(cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDiscoverText(t *testing.T) {
	out, err := execute(t, context.Background(), map[string]string{
		"VCAP_SERVICES":         catalog,
		"OTEL_METRICS_EXPORTER": "dynatrace,prometheus",
	}, "discover")
	require.NoError(t, err)

	assert.Contains(t, out, "cloud-logging (traces=true metrics=false): 1 binding(s)")
	assert.Contains(t, out, "cls [cloud-logging] incomplete")
	assert.Contains(t, out, "dynatrace (traces=false metrics=true): 1 binding(s)")
	assert.Contains(t, out, "dt [user-provided] valid")
	assert.Contains(t, out, "dt0c***mnop")
	assert.NotContains(t, out, "dt0c01.abcdefghijklmnop")
}

func TestDiscoverJSON(t *testing.T) {
	path := writeConfig(t, "otel:\n  traces:\n    exporter: dynatrace\n  metrics:\n    exporter: none\n")

	out, err := execute(t, context.Background(), map[string]string{
		"VCAP_SERVICES":        catalog,
		"OTEL_TRACES_EXPORTER": "cloud-logging",
	}, "discover", "--json", "--config", path)
	require.NoError(t, err)

	var reports []selectionReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1, "the file overrides the environment")
	assert.Equal(t, "dynatrace", reports[0].Backend)
	assert.True(t, reports[0].Traces)
	assert.False(t, reports[0].Metrics)
	require.Len(t, reports[0].Instances, 1)
	assert.Equal(t, "dt", reports[0].Instances[0].Name)
	assert.True(t, reports[0].Instances[0].Valid)
}

func TestDiscoverNothingEnabled(t *testing.T) {
	out, err := execute(t, context.Background(), map[string]string{
		"OTEL_TRACES_EXPORTER":  "none",
		"OTEL_METRICS_EXPORTER": "none",
	}, "discover")
	require.NoError(t, err)
	assert.Equal(t, "no binding backends enabled\n", out)
}

func TestDiscoverMalformedCatalog(t *testing.T) {
	_, err := execute(t, context.Background(), map[string]string{
		"VCAP_SERVICES": `{"dynatrace": [`,
	}, "discover")
	require.Error(t, err)

	var parseErr *domain.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, context.Background(), nil, "discover", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
}

func TestFetchCert(t *testing.T) {
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	defer srv.Close()

	out, err := execute(t, context.Background(), nil, "fetch-cert", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, string(tlspkg.EncodeCertificatePEM(srv.Certificate().Raw)), out)
}

func TestFetchCertInspect(t *testing.T) {
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	defer srv.Close()

	out, err := execute(t, context.Background(), nil, "fetch-cert", "--inspect", srv.URL)
	require.NoError(t, err)

	var summary tlspkg.CertificateSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, srv.Certificate().Subject.String(), summary.Subject)
	assert.Equal(t, srv.Certificate().NotAfter.Unix(), summary.NotAfter.Unix())
	assert.Contains(t, summary.DNSNames, "example.com")
}

func TestFetchCertFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	out, err := execute(t, context.Background(), nil, "fetch-cert", "https://"+addr)
	assert.ErrorIs(t, err, domain.ErrNoCertificate)
	assert.Empty(t, out)
}

func TestFetchCertRequiresURL(t *testing.T) {
	_, err := execute(t, context.Background(), nil, "fetch-cert")
	assert.Error(t, err)
}

func TestRunStopsWhenContextDone(t *testing.T) {
	restoreGlobals(t)
	path := writeConfig(t, `
otel.metrics.exporter: prometheus
otel.traces.exporter: none
otel.exporter.prometheus.address: 127.0.0.1:0
`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := execute(t, ctx, nil, "run", "--config", path)
	assert.NoError(t, err)
}

func TestRunListenFailure(t *testing.T) {
	restoreGlobals(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	_, err = execute(t, context.Background(), map[string]string{
		"OTEL_METRICS_EXPORTER":            "prometheus",
		"OTEL_TRACES_EXPORTER":             "none",
		"OTEL_EXPORTER_PROMETHEUS_ADDRESS": ln.Addr().String(),
	}, "run")
	assert.ErrorContains(t, err, "listen on")
}
