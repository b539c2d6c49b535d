package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestResolver(src Source) (*Resolver, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewResolver(src, logger), buf
}

func TestResolveOrder(t *testing.T) {
	label := String(Key("new.label", DeprecatedKey("old.label", nil)), "default")

	tests := []struct {
		name     string
		source   Source
		expected string
	}{
		{
			name:     "primary key wins",
			source:   MapSource{"new.label": "primary", "old.label": "legacy"},
			expected: "primary",
		},
		{
			name:     "blank primary falls back",
			source:   MapSource{"new.label": "  ", "old.label": "legacy"},
			expected: "legacy",
		},
		{
			name:     "nothing set uses default",
			source:   MapSource{},
			expected: "default",
		},
		{
			name:     "nil source uses default",
			source:   nil,
			expected: "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestResolver(tt.source)
			assert.Equal(t, tt.expected, Resolve(r, label))
		})
	}
}

func TestResolveNilResolver(t *testing.T) {
	var r *Resolver
	assert.Equal(t, 3*time.Second, Resolve(r, Duration(Key("x", nil), 3*time.Second)))
	assert.Equal(t, []string{"a"}, Resolve(r, List(Key("x", nil), "a")))
}

func TestDeprecatedKeyWarnsOnce(t *testing.T) {
	label := String(Key("new.label", DeprecatedKey("old.label", nil)), "default")
	r, buf := newTestResolver(MapSource{"old.label": "legacy"})

	for i := 0; i < 3; i++ {
		assert.Equal(t, "legacy", Resolve(r, label))
	}

	assert.Equal(t, 1, strings.Count(buf.String(), "Configuration key is deprecated"))
	assert.Contains(t, buf.String(), "deprecated_key=old.label")
	assert.Contains(t, buf.String(), "replacement_key=new.label")
	assert.True(t, r.Warnings.Warned("old.label"))
	assert.Equal(t, []string{"old.label"}, r.Warnings.Keys())
}

func TestDeprecatedKeyWarnsOnceConcurrently(t *testing.T) {
	label := String(Key("new.label", DeprecatedKey("old.label", nil)), "default")
	r, buf := newTestResolver(MapSource{"old.label": "legacy"})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = Resolve(r, label)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, strings.Count(buf.String(), "Configuration key is deprecated"))
}

func TestResolverLiteralWarnsOnce(t *testing.T) {
	label := String(Key("new.label", DeprecatedKey("old.label", nil)), "default")
	buf := &bytes.Buffer{}
	r := &Resolver{
		Source: MapSource{"old.label": "legacy"},
		Logger: slog.New(slog.NewTextHandler(buf, nil)),
	}

	Resolve(r, label)
	Resolve(r, label)

	assert.Equal(t, 1, strings.Count(buf.String(), "Configuration key is deprecated"))
	require.NotNil(t, r.Warnings)
	assert.True(t, r.Warnings.Warned("old.label"))
}

func TestNonDeprecatedFallbackDoesNotWarn(t *testing.T) {
	settings := ExporterSettingsFor(BackendCloudLogging)
	r, buf := newTestResolver(MapSource{"otel.exporter.otlp.compression": "none"})

	assert.Equal(t, "none", Resolve(r, settings.Compression))
	assert.NotContains(t, buf.String(), "deprecated")
	assert.Empty(t, r.Warnings.Keys())
}

func TestSeparateDeprecationSetsWarnIndependently(t *testing.T) {
	label := String(Key("new.label", DeprecatedKey("old.label", nil)), "default")
	src := MapSource{"old.label": "legacy"}

	first, _ := newTestResolver(src)
	second, _ := newTestResolver(src)
	Resolve(first, label)

	assert.True(t, first.Warnings.Warned("old.label"))
	assert.False(t, second.Warnings.Warned("old.label"))
}

func TestTypedSettings(t *testing.T) {
	src := MapSource{
		"bool":       "true",
		"bad.bool":   "maybe",
		"int":        " 42 ",
		"dur":        "1500",
		"dur.go":     "2m",
		"dur.bad":    "-5s",
		"list":       " a, b ,,c ",
		"empty.list": ",",
	}
	r, buf := newTestResolver(src)

	assert.True(t, Resolve(r, Bool(Key("bool", nil), false)))
	assert.True(t, Resolve(r, Bool(Key("bad.bool", nil), true)))
	assert.Contains(t, buf.String(), "Ignoring invalid configuration value")
	assert.Equal(t, 42, Resolve(r, Int(Key("int", nil), 0)))
	assert.Equal(t, 1500*time.Millisecond, Resolve(r, Duration(Key("dur", nil), 0)))
	assert.Equal(t, 2*time.Minute, Resolve(r, Duration(Key("dur.go", nil), 0)))
	assert.Equal(t, time.Second, Resolve(r, Duration(Key("dur.bad", nil), time.Second)))
	assert.Equal(t, []string{"a", "b", "c"}, Resolve(r, List(Key("list", nil))))
	assert.Empty(t, Resolve(r, List(Key("empty.list", nil), "x")))
}

func TestEnvSource(t *testing.T) {
	env := map[string]string{
		"OTEL_EXPORTER_CLOUD_LOGGING_TIMEOUT": "5s",
	}
	src := EnvSource{LookupEnv: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}}

	assert.Equal(t, "OTEL_EXPORTER_CLOUD_LOGGING_TIMEOUT", EnvName("otel.exporter.cloud-logging.timeout"))
	v, ok := src.Lookup("otel.exporter.cloud-logging.timeout")
	require.True(t, ok)
	assert.Equal(t, "5s", v)

	_, ok = src.Lookup("otel.exporter.dynatrace.timeout")
	assert.False(t, ok)
}

func TestChainSource(t *testing.T) {
	chain := Chain{nil, MapSource{"a": " "}, MapSource{"a": "second", "b": "b"}}

	v, ok := chain.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "second", v)

	_, ok = chain.Lookup("missing")
	assert.False(t, ok)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
otel:
  exporter:
    cloud-logging:
      timeout: 5s
      metrics:
        include:
          names: [jvm.*, http.server.duration]
  metrics.exporter: cloud-logging
sap.cf.binding.dynatrace.pin-certificate: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	src, err := NewFileSource(path)
	require.NoError(t, err)
	assert.Equal(t, path, src.Path())

	r, _ := newTestResolver(src)
	settings := ExporterSettingsFor(BackendCloudLogging)
	assert.Equal(t, 5*time.Second, Resolve(r, settings.Timeout))
	assert.Equal(t, []string{"jvm.*", "http.server.duration"}, Resolve(r, settings.MetricsInclude))
	assert.Equal(t, []string{BackendCloudLogging}, Resolve(r, MetricsExporters))
	assert.True(t, Resolve(r, DynatracePinCertificate))
}

func TestFileSourceErrors(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: [unterminated"), 0o600))
	_, err = NewFileSource(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestBindingSettingsLegacyAliases(t *testing.T) {
	r, _ := newTestResolver(MapSource{
		"otel.javaagent.extension.sap.cf.binding.cloud-logging.tag": "Logging",
	})

	assert.Equal(t, "Logging", Resolve(r, CloudLoggingTag))
	assert.Equal(t, "cloud-logging", Resolve(r, CloudLoggingLabel))
	assert.True(t, r.Warnings.Warned("otel.javaagent.extension.sap.cf.binding.cloud-logging.tag"))
}

func TestListRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		items := rapid.SliceOf(rapid.StringMatching(`[a-z][a-z0-9.*-]{0,12}`)).Draw(t, "items")
		pad := rapid.SampledFrom([]string{"", " ", "  "}).Draw(t, "pad")

		raw := strings.Join(items, pad+","+pad)
		got, err := parseList(raw)
		if err != nil {
			t.Fatalf("parseList(%q): %v", raw, err)
		}
		if len(items) == 0 {
			if len(got) != 0 {
				t.Fatalf("expected empty list for %q, got %q", raw, got)
			}
			return
		}
		if strings.Join(got, ",") != strings.Join(items, ",") {
			t.Fatalf("parseList(%q) = %q, want %q", raw, got, items)
		}
	})
}

func TestChainFirstNonBlankProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		values := rapid.SliceOfN(rapid.SampledFrom([]string{"", " ", "a", "b"}), 1, 5).Draw(t, "values")

		chain := Chain{}
		want, wantOK := "", false
		for _, v := range values {
			chain = append(chain, MapSource{"k": v})
			if !wantOK && strings.TrimSpace(v) != "" {
				want, wantOK = v, true
			}
		}

		got, ok := chain.Lookup("k")
		if ok != wantOK || got != want {
			t.Fatalf("Lookup over %q = (%q, %t), want (%q, %t)", values, got, ok, want, wantOK)
		}
	})
}
