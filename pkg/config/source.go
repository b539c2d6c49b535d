package config

import (
	"os"
	"strings"
)

// Source provides raw configuration values by key.
type Source interface {
	Lookup(key string) (string, bool)
}

// MapSource is an in-memory source keyed by property name.
type MapSource map[string]string

// Lookup implements Source.
func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// EnvSource maps property keys onto environment variables following the
// OpenTelemetry convention: "otel.exporter.cloud-logging.timeout" is read from
// OTEL_EXPORTER_CLOUD_LOGGING_TIMEOUT.
type EnvSource struct {
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Lookup implements Source.
func (e EnvSource) Lookup(key string) (string, bool) {
	lookup := e.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return lookup(EnvName(key))
}

// EnvName returns the environment variable name for a property key.
func EnvName(key string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '-':
			return '_'
		}
		return r
	}, strings.ToUpper(key))
}

// Chain consults sources in order and returns the first non-blank value.
type Chain []Source

// Lookup implements Source.
func (c Chain) Lookup(key string) (string, bool) {
	for _, src := range c {
		if src == nil {
			continue
		}
		if v, ok := src.Lookup(key); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}
