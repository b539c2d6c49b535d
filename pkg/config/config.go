// Package config resolves named settings through chains of current and
// deprecated keys.
//
// Each setting is declared once as a Setting: a primary Property, an optional
// fallback chain, a typed default and a parser. A Resolver looks the chain up
// in a Source and reports deprecated keys once per Deprecations set.
package config

import (
	"log/slog"
	"strings"
	"sync"
)

// Resolver resolves settings against a configuration source.
//
// A nil *Resolver resolves every setting to its default. A Resolver without
// Warnings creates its deprecation set on the first notice.
type Resolver struct {
	Source   Source
	Warnings *Deprecations
	Logger   *slog.Logger

	mu sync.Mutex
}

// NewResolver creates a resolver over source with a fresh deprecation set.
func NewResolver(source Source, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		Source:   source,
		Warnings: NewDeprecations(),
		Logger:   logger,
	}
}

// Lookup walks the property chain and returns the first non-blank value
// together with the key it was found under.
func (r *Resolver) Lookup(p *Property) (value, key string, ok bool) {
	if r == nil || r.Source == nil || p == nil {
		return "", "", false
	}

	for cur := p; cur != nil; cur = cur.fallback {
		v, found := r.Source.Lookup(cur.key)
		if !found || strings.TrimSpace(v) == "" {
			continue
		}
		if cur != p && cur.deprecated {
			r.warnDeprecated(cur.key, p.key)
		}
		return v, cur.key, true
	}
	return "", "", false
}

func (r *Resolver) warnDeprecated(deprecated, replacement string) {
	if !r.deprecations().markWarned(deprecated) {
		return
	}
	r.logger().Warn("Configuration key is deprecated",
		"deprecated_key", deprecated,
		"replacement_key", replacement,
	)
}

func (r *Resolver) deprecations() *Deprecations {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Warnings == nil {
		r.Warnings = NewDeprecations()
	}
	return r.Warnings
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Resolve returns the value of setting s, falling back to its default when no
// key in the chain is set or the value cannot be parsed.
func Resolve[T any](r *Resolver, s Setting[T]) T {
	raw, key, ok := r.Lookup(s.Property)
	if !ok {
		return s.Default
	}

	value, err := s.parse(raw)
	if err != nil {
		r.logger().Warn("Ignoring invalid configuration value",
			"key", key,
			"value", raw,
			"error", err,
		)
		return s.Default
	}
	return value
}
