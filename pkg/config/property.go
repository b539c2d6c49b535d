package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Property is one configuration key with an optional fallback. Properties
// form a chain (or a DAG when fallbacks are shared) that is walked from the
// primary key towards the oldest alias.
type Property struct {
	key        string
	deprecated bool
	fallback   *Property
}

// Key declares a current key that falls back to fallback when unset.
func Key(key string, fallback *Property) *Property {
	return &Property{key: key, fallback: fallback}
}

// DeprecatedKey declares an alias that still resolves but is reported once
// when used.
func DeprecatedKey(key string, fallback *Property) *Property {
	return &Property{key: key, deprecated: true, fallback: fallback}
}

// Name returns the key.
func (p *Property) Name() string { return p.key }

// Deprecated reports whether the key is a deprecated alias.
func (p *Property) Deprecated() bool { return p.deprecated }

// Fallback returns the next property in the chain, or nil.
func (p *Property) Fallback() *Property { return p.fallback }

// Setting binds a property chain to a typed default.
type Setting[T any] struct {
	Property *Property
	Default  T
	Parse    func(string) (T, error)
}

func (s Setting[T]) parse(raw string) (T, error) {
	if s.Parse == nil {
		var zero T
		return zero, fmt.Errorf("setting %s has no parser", s.Property.Name())
	}
	return s.Parse(raw)
}

// String declares a string setting. Values are trimmed.
func String(p *Property, def string) Setting[string] {
	return Setting[string]{Property: p, Default: def, Parse: parseString}
}

// Bool declares a boolean setting.
func Bool(p *Property, def bool) Setting[bool] {
	return Setting[bool]{Property: p, Default: def, Parse: parseBool}
}

// Int declares an integer setting.
func Int(p *Property, def int) Setting[int] {
	return Setting[int]{Property: p, Default: def, Parse: parseInt}
}

// Duration declares a duration setting. Values are Go durations ("10s") or
// bare integers interpreted as milliseconds.
func Duration(p *Property, def time.Duration) Setting[time.Duration] {
	return Setting[time.Duration]{Property: p, Default: def, Parse: ParseDuration}
}

// List declares a comma separated list setting.
func List(p *Property, def ...string) Setting[[]string] {
	return Setting[[]string]{Property: p, Default: def, Parse: parseList}
}

func parseString(raw string) (string, error) {
	return strings.TrimSpace(raw), nil
}

func parseBool(raw string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(raw))
}

func parseInt(raw string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(raw))
}

// ParseDuration parses a Go duration or a millisecond count.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("negative duration %q", raw)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return d, nil
}

func parseList(raw string) ([]string, error) {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values, nil
}
