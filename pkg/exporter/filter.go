package exporter

import "strings"

// NameFilter decides which metric or span names are exported.
//
// Patterns match exactly, or by prefix when they end in '*'. A non-empty
// include list only admits matching names; the exclude list is applied after
// it and can veto an included name.
type NameFilter struct {
	include []string
	exclude []string
}

// NewNameFilter compiles include and exclude patterns. Blank patterns are
// ignored.
func NewNameFilter(include, exclude []string) NameFilter {
	return NameFilter{include: compact(include), exclude: compact(exclude)}
}

// IsZero reports whether the filter admits every name.
func (f NameFilter) IsZero() bool {
	return len(f.include) == 0 && len(f.exclude) == 0
}

// Allow reports whether name passes the filter.
func (f NameFilter) Allow(name string) bool {
	if len(f.include) > 0 && !matchAny(f.include, name) {
		return false
	}
	return !matchAny(f.exclude, name)
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(name, prefix) {
				return true
			}
			continue
		}
		if p == name {
			return true
		}
	}
	return false
}

func compact(patterns []string) []string {
	var out []string
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
