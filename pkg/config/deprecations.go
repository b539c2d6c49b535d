package config

import (
	"slices"
	"sync"
)

// Deprecations remembers which deprecated keys were already reported.
// It is safe for concurrent use.
type Deprecations struct {
	mu     sync.Mutex
	warned map[string]struct{}
}

// NewDeprecations returns an empty set.
func NewDeprecations() *Deprecations {
	return &Deprecations{warned: make(map[string]struct{})}
}

// markWarned records key and reports whether it was new.
func (d *Deprecations) markWarned(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.warned == nil {
		d.warned = make(map[string]struct{})
	}
	if _, ok := d.warned[key]; ok {
		return false
	}
	d.warned[key] = struct{}{}
	return true
}

// Warned reports whether a notice for key was emitted.
func (d *Deprecations) Warned(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.warned[key]
	return ok
}

// Keys returns the reported keys in sorted order.
func (d *Deprecations) Keys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]string, 0, len(d.warned))
	for key := range d.warned {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
