package exporter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNameFilter(t *testing.T) {
	tests := []struct {
		name     string
		include  []string
		exclude  []string
		allowed  []string
		rejected []string
	}{
		{
			name:    "empty admits everything",
			allowed: []string{"", "anything", "jvm.memory.used"},
		},
		{
			name:     "include and exclude prefixes",
			include:  []string{"incl*"},
			exclude:  []string{"excl*"},
			allowed:  []string{"included", "incl"},
			rejected: []string{"excluded", "other"},
		},
		{
			name:     "exclusion vetoes inclusion",
			include:  []string{"http.*"},
			exclude:  []string{"http.server.*"},
			allowed:  []string{"http.client.duration"},
			rejected: []string{"http.server.duration", "db.calls"},
		},
		{
			name:     "exact patterns",
			include:  []string{"a", "b"},
			allowed:  []string{"a", "b"},
			rejected: []string{"ab", "a.b", ""},
		},
		{
			name:     "exclude only",
			exclude:  []string{"internal.*", "debug"},
			allowed:  []string{"public", "debugger", "internal"},
			rejected: []string{"internal.queue", "debug"},
		},
		{
			name:     "star matches everything",
			exclude:  []string{"*"},
			rejected: []string{"", "x"},
		},
		{
			name:    "blank patterns ignored",
			include: []string{" ", ""},
			allowed: []string{"x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewNameFilter(tt.include, tt.exclude)
			for _, name := range tt.allowed {
				assert.True(t, f.Allow(name), "expected %q to pass", name)
			}
			for _, name := range tt.rejected {
				assert.False(t, f.Allow(name), "expected %q to be dropped", name)
			}
		})
	}
}

func TestNameFilterIsZero(t *testing.T) {
	assert.True(t, NewNameFilter(nil, nil).IsZero())
	assert.True(t, NewNameFilter([]string{" "}, nil).IsZero())
	assert.False(t, NewNameFilter(nil, []string{"x"}).IsZero())
}

func TestNameFilterProperties(t *testing.T) {
	f := NewNameFilter([]string{"incl*"}, []string{"excl*"})

	rapid.Check(t, func(t *rapid.T) {
		name := rapid.String().Draw(t, "name")
		expected := strings.HasPrefix(name, "incl")
		if f.Allow(name) != expected {
			t.Fatalf("Allow(%q) = %v, want %v", name, !expected, expected)
		}
	})

	rapid.Check(t, func(t *rapid.T) {
		include := rapid.SliceOf(rapid.StringMatching(`[a-c]{0,3}\*?`)).Draw(t, "include")
		exclude := rapid.SliceOf(rapid.StringMatching(`[a-c]{0,3}\*?`)).Draw(t, "exclude")
		name := rapid.StringMatching(`[a-c]{0,4}`).Draw(t, "name")

		both := NewNameFilter(include, exclude)
		inclOnly := NewNameFilter(include, nil)
		exclOnly := NewNameFilter(nil, exclude)

		if both.Allow(name) != (inclOnly.Allow(name) && exclOnly.Allow(name)) {
			t.Fatalf("combined filter is not the conjunction for %q", name)
		}
	})
}
