// Package credentials maps raw binding credentials onto backend specific
// views and checks them for completeness.
//
// Extraction never fails: missing fields read as "". Validate is a pure check
// that every field the backend needs is present and non-blank; it performs no
// I/O.
package credentials

import (
	"fmt"
	"strings"
)

// Set is a backend specific credential view. String renders it with secrets
// masked.
type Set interface {
	fmt.Stringer
	// Validate reports whether all required fields are present and non-blank.
	Validate() bool
}

// present reports whether every value is non-blank.
func present(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// NormalizeEndpoint prefixes a bare host:port with defaultScheme. Values that
// already carry a scheme are returned trimmed but otherwise unchanged.
func NormalizeEndpoint(endpoint, defaultScheme string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	return defaultScheme + "://" + endpoint
}

// mask renders a secret for logs: the first and last four characters of long
// values, "***" otherwise.
func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 12 {
		return "***"
	}
	return s[:4] + "***" + s[len(s)-4:]
}
