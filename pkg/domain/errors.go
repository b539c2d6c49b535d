package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrInvalidCredentials = errors.New("incomplete credentials")
	ErrNoCertificate      = errors.New("no certificate available")
	ErrUnknownBackend     = errors.New("unknown backend")
	ErrConfigInvalid      = errors.New("invalid configuration")
)

// ParseError reports a binding document that could not be read at all.
// Individual malformed bindings never produce a ParseError; they are skipped.
type ParseError struct {
	// Source names the document, e.g. the environment variable it came from.
	Source string
	// Offset is the input byte offset at which parsing stopped.
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("parse %s at offset %d: %v", e.Source, e.Offset, e.Err)
	}
	return fmt.Sprintf("parse bindings at offset %d: %v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
