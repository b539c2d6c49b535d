package tls

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// TLSErrorType represents different categories of TLS errors
type TLSErrorType string

const (
	ErrorTypeConfigValidation TLSErrorType = "config_validation"
	ErrorTypeEndpointInvalid  TLSErrorType = "endpoint_invalid"

	ErrorTypeCertificateLoad    TLSErrorType = "certificate_load"
	ErrorTypeCertificateMissing TLSErrorType = "certificate_missing"

	ErrorTypeFileAccess TLSErrorType = "file_access"

	ErrorTypeHandshakeFailure TLSErrorType = "handshake_failure"
)

// TLSError represents a structured TLS error with context
type TLSError struct {
	Type    TLSErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *TLSError) Error() string {
	parts := []string{fmt.Sprintf("[%s] %s", e.Type, e.Message)}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for key := range e.Context {
			keys = append(keys, key)
		}
		slices.Sort(keys)

		contextParts := make([]string, 0, len(keys))
		for _, key := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", key, e.Context[key]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(contextParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

// Unwrap returns the underlying error for error unwrapping
func (e *TLSError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *TLSError) WithContext(key string, value interface{}) *TLSError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewTLSError creates a new TLS error with the specified type and message
func NewTLSError(errorType TLSErrorType, message string) *TLSError {
	return &TLSError{
		Type:    errorType,
		Message: message,
	}
}

// NewTLSErrorWithCause creates a new TLS error with an underlying cause
func NewTLSErrorWithCause(errorType TLSErrorType, message string, cause error) *TLSError {
	return &TLSError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// IsTLSError reports whether err wraps a TLSError of the given type.
func IsTLSError(err error, errorType TLSErrorType) bool {
	var tlsErr *TLSError
	return errors.As(err, &tlsErr) && tlsErr.Type == errorType
}
