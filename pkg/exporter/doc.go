// Package exporter assembles OpenTelemetry span and metric exporters from
// discovered service bindings.
//
// Each backend turns a valid binding into a Pipeline. The Assembler builds one
// exporter per pipeline, substitutes no-op exporters for bindings with
// incomplete credentials, fans the real exporters out and wraps the result in
// the name filter configured for the backend.
package exporter
