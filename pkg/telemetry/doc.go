// Package telemetry bootstraps the OpenTelemetry tracer and meter providers
// from the platform service bindings.
//
// Setup reads the binding catalog, assembles the exporters of every enabled
// backend and records how many bindings and pipelines it found as
// bootstrap metrics.
package telemetry
