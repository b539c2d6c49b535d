// Package domain defines the core types shared by the binding discovery and
// telemetry bootstrap packages.
//
// This package contains pure domain logic with ZERO external dependencies outside the
// Go standard library. All types in this package are:
//
// - Independent of infrastructure (no network, filesystem or SDK coupling)
// - Immutable once constructed
// - Testable in isolation without mocks
//
// Other packages (binding, credentials, exporter, telemetry) produce and
// consume these types. The dependency direction is always:
//
//	Infrastructure → Domain (CORRECT)
//	Domain → Infrastructure (FORBIDDEN)
package domain
