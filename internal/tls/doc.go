// Package tls provisions the transport material needed to reach telemetry
// backends over TLS.
//
// It downloads a backend's leaf certificate through a throwaway handshake so
// it can be pinned explicitly, writes PEM material to temporary files that are
// removed at shutdown, and builds verified client configurations from those
// files. Certificates can be summarized for operators with Inspect.
package tls
