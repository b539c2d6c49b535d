package credentials

import "fmt"

// Credential keys of a Cloud Logging binding.
const (
	CloudLoggingEndpointKey   = "ingest-otlp-endpoint"
	CloudLoggingClientKeyKey  = "ingest-otlp-key"
	CloudLoggingClientCertKey = "ingest-otlp-cert"
	CloudLoggingServerCertKey = "server-ca"
)

// CloudLogging holds the mutual TLS credentials of a Cloud Logging binding.
type CloudLogging struct {
	endpoint   string
	clientKey  string
	clientCert string
	serverCert string
}

// ParseCloudLogging extracts the Cloud Logging view from raw credentials.
func ParseCloudLogging(raw map[string]string) CloudLogging {
	return CloudLogging{
		endpoint:   NormalizeEndpoint(raw[CloudLoggingEndpointKey], "https"),
		clientKey:  raw[CloudLoggingClientKeyKey],
		clientCert: raw[CloudLoggingClientCertKey],
		serverCert: raw[CloudLoggingServerCertKey],
	}
}

// Endpoint returns the OTLP ingest endpoint with a scheme.
func (c CloudLogging) Endpoint() string { return c.endpoint }

// ClientKey returns the PEM encoded client private key.
func (c CloudLogging) ClientKey() string { return c.clientKey }

// ClientCert returns the PEM encoded client certificate.
func (c CloudLogging) ClientCert() string { return c.clientCert }

// ServerCert returns the PEM encoded CA that signs the ingest endpoint.
func (c CloudLogging) ServerCert() string { return c.serverCert }

// Validate implements Set. All four fields are required.
func (c CloudLogging) Validate() bool {
	return present(c.endpoint, c.clientKey, c.clientCert, c.serverCert)
}

func (c CloudLogging) String() string {
	return fmt.Sprintf("CloudLogging{endpoint=%s, key=%s, cert=%s, server-ca=%s}",
		c.endpoint, mask(c.clientKey), mask(c.clientCert), mask(c.serverCert))
}
