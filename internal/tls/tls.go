package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
)

// Config describes a client TLS configuration backed by PEM files.
type Config struct {
	CertFile   string
	KeyFile    string
	RootCAFile string
	ServerName string
	// InsecureSkipVerify is rejected by BuildClient.
	InsecureSkipVerify bool
}

// BuildClient constructs a verified TLS configuration for export clients.
// Without RootCAFile the system roots are used.
func BuildClient(cfg Config) (*tls.Config, error) {
	if cfg.InsecureSkipVerify {
		return nil, NewTLSError(ErrorTypeConfigValidation, "insecure skip verify is not permitted")
	}

	clientConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: cfg.ServerName,
	}

	if cfg.CertFile != "" || cfg.KeyFile != "" {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return nil, NewTLSError(ErrorTypeConfigValidation,
				"both CertFile and KeyFile are required when supplying client certificates")
		}
		certificate, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, NewTLSErrorWithCause(ErrorTypeCertificateLoad, "load client certificate", err).
				WithContext("cert_file", cfg.CertFile).
				WithContext("key_file", cfg.KeyFile)
		}
		clientConfig.Certificates = []tls.Certificate{certificate}
	}

	if cfg.RootCAFile != "" {
		caPool, err := loadCertPool(cfg.RootCAFile)
		if err != nil {
			return nil, err
		}
		clientConfig.RootCAs = caPool
	}

	return clientConfig, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) {
		return nil, NewTLSError(ErrorTypeConfigValidation, fmt.Sprintf("ca bundle path must be absolute: %q", path))
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, NewTLSErrorWithCause(ErrorTypeFileAccess, "read CA bundle", err).
			WithContext("path", cleanPath)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, NewTLSError(ErrorTypeCertificateLoad, fmt.Sprintf("no certificates found in %s", cleanPath))
	}
	return pool, nil
}
