package tls

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultDownloadTimeout bounds a certificate download when the caller does
// not configure one.
const DefaultDownloadTimeout = 5 * time.Second

const defaultRetryInterval = 200 * time.Millisecond

// certificateHarvester is the only place in this module that disables peer
// verification. Connections it configures are closed right after the
// handshake and never carry application data; their one output is the peer's
// leaf certificate, which callers pin explicitly afterwards.
type certificateHarvester struct{}

func (certificateHarvester) clientConfig(serverName string) *tls.Config {
	return &tls.Config{
		ServerName:         serverName,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: true, //nolint:gosec // handshake only reads the peer certificate
	}
}

// Downloader fetches the leaf certificate presented by a TLS endpoint.
type Downloader struct {
	// Timeout bounds dialing plus handshake of one attempt. Zero means
	// DefaultDownloadTimeout.
	Timeout time.Duration
	// Retries is the number of extra attempts after a failed handshake.
	Retries int
	// RetryInterval is the initial delay between attempts; it grows
	// exponentially.
	RetryInterval time.Duration
	Logger        *slog.Logger
}

// NewDownloader creates a downloader with the given handshake timeout.
func NewDownloader(timeout time.Duration, logger *slog.Logger) *Downloader {
	return &Downloader{Timeout: timeout, Logger: logger}
}

// Download returns the peer leaf certificate of endpoint as PEM. It reports
// ok=false, after logging the reason, when the URL cannot be parsed, the
// connection or handshake fails, or the peer presents no certificate.
func (d *Downloader) Download(ctx context.Context, endpoint string) (string, bool) {
	attempt := 0
	operation := func() (string, error) {
		attempt++
		addr, serverName, err := dialTarget(endpoint)
		if err != nil {
			return "", backoff.Permanent(err)
		}
		return d.fetch(ctx, addr, serverName)
	}

	certPEM, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(d.backOff()),
		backoff.WithMaxTries(uint(d.retries()+1)), // #nosec G115 -- retries is non-negative
		backoff.WithNotify(func(err error, wait time.Duration) {
			d.logger().Debug("Retrying certificate download",
				"endpoint", endpoint, "attempt", attempt, "wait", wait, "error", err)
		}),
	)
	if err != nil {
		d.logger().Warn("Could not download server certificate", "endpoint", endpoint, "error", err)
		return "", false
	}
	d.logger().Debug("Downloaded server certificate", "endpoint", endpoint)
	return certPEM, true
}

func (d *Downloader) fetch(ctx context.Context, addr, serverName string) (string, error) {
	timeout := d.timeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config:    certificateHarvester{}.clientConfig(serverName),
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", NewTLSErrorWithCause(ErrorTypeHandshakeFailure, "handshake failed", err).
			WithContext("address", addr)
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return "", NewTLSError(ErrorTypeHandshakeFailure, "connection is not a TLS connection").
			WithContext("address", addr)
	}

	peers := tlsConn.ConnectionState().PeerCertificates
	if len(peers) == 0 {
		return "", NewTLSError(ErrorTypeCertificateMissing, "peer presented no certificate").
			WithContext("address", addr)
	}
	return string(EncodeCertificatePEM(peers[0].Raw)), nil
}

func (d *Downloader) timeout() time.Duration {
	if d != nil && d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultDownloadTimeout
}

func (d *Downloader) retries() int {
	if d == nil || d.Retries < 0 {
		return 0
	}
	return d.Retries
}

func (d *Downloader) backOff() backoff.BackOff {
	interval := defaultRetryInterval
	if d != nil && d.RetryInterval > 0 {
		interval = d.RetryInterval
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.MaxInterval = 10 * interval
	b.Reset()
	return b
}

func (d *Downloader) logger() *slog.Logger {
	if d != nil && d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// dialTarget turns an endpoint URL, or a bare host[:port], into a dial
// address and TLS server name. The port defaults to 443.
func dialTarget(endpoint string) (addr, serverName string, err error) {
	endpoint = strings.TrimSpace(endpoint)
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", "", NewTLSErrorWithCause(ErrorTypeEndpointInvalid, "unparseable endpoint", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", "", NewTLSError(ErrorTypeEndpointInvalid, "endpoint has no host").
			WithContext("endpoint", endpoint)
	}
	port := u.Port()
	if port == "" {
		port = "443"
	}
	return net.JoinHostPort(host, port), host, nil
}
