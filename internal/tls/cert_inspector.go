package tls

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"strings"
	"time"
)

// expiryWarningDays is the remaining validity below which a summary warns.
const expiryWarningDays = 30

// CertificateSummary describes a downloaded or configured certificate.
type CertificateSummary struct {
	Subject            string    `json:"subject"`
	Issuer             string    `json:"issuer"`
	SerialNumber       string    `json:"serial_number"`
	NotBefore          time.Time `json:"not_before"`
	NotAfter           time.Time `json:"not_after"`
	DNSNames           []string  `json:"dns_names,omitempty"`
	SignatureAlgorithm string    `json:"signature_algorithm"`
	KeySize            int       `json:"key_size,omitempty"`
	IsCA               bool      `json:"is_ca"`
	SelfSigned         bool      `json:"self_signed"`
	Expired            bool      `json:"expired"`
	NotYetValid        bool      `json:"not_yet_valid"`
	ExpiresInDays      int       `json:"expires_in_days"`
	Warnings           []string  `json:"warnings,omitempty"`
}

// InspectPEM summarizes the first certificate in data as seen at now.
func InspectPEM(data []byte, now time.Time) (*CertificateSummary, error) {
	cert, err := ParseCertificatePEM(data)
	if err != nil {
		return nil, err
	}
	return Inspect(cert, now), nil
}

// Inspect summarizes cert as seen at now.
func Inspect(cert *x509.Certificate, now time.Time) *CertificateSummary {
	s := &CertificateSummary{
		Subject:            cert.Subject.String(),
		Issuer:             cert.Issuer.String(),
		SerialNumber:       cert.SerialNumber.String(),
		NotBefore:          cert.NotBefore,
		NotAfter:           cert.NotAfter,
		DNSNames:           cert.DNSNames,
		SignatureAlgorithm: cert.SignatureAlgorithm.String(),
		KeySize:            keySize(cert.PublicKey),
		IsCA:               cert.IsCA,
		SelfSigned:         isSelfSigned(cert),
	}

	switch {
	case now.After(cert.NotAfter):
		s.Expired = true
		s.Warnings = append(s.Warnings, "certificate expired on "+cert.NotAfter.Format(time.RFC3339))
	case now.Before(cert.NotBefore):
		s.NotYetValid = true
		s.Warnings = append(s.Warnings, "certificate is not valid before "+cert.NotBefore.Format(time.RFC3339))
	default:
		s.ExpiresInDays = int(cert.NotAfter.Sub(now).Hours() / 24)
		if s.ExpiresInDays <= expiryWarningDays {
			s.Warnings = append(s.Warnings, fmt.Sprintf("certificate expires in %d days", s.ExpiresInDays))
		}
	}

	if s.KeySize > 0 && s.KeySize < 2048 && isRSA(cert.PublicKey) {
		s.Warnings = append(s.Warnings, fmt.Sprintf("weak RSA key size: %d bits", s.KeySize))
	}
	if strings.Contains(strings.ToLower(s.SignatureAlgorithm), "sha1") {
		s.Warnings = append(s.Warnings, "uses SHA-1 signature algorithm")
	}
	return s
}

func keySize(publicKey any) int {
	switch key := publicKey.(type) {
	case *rsa.PublicKey:
		return key.N.BitLen()
	case *ecdsa.PublicKey:
		return key.Curve.Params().BitSize
	case ed25519.PublicKey:
		return 256
	default:
		return 0
	}
}

func isSelfSigned(cert *x509.Certificate) bool {
	if cert.Subject.String() != cert.Issuer.String() {
		return false
	}
	return cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature) == nil
}

func isRSA(publicKey any) bool {
	_, ok := publicKey.(*rsa.PublicKey)
	return ok
}
