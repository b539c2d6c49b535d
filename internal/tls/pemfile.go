package tls

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// TempFiles tracks temporary files for removal at shutdown. It is safe for
// concurrent use.
type TempFiles struct {
	mu    sync.Mutex
	paths []string
}

// NewTempFiles returns an empty registry.
func NewTempFiles() *TempFiles {
	return &TempFiles{}
}

func (t *TempFiles) track(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paths = append(t.paths, path)
}

// Paths returns the tracked files in creation order.
func (t *TempFiles) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.paths)
}

// RemoveAll deletes every tracked file. Files that are already gone are not
// an error. The registry is empty afterwards.
func (t *TempFiles) RemoveAll() error {
	t.mu.Lock()
	paths := t.paths
	t.paths = nil
	t.mu.Unlock()

	var errs []error
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SecureMaterial holds the paths of materialized PEM files. Empty paths mean
// the corresponding secret was not written.
type SecureMaterial struct {
	ServerCertPath string
	ClientCertPath string
	ClientKeyPath  string
}

// HasClientCertificate reports whether both halves of the client key pair
// were written.
func (m SecureMaterial) HasClientCertificate() bool {
	return m.ClientCertPath != "" && m.ClientKeyPath != ""
}

// ClientConfig describes a client TLS configuration over the material.
func (m SecureMaterial) ClientConfig(serverName string) Config {
	cfg := Config{RootCAFile: m.ServerCertPath, ServerName: serverName}
	if m.HasClientCertificate() {
		cfg.CertFile = m.ClientCertPath
		cfg.KeyFile = m.ClientKeyPath
	}
	return cfg
}

// Provisioner writes secrets to uniquely named temporary files. It is safe
// for concurrent use; a zero Provisioner creates its registry on first write.
type Provisioner struct {
	// Dir is the directory for new files; empty means os.TempDir.
	Dir   string
	Files *TempFiles

	mu sync.Mutex
}

// NewProvisioner creates a provisioner that registers files with files. A nil
// registry gets a private one.
func NewProvisioner(files *TempFiles) *Provisioner {
	if files == nil {
		files = NewTempFiles()
	}
	return &Provisioner{Files: files}
}

// WriteFile creates a new temporary file named prefix*suffix with mode 0600,
// writes content verbatim and returns the absolute path. The file is
// registered for removal even when writing fails part way.
func (p *Provisioner) WriteFile(prefix, suffix, content string) (string, error) {
	f, err := os.CreateTemp(p.Dir, prefix+"*"+suffix)
	if err != nil {
		return "", NewTLSErrorWithCause(ErrorTypeFileAccess, "create temporary file", err).
			WithContext("prefix", prefix)
	}
	path := f.Name()
	if abs, absErr := filepath.Abs(path); absErr == nil {
		path = abs
	}
	p.files().track(path)

	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return "", NewTLSErrorWithCause(ErrorTypeFileAccess, "write temporary file", err).
			WithContext("path", path)
	}
	if err := f.Close(); err != nil {
		return "", NewTLSErrorWithCause(ErrorTypeFileAccess, "close temporary file", err).
			WithContext("path", path)
	}
	return path, nil
}

// Materialize writes the non-empty secrets as PEM files named after prefix.
// Every secret is attempted; the returned material lists the files that were
// written and the error joins the failures.
func (p *Provisioner) Materialize(prefix, serverCert, clientCert, clientKey string) (SecureMaterial, error) {
	var (
		material SecureMaterial
		errs     []error
	)

	write := func(kind, content string, dst *string) {
		if content == "" {
			return
		}
		path, err := p.WriteFile(prefix+"-"+kind+"-", ".pem", content)
		if err != nil {
			errs = append(errs, err)
			return
		}
		*dst = path
	}

	write("server-ca", serverCert, &material.ServerCertPath)
	write("client-cert", clientCert, &material.ClientCertPath)
	write("client-key", clientKey, &material.ClientKeyPath)

	return material, errors.Join(errs...)
}

// Registry returns the registry files are tracked in.
func (p *Provisioner) Registry() *TempFiles {
	return p.files()
}

func (p *Provisioner) files() *TempFiles {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Files == nil {
		p.Files = NewTempFiles()
	}
	return p.Files
}
