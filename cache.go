package hostcert

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	keySuffix  = ".hostkey.pem"
	reqSuffix  = ".hostreq.pem"
	certSuffix = ".hostcert.pem"

	// trustAnchorName is the CA chain file shared by all hosts in the cache.
	trustAnchorName = "kit-ca-chain.pem"
)

// Cache is the directory-backed request store. The filesystem is the only
// persistence: the presence of a host's request artifact is the sole witness
// of its Pending state, there is no separate ledger. The directory is owned
// by a single invocation of the tool; nothing serializes concurrent
// invocations.
type Cache struct {
	dir    string
	logger *slog.Logger
}

// NewCache creates a cache handle rooted at dir. Call EnsureReady before any
// other operation.
func NewCache(dir string, logger *slog.Logger) *Cache {
	if logger == nil {
		panic("NewCache: received nil logger")
	}
	return &Cache{dir: dir, logger: logger.With("component", "cache")}
}

// EnsureReady creates the cache root if it does not exist yet.
func (c *Cache) EnsureReady() error {
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheInit, err)
	}
	return nil
}

// Dir returns the cache root path.
func (c *Cache) Dir() string {
	return c.dir
}

// TrustAnchorPath returns the location of the shared CA chain file.
func (c *Cache) TrustAnchorPath() string {
	return filepath.Join(c.dir, trustAnchorName)
}

func (c *Cache) keyPath(hostname string) string {
	return filepath.Join(c.dir, hostname+keySuffix)
}

func (c *Cache) reqPath(hostname string) string {
	return filepath.Join(c.dir, hostname+reqSuffix)
}

func (c *Cache) certPath(hostname string) string {
	return filepath.Join(c.dir, hostname+certSuffix)
}

// HasPending reports whether a request is cached for hostname.
func (c *Cache) HasPending(hostname string) bool {
	_, err := os.Stat(c.reqPath(hostname))
	return err == nil
}

// Store writes the key and request artifacts for hostname. The key is
// written first so that an interrupted Store never leaves a request file
// (the Pending witness) without its key. If either write fails, both files
// are removed again to prevent an orphaned half-state.
func (c *Cache) Store(hostname string, keyPEM, csrPEM []byte) (*HostRequest, error) {
	keyPath := c.keyPath(hostname)
	reqPath := c.reqPath(hostname)

	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		_ = os.Remove(keyPath)
		return nil, fmt.Errorf("cache: write key for %q: %w", hostname, err)
	}
	if err := os.WriteFile(reqPath, csrPEM, 0o600); err != nil {
		_ = os.Remove(keyPath)
		_ = os.Remove(reqPath)
		return nil, fmt.Errorf("cache: write request for %q: %w", hostname, err)
	}

	return &HostRequest{
		Hostname:    hostname,
		State:       StatePending,
		KeyPath:     keyPath,
		RequestPath: reqPath,
	}, nil
}

// AttachCertificate writes a candidate certificate for hostname. The caller
// is responsible for validating the bytes and either finalizing or
// discarding the candidate.
func (c *Cache) AttachCertificate(hostname string, certPEM []byte) (string, error) {
	path := c.certPath(hostname)
	if err := os.WriteFile(path, certPEM, 0o600); err != nil {
		return "", fmt.Errorf("cache: write candidate certificate for %q: %w", hostname, err)
	}
	return path, nil
}

// DiscardCertificate removes a candidate certificate that failed validation.
func (c *Cache) DiscardCertificate(hostname string) error {
	if err := os.Remove(c.certPath(hostname)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cache: discard candidate certificate for %q: %w", hostname, err)
	}
	return nil
}

// Finalize moves the key and certificate artifacts for hostname into
// outputDir and removes the request artifact. This is the only success path
// out of Pending. A missing key artifact (deleted out-of-band) is a warning,
// not an error: the certificate is still moved, since the CA side cannot
// reproduce it once the request is gone.
func (c *Cache) Finalize(hostname, outputDir string) error {
	certSrc := c.certPath(hostname)
	if _, err := os.Stat(certSrc); err != nil {
		return fmt.Errorf("cache: no certificate to finalize for %q: %w", hostname, err)
	}

	keySrc := c.keyPath(hostname)
	if _, err := os.Stat(keySrc); err == nil {
		if err := moveFile(keySrc, filepath.Join(outputDir, hostname+keySuffix)); err != nil {
			return fmt.Errorf("cache: move key for %q: %w", hostname, err)
		}
	} else {
		c.logger.Warn("key artifact missing, moving certificate alone", "hostname", hostname)
	}

	if err := moveFile(certSrc, filepath.Join(outputDir, hostname+certSuffix)); err != nil {
		return fmt.Errorf("cache: move certificate for %q: %w", hostname, err)
	}

	if err := os.Remove(c.reqPath(hostname)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cache: remove request for %q: %w", hostname, err)
	}
	return nil
}

// Remove deletes whatever artifacts exist for hostname. Returns
// ErrNotPending when there was nothing to delete; callers decide whether
// that is worth a warning.
func (c *Cache) Remove(hostname string) error {
	removed := false
	for _, path := range []string{c.keyPath(hostname), c.reqPath(hostname), c.certPath(hostname)} {
		err := os.Remove(path)
		switch {
		case err == nil:
			removed = true
		case os.IsNotExist(err):
			// nothing there
		default:
			return fmt.Errorf("cache: remove artifact for %q: %w", hostname, err)
		}
	}
	if !removed {
		return fmt.Errorf("%w: %q", ErrNotPending, hostname)
	}
	return nil
}

// ListPending returns the hostnames with a cached request artifact. Order is
// filesystem-dependent and unspecified.
func (c *Cache) ListPending() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("cache: list %q: %w", c.dir, err)
	}
	var hostnames []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, reqSuffix) {
			hostnames = append(hostnames, strings.TrimSuffix(name, reqSuffix))
		}
	}
	return hostnames, nil
}

// Purge deletes the entire cache root, including the shared trust anchor.
// Irreversible; the next operation recreates the root from scratch.
func (c *Cache) Purge() error {
	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("%w: %v", ErrPurge, err)
	}
	return nil
}

// moveFile renames src to dst, falling back to copy+remove when the output
// directory lives on a different filesystem.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	// Rename fails across filesystems; fall back to copy+remove.
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
