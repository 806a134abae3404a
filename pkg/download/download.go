// pkg/download/download.go - fetching installers and archives over HTTP(S).

package download

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	perrors "github.com/windowsadmins/provision/pkg/errors"
	"github.com/windowsadmins/provision/pkg/logging"
	"github.com/windowsadmins/provision/pkg/retry"
)

const (
	// DefaultMaxSize caps a download when the manifest sets no limit.
	DefaultMaxSize int64 = 1 << 30
	// DefaultTimeout bounds one whole request.
	DefaultTimeout = 5 * time.Minute

	caFileEnv = "SSL_CA_CERTIFICATE_FILE"
	caPathEnv = "SSL_CA_CERTIFICATES_PATH"
)

// Request describes one file to fetch.
type Request struct {
	URL           string
	Dir           string // created if missing
	FileName      string
	MaxSize       int64
	Timeout       time.Duration
	Retries       int  // total attempts, see retry.RetryConfig
	AllowInsecure bool // skip TLS verification when no CA material is configured
}

// ShouldDownload reports whether a fetch may be attempted at all.
func ShouldDownload(online bool, url string) bool {
	if !online || url == "" {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(url))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// File downloads req.URL into req.Dir/req.FileName and returns the path.
// The body is written to a temporary file and renamed into place, so a
// failed or oversized download never leaves a partial installer behind.
// Every failure wraps errors.ErrDownloadFailed.
func File(ctx context.Context, req Request) (string, error) {
	if req.MaxSize <= 0 {
		req.MaxSize = DefaultMaxSize
	}
	if req.Timeout <= 0 {
		req.Timeout = DefaultTimeout
	}
	if err := os.MkdirAll(req.Dir, 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create directory %s: %v", perrors.ErrDownloadFailed, req.Dir, err)
	}
	dest := filepath.Join(req.Dir, req.FileName)

	client, err := newClient(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", perrors.ErrDownloadFailed, err)
	}

	start := time.Now()
	logging.LogDownloadStart(req.URL, dest)
	var written int64
	err = retry.Retry(ctx, retry.RetryConfig{MaxRetries: req.Retries, InitialInterval: 2 * time.Second, Multiplier: 2.0}, func() error {
		n, err := fetch(ctx, client, req, dest)
		written = n
		return err
	})
	if err != nil {
		logging.LogDownloadFailed(req.URL, err)
		return "", fmt.Errorf("%w: %s: %v", perrors.ErrDownloadFailed, req.URL, err)
	}
	logging.LogDownloadComplete(req.URL, written, time.Since(start))
	return dest, nil
}

func fetch(ctx context.Context, client *http.Client, req Request, dest string) (int64, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return 0, retry.NonRetryable(fmt.Errorf("failed to prepare HTTP request: %w", err))
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		statusErr := fmt.Errorf("unexpected HTTP status code: %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return 0, statusErr
		}
		return 0, retry.NonRetryable(statusErr)
	}
	if resp.ContentLength > req.MaxSize {
		return 0, retry.NonRetryable(fmt.Errorf("file size %d exceeds the limit of %d bytes", resp.ContentLength, req.MaxSize))
	}

	tmp, err := os.CreateTemp(req.Dir, ".download-*")
	if err != nil {
		return 0, retry.NonRetryable(fmt.Errorf("failed to open temporary file: %w", err))
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, req.MaxSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("failed to write downloaded data: %w", err)
	}
	if n > req.MaxSize {
		return n, retry.NonRetryable(fmt.Errorf("file size exceeds the limit of %d bytes", req.MaxSize))
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return n, retry.NonRetryable(fmt.Errorf("failed to move download into place: %w", err))
	}
	logging.Debug("File saved", "file", dest, "bytes", n)
	return n, nil
}

// newClient builds an HTTP client whose TLS trust comes from the CA file or
// directory named by the environment. Without either, verification is
// skipped when AllowInsecure is set.
func newClient(req Request) (*http.Client, error) {
	tlsConfig, err := tlsConfigFromEnv(req.AllowInsecure)
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	return &http.Client{Timeout: req.Timeout, Transport: transport}, nil
}

func tlsConfigFromEnv(allowInsecure bool) (*tls.Config, error) {
	caFile := os.Getenv(caFileEnv)
	caPath := os.Getenv(caPathEnv)
	if caFile == "" && caPath == "" {
		if !allowInsecure {
			return &tls.Config{MinVersion: tls.VersionTLS12}, nil
		}
		logging.Warn("No CA certificates configured, TLS verification is disabled for downloads",
			"env", caFileEnv+","+caPathEnv)
		return &tls.Config{InsecureSkipVerify: true}, nil //nolint:gosec
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	files := []string{}
	if caFile != "" {
		files = append(files, caFile)
	}
	if caPath != "" {
		entries, err := os.ReadDir(caPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s %s: %w", caPathEnv, caPath, err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				files = append(files, filepath.Join(caPath, e.Name()))
			}
		}
	}
	loaded := 0
	for _, f := range files {
		pem, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate %s: %w", f, err)
		}
		if pool.AppendCertsFromPEM(pem) {
			loaded++
		}
	}
	if loaded == 0 {
		return nil, fmt.Errorf("no PEM certificates found in %s/%s", caFile, caPath)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
