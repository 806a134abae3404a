package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/windowsadmins/provision/pkg/errors"
)

func TestShouldDownload(t *testing.T) {
	assert.True(t, ShouldDownload(true, "https://example.com/setup.exe"))
	assert.True(t, ShouldDownload(true, "HTTP://example.com/setup.exe"))
	assert.False(t, ShouldDownload(false, "https://example.com/setup.exe"))
	assert.False(t, ShouldDownload(true, ""))
	assert.False(t, ShouldDownload(true, `\\share\setup.exe`))
	assert.False(t, ShouldDownload(true, "ftp://example.com/setup.exe"))
}

func TestFileWritesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("installer payload"))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "git")
	path, err := File(context.Background(), Request{URL: srv.URL + "/Git.exe", Dir: dir, FileName: "Git.exe", Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Git.exe"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "installer payload", string(data))
}

func TestFileRejectsDeclaredOversize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, err := File(context.Background(), Request{URL: srv.URL, Dir: dir, FileName: "big.exe", MaxSize: 10, Retries: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrDownloadFailed)
	assert.NoFileExists(t, filepath.Join(dir, "big.exe"))
}

func TestFileRejectsStreamedOversize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.(http.Flusher).Flush() // chunked, no Content-Length
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, err := File(context.Background(), Request{URL: srv.URL, Dir: dir, FileName: "big.exe", MaxSize: 16})
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "big.exe"))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary file must be cleaned up")
}

func TestFileDoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := File(context.Background(), Request{URL: srv.URL, Dir: t.TempDir(), FileName: "x.exe", Retries: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestTLSConfigFromEnv(t *testing.T) {
	t.Setenv(caFileEnv, "")
	t.Setenv(caPathEnv, "")

	cfg, err := tlsConfigFromEnv(true)
	require.NoError(t, err)
	assert.True(t, cfg.InsecureSkipVerify)

	cfg, err = tlsConfigFromEnv(false)
	require.NoError(t, err)
	assert.False(t, cfg.InsecureSkipVerify)

	t.Setenv(caFileEnv, filepath.Join(t.TempDir(), "missing.pem"))
	_, err = tlsConfigFromEnv(true)
	assert.Error(t, err)
}
