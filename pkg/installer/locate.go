// pkg/installer/locate.go - finding installers on disk, downloading them when
// absent, and gating them on their checksum.

package installer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/windowsadmins/provision/pkg/download"
	perrors "github.com/windowsadmins/provision/pkg/errors"
	"github.com/windowsadmins/provision/pkg/logging"
	"github.com/windowsadmins/provision/pkg/utils"
)

// Fetcher downloads one file. download.File in production.
type Fetcher func(ctx context.Context, req download.Request) (string, error)

// Locator resolves installer files below the installers directory.
type Locator struct {
	InstallersDir   string
	Online          bool
	DownloadTimeout time.Duration
	DownloadRetries int
	AllowInsecure   bool
	Fetch           Fetcher // download.File when nil
}

// Source is a file an entry needs: an installer, an uninstaller or an archive.
type Source struct {
	Name     string // owning manifest entry, for logs
	Path     string // directory relative to the installers directory
	File     string // file name, may carry a relative directory
	Checksum string
	URL      string
	MaxSize  int64
}

// Dir is the absolute directory the source is searched in and downloaded to.
func (l *Locator) Dir(src Source) string {
	return utils.AbsolutePath(l.InstallersDir, src.Path)
}

// Find searches for the source without verifying it.
func (l *Locator) Find(src Source) (string, bool) {
	return utils.FindFile(l.Dir(src), src.File)
}

// Resolve returns the path of a verified copy of src. A missing or
// mismatching file triggers exactly one download when online and a URL is
// configured; the result is then searched for and verified again. A file
// that still fails the checksum is never returned.
func (l *Locator) Resolve(ctx context.Context, src Source) (string, error) {
	if path, ok := l.Find(src); ok {
		valid, err := utils.VerifyChecksum(path, src.Checksum)
		if err == nil && valid {
			return path, nil
		}
		logging.Info("Installer present but not verified, trying to download", "software", src.Name, "path", path)
	}

	var dlErr error
	if download.ShouldDownload(l.Online, src.URL) {
		dlErr = l.download(ctx, src)
	}

	path, ok := l.Find(src)
	if !ok {
		logging.Error("Failed to locate the file", "software", src.Name, "file", src.File, "dir", l.Dir(src))
		if dlErr != nil {
			return "", fmt.Errorf("%w: %s: %w", perrors.ErrNotFound, src.File, dlErr)
		}
		return "", fmt.Errorf("%w: %s in %s", perrors.ErrNotFound, src.File, l.Dir(src))
	}
	valid, err := utils.VerifyChecksum(path, src.Checksum)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", perrors.ErrChecksumMismatch, path, err)
	}
	if !valid {
		logging.Error("The checksum of the file is not valid", "software", src.Name, "path", path)
		return "", fmt.Errorf("%w: %s", perrors.ErrChecksumMismatch, path)
	}
	return path, nil
}

func (l *Locator) download(ctx context.Context, src Source) error {
	fetch := l.Fetch
	if fetch == nil {
		fetch = download.File
	}
	_, err := fetch(ctx, download.Request{
		URL:           src.URL,
		Dir:           filepath.Dir(filepath.Join(l.Dir(src), src.File)),
		FileName:      filepath.Base(src.File),
		MaxSize:       src.MaxSize,
		Timeout:       l.DownloadTimeout,
		Retries:       l.DownloadRetries,
		AllowInsecure: l.AllowInsecure,
	})
	if err != nil {
		logging.Warn("Download failed", "software", src.Name, "url", src.URL, "error", err)
	}
	return err
}
