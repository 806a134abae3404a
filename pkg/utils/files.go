// pkg/utils/files.go - deleting and copying workspace files.

package utils

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/windowsadmins/provision/pkg/logging"
)

var driveRoot = regexp.MustCompile(`^[A-Za-z]:[\\/]*$`)

// IsDriveRoot reports whether path names a bare drive such as C:\ or a
// filesystem root.
func IsDriveRoot(path string) bool {
	if driveRoot.MatchString(path) {
		return true
	}
	clean := filepath.Clean(path)
	return clean == string(filepath.Separator) || filepath.Dir(clean) == clean
}

// DeleteFiles removes each entry of files (relative to base) whether it is a
// file or a directory tree. Missing entries are ignored and drive roots are
// refused. Every entry is attempted; the first error is returned.
func DeleteFiles(base string, files []string) error {
	var firstErr error
	for _, name := range files {
		if name == "" {
			continue
		}
		path := AbsolutePath(base, ExpandEnv(name))
		if IsDriveRoot(path) {
			logging.Warn("Refusing to delete a drive root", "path", path)
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			if !os.IsNotExist(err) {
				logging.Error("Failed to inspect path for deletion", "path", path, "error", err)
				if firstErr == nil {
					firstErr = err
				}
			}
			continue
		}
		if info.IsDir() {
			logging.Info("Removing directory", "path", path)
			err = os.RemoveAll(path)
		} else {
			logging.Info("Deleting file", "path", path)
			err = os.Remove(path)
		}
		if err != nil {
			logging.Error("Failed to delete", "path", path, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to delete %s: %w", path, err)
			}
		}
	}
	return firstErr
}

// CopyFiles copies each entry of files from srcDir into the same relative
// location under destDir. With no files listed the whole of srcDir is copied.
// Every entry is attempted; the first error is returned.
func CopyFiles(srcDir, destDir string, files []string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", destDir, err)
	}
	if len(files) == 0 {
		return copyTree(srcDir, destDir)
	}

	var firstErr error
	for _, name := range files {
		src := AbsolutePath(srcDir, name)
		dst := AbsolutePath(destDir, name)
		info, err := os.Stat(src)
		switch {
		case err != nil:
			err = fmt.Errorf("failed to stat %s: %w", src, err)
		case info.IsDir():
			err = copyTree(src, dst)
		default:
			err = copyFile(src, dst, info.Mode())
		}
		if err != nil {
			logging.Error("Failed to copy", "source", src, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
