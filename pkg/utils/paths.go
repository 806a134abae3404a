// pkg/utils/paths.go - utility functions for working with file paths.

package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// AbsolutePath joins path onto base unless path is already absolute.
func AbsolutePath(base, path string) string {
	if filepath.IsAbs(path) || isWindowsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// isWindowsAbs catches drive-letter and UNC paths on hosts where
// filepath.IsAbs follows other rules.
func isWindowsAbs(path string) bool {
	if strings.HasPrefix(path, `\\`) {
		return true
	}
	return len(path) >= 3 && path[1] == ':' && (path[2] == '\\' || path[2] == '/')
}

// ExpandEnv expands %VAR% (Windows) and $VAR references in s.
func ExpandEnv(s string) string {
	for {
		start := strings.Index(s, "%")
		if start < 0 {
			break
		}
		end := strings.Index(s[start+1:], "%")
		if end < 0 {
			break
		}
		name := s[start+1 : start+1+end]
		val, ok := os.LookupEnv(name)
		if !ok || name == "" {
			// leave unknown references untouched and continue after them
			return s[:start+1+end+1] + ExpandEnv(s[start+1+end+1:])
		}
		s = s[:start] + val + s[start+1+end+1:]
	}
	return os.ExpandEnv(s)
}

// FindFile looks for file below root. A relative directory part of file
// narrows the search to that subdirectory; the base name is matched
// case-insensitively. The files of a directory are checked before any of its
// subdirectories, so a copy directly in the search directory wins over one
// nested deeper.
func FindFile(root, file string) (string, bool) {
	if file == "" {
		return "", false
	}
	full := AbsolutePath(root, file)
	found := findIn(filepath.Dir(full), filepath.Base(full))
	if found == "" {
		return "", false
	}
	abs, err := filepath.Abs(found)
	if err != nil {
		return found, true
	}
	return abs, true
}

func findIn(dir, want string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), want) {
			return filepath.Join(dir, e.Name())
		}
	}
	for _, e := range entries {
		if e.IsDir() {
			if found := findIn(filepath.Join(dir, e.Name()), want); found != "" {
				return found
			}
		}
	}
	return ""
}
