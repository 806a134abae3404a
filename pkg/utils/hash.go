// pkg/utils/hash.go - utility functions for hashing files.

package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/windowsadmins/provision/pkg/logging"
)

// FileSHA256 returns the SHA256 sum of a file.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChecksum reports whether the SHA256 of path matches expected.
// An empty expected checksum always verifies. Hex case is ignored.
func VerifyChecksum(path, expected string) (bool, error) {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return true, nil
	}
	actual, err := FileSHA256(path)
	if err != nil {
		return false, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	if !strings.EqualFold(actual, expected) {
		logging.Warn("Checksum mismatch", "path", path, "expected", expected, "actual", actual)
		return false, nil
	}
	logging.Debug("Checksum verified", "path", path, "sha256", actual)
	return true, nil
}
