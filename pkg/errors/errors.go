// pkg/errors/errors.go - failure kinds shared by the provisioning packages.

package errors

import (
	"errors"
	"fmt"
)

// Failure kinds. Wrap them with fmt.Errorf("%w") and test with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrDownloadFailed   = errors.New("download failed")
	ErrProcessFailed    = errors.New("process failed")
	ErrConfig           = errors.New("configuration error")
	ErrBlocked          = errors.New("blocking applications running")
)

// EntryError ties a failure to the manifest entry and the operation that produced it.
type EntryError struct {
	Software string
	Op       string
	Err      error
}

// NewEntryError constructs an EntryError.
func NewEntryError(software, op string, err error) error {
	return &EntryError{Software: software, Op: op, Err: err}
}

func (e *EntryError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Software, e.Err)
}

// Unwrap exposes the underlying error.
func (e *EntryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ConfigError captures a manifest or configuration problem at a specific field.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

// NewConfigError constructs a ConfigError.
func NewConfigError(field, message string, err error) error {
	return &ConfigError{Field: field, Message: message, Err: err}
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is makes every ConfigError match ErrConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// ExitError reports a process that ran but returned a non-zero exit code.
type ExitError struct {
	Args []string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %v exited with code %d", e.Args, e.Code)
}

// Is makes every ExitError match ErrProcessFailed.
func (e *ExitError) Is(target error) bool {
	return target == ErrProcessFailed
}
