// pkg/retry/retry.go - functions for retrying actions with exponential backoff.

package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/windowsadmins/provision/pkg/logging"
)

// RetryConfig defines the configuration for retry attempts
type RetryConfig struct {
	MaxRetries      int // total attempts; values below 1 mean a single attempt
	InitialInterval time.Duration
	Multiplier      float64
}

type nonRetryable struct{ err error }

func (e *nonRetryable) Error() string { return e.err.Error() }
func (e *nonRetryable) Unwrap() error { return e.err }

// NonRetryable marks err so that Retry returns it immediately.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryable{err: err}
}

// IsNonRetryable reports whether err was marked with NonRetryable.
func IsNonRetryable(err error) bool {
	var nr *nonRetryable
	return errors.As(err, &nr)
}

// sleep is swapped in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry runs action until it succeeds, returns a non-retryable error, the
// attempts are used up, or ctx is cancelled. The last error is returned
// wrapped with the attempt count.
func Retry(ctx context.Context, config RetryConfig, action func() error) error {
	attempts := config.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	interval := config.InitialInterval

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = action()
		if err == nil {
			return nil
		}
		if IsNonRetryable(err) {
			logging.Debug("Non-retryable error encountered", "attempt", attempt, "error", err)
			return err
		}
		if attempt == attempts {
			break
		}

		logging.Warn(fmt.Sprintf("Attempt %d/%d failed, retrying", attempt, attempts),
			"error", err, "retry_delay", interval.String())
		if serr := sleep(ctx, interval); serr != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
		if config.Multiplier > 0 {
			interval = time.Duration(float64(interval) * config.Multiplier)
		}
	}

	if attempts == 1 {
		return err
	}
	return fmt.Errorf("action failed after %d attempts: %w", attempts, err)
}
