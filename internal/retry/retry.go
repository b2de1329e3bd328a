package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// ErrWriteConflict marks a lost optimistic-concurrency race. Stores
// return it (wrapped) when a version check fails.
var ErrWriteConflict = errors.New("write conflict")

// IsWriteConflict reports whether err is a concurrent-write failure
// worth retrying.
func IsWriteConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrWriteConflict) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "conflict")
}

// Policy bounds a retry loop for conflicting writes. Delay grows
// linearly with the attempt number plus jitter.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
}

// DefaultPolicy mirrors the settlement path: up to 5 attempts, 150ms
// base step, up to 100ms jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   150 * time.Millisecond,
		MaxJitter:   100 * time.Millisecond,
	}
}

// Do runs fn, retrying only write-conflict errors. Any other error, or
// exhaustion of attempts, is returned to the caller.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * p.BaseDelay
			if p.MaxJitter > 0 {
				delay += time.Duration(rand.Int63n(int64(p.MaxJitter)))
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !IsWriteConflict(err) {
			return err
		}
	}
	return fmt.Errorf("retries exhausted after %d attempts: %w", attempts, err)
}
