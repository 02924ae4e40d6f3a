package ledger

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/vietddude/ecosetu/internal/infra/storage"
)

// Backoff is the delay schedule for appends that lost the version race.
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

// DefaultBackoff returns 10ms, 20ms, 40ms, 80ms (max 250ms) over 5 attempts.
func DefaultBackoff() Backoff {
	return Backoff{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     250 * time.Millisecond,
		MaxAttempts:  5,
	}
}

// GetDelay calculates delay: InitialDelay * 2^attempt
func (b Backoff) GetDelay(attempt int) time.Duration {
	delay := float64(b.InitialDelay) * math.Pow(2, float64(attempt))
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		return b.MaxDelay
	}
	return time.Duration(delay)
}

// ShouldRetry reports whether err is a version conflict and attempts remain.
// attempt is the 0-indexed attempt that just failed.
func (b Backoff) ShouldRetry(err error, attempt int) bool {
	if attempt+1 >= b.MaxAttempts {
		return false
	}
	return errors.Is(err, storage.ErrVersionConflict)
}

// Wait sleeps for the attempt's delay or until ctx is done.
func (b Backoff) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(b.GetDelay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
