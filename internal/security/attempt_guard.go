package security

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/vibeapp/server/internal/model"
)

// AttemptGuard counts failed login attempts per subject and enforces a
// temporary lockout. Every failure re-arms the full lockout window, so a
// locked account stays locked while failures keep coming.
type AttemptGuard struct {
	kv          model.KeyValueStore
	maxAttempts int
	window      time.Duration
}

// NewAttemptGuard creates an AttemptGuard over the shared expiring store.
func NewAttemptGuard(kv model.KeyValueStore, maxAttempts int, window time.Duration) *AttemptGuard {
	return &AttemptGuard{kv: kv, maxAttempts: maxAttempts, window: window}
}

// RecordFailure increments the failure counter for the subject and resets
// its expiry to the full lockout window.
func (g *AttemptGuard) RecordFailure(ctx context.Context, subject string) error {
	key := loginFailurePrefix + subject

	if _, err := g.kv.Increment(ctx, key); err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}
	if err := g.kv.Expire(ctx, key, g.window); err != nil {
		return fmt.Errorf("failed to arm lockout window: %w", err)
	}
	return nil
}

// RecordSuccess clears the failure counter for the subject.
func (g *AttemptGuard) RecordSuccess(ctx context.Context, subject string) error {
	if err := g.kv.Delete(ctx, loginFailurePrefix+subject); err != nil {
		return fmt.Errorf("failed to clear login failures: %w", err)
	}
	return nil
}

// IsLocked reports whether the subject has reached the failure threshold.
// A missing counter reads as zero failures.
func (g *AttemptGuard) IsLocked(ctx context.Context, subject string) (bool, error) {
	val, err := g.kv.Get(ctx, loginFailurePrefix+subject)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read login failures: %w", err)
	}

	attempts, err := strconv.Atoi(val)
	if err != nil {
		return false, fmt.Errorf("failed to parse login failure count: %w", err)
	}
	return attempts >= g.maxAttempts, nil
}
