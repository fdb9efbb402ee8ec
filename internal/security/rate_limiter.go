package security

import (
	"context"
	"fmt"
	"time"

	"github.com/vibeapp/server/internal/model"
)

// RateLimiter counts requests per (client, endpoint) in fixed time windows.
// Bursts straddling a window boundary are accepted as a known approximation
// of the fixed-window algorithm.
type RateLimiter struct {
	kv     model.KeyValueStore
	limit  int
	window time.Duration
}

// NewRateLimiter creates a RateLimiter over the shared expiring store.
func NewRateLimiter(kv model.KeyValueStore, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{kv: kv, limit: limit, window: window}
}

// IsAllowed atomically increments the window counter for the client and
// endpoint and reports whether the request fits the limit. The counter key
// starts its window on the first request.
func (l *RateLimiter) IsAllowed(ctx context.Context, client, endpoint string) (bool, error) {
	key := rateLimitPrefix + endpoint + ":" + client

	count, err := l.kv.Increment(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to count request: %w", err)
	}

	if count == 1 {
		if err := l.kv.Expire(ctx, key, l.window); err != nil {
			return false, fmt.Errorf("failed to start rate window: %w", err)
		}
	}

	return count <= int64(l.limit), nil
}
