package model

import (
	"context"
	"time"
)

// KeyValueStore is the capability surface this service needs from an
// expiring key-value store. Get returns ErrNotFound for a missing key.
// Increment must be atomic at the store level.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
