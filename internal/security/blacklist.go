package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vibeapp/server/internal/model"
)

// TokenBlacklist tracks logged-out access tokens and rotated-out refresh
// tokens. Every entry lives exactly as long as the token it shadows, so no
// background sweep is needed.
type TokenBlacklist struct {
	kv model.KeyValueStore
}

// NewTokenBlacklist creates a TokenBlacklist over the shared expiring store.
func NewTokenBlacklist(kv model.KeyValueStore) *TokenBlacklist {
	return &TokenBlacklist{kv: kv}
}

// BlacklistAccess records an access token as revoked for ttl. An expired
// token (ttl <= 0) needs no entry, its signature check already fails.
func (b *TokenBlacklist) BlacklistAccess(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := b.kv.Set(ctx, blacklistPrefix+token, "logout", ttl); err != nil {
		return fmt.Errorf("failed to blacklist access token: %w", err)
	}
	return nil
}

// IsAccessBlacklisted reports whether the access token was revoked.
func (b *TokenBlacklist) IsAccessBlacklisted(ctx context.Context, token string) (bool, error) {
	exists, err := b.kv.Exists(ctx, blacklistPrefix+token)
	if err != nil {
		return false, fmt.Errorf("failed to check access token blacklist: %w", err)
	}
	return exists, nil
}

// MarkRotated records that a refresh token has been superseded, keeping the
// owning subject so a replay can be attributed.
func (b *TokenBlacklist) MarkRotated(ctx context.Context, oldToken, subject string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := b.kv.Set(ctx, rotatedPrefix+oldToken, subject, ttl); err != nil {
		return fmt.Errorf("failed to mark refresh token rotated: %w", err)
	}
	return nil
}

// RotatedTokenOwner returns the subject that owned a rotated-out refresh
// token, or ErrNotFound when the token was never rotated.
func (b *TokenBlacklist) RotatedTokenOwner(ctx context.Context, oldToken string) (string, error) {
	subject, err := b.kv.Get(ctx, rotatedPrefix+oldToken)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", model.ErrNotFound
		}
		return "", fmt.Errorf("failed to look up rotated refresh token: %w", err)
	}
	return subject, nil
}
