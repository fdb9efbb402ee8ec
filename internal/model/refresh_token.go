package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RefreshTokenStore persists the single active refresh token per user.
type RefreshTokenStore interface {
	Save(ctx context.Context, token RefreshToken) error
	GetByToken(ctx context.Context, token string) (RefreshToken, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
	// Rotate atomically removes the old token row and inserts the new one.
	// Returns ErrNotFound when the old row is already gone, so only one of
	// several concurrent rotations of the same token can succeed.
	Rotate(ctx context.Context, oldToken string, newToken RefreshToken) error
}

// RefreshToken is the durable record of an issued refresh token.
type RefreshToken struct {
	Token     string
	UserID    uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
}
