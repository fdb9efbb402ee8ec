package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vibeapp/server/internal/model"
)

var _ model.RefreshTokenStore = (*RefreshTokenRepository)(nil)

type RefreshTokenRepository struct {
	db *Connection
}

func NewRefreshTokenRepository(db *Connection) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Save(ctx context.Context, token model.RefreshToken) error {
	const query = `
        INSERT INTO refresh_tokens (token, user_id, expires_at, created_at)
        VALUES ($1, $2, $3, NOW())
    `
	if _, err := r.db.Exec(ctx, query, token.Token, token.UserID, token.ExpiresAt); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) GetByToken(ctx context.Context, token string) (model.RefreshToken, error) {
	const query = `
        SELECT token, user_id, expires_at, created_at
        FROM refresh_tokens WHERE token = $1
    `
	var rt model.RefreshToken
	err := r.db.QueryRow(ctx, query, token).Scan(
		&rt.Token, &rt.UserID, &rt.ExpiresAt, &rt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.RefreshToken{}, model.ErrNotFound
		}
		return model.RefreshToken{}, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return rt, nil
}

func (r *RefreshTokenRepository) DeleteByToken(ctx context.Context, token string) error {
	const query = `DELETE FROM refresh_tokens WHERE token = $1`
	if _, err := r.db.Exec(ctx, query, token); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	const query = `DELETE FROM refresh_tokens WHERE user_id = $1`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete refresh tokens by user: %w", err)
	}
	return nil
}

// Rotate replaces the old token row with the new one in a single
// transaction. The conditional delete makes the rotation single-use: of two
// concurrent rotations of the same token only one sees a deleted row, the
// other gets ErrNotFound.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldToken string, newToken model.RefreshToken) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin rotation: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, oldToken)
	if err != nil {
		return fmt.Errorf("failed to delete rotated refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	const insert = `
        INSERT INTO refresh_tokens (token, user_id, expires_at, created_at)
        VALUES ($1, $2, $3, NOW())
    `
	if _, err := tx.Exec(ctx, insert, newToken.Token, newToken.UserID, newToken.ExpiresAt); err != nil {
		return fmt.Errorf("failed to insert rotated refresh token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit rotation: %w", err)
	}
	return nil
}
