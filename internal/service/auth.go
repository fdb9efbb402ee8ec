package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vibeapp/server/internal/logger"
	"github.com/vibeapp/server/internal/model"
	"github.com/vibeapp/server/internal/security"
)

// Auth orchestrates login, logout, token reissue and request authentication
// over the attempt guard, the revocation store and the refresh session
// store. All expected rejections come back as taxonomy errors from
// internal/model; anything else is an internal failure.
type Auth struct {
	users         model.UserStore
	refreshTokens model.RefreshTokenStore
	tokens        model.TokenManager
	guard         *security.AttemptGuard
	blacklist     *security.TokenBlacklist
	refreshTTL    time.Duration
	logger        *logger.Logger
}

func NewAuth(
	users model.UserStore,
	refreshTokens model.RefreshTokenStore,
	tokens model.TokenManager,
	guard *security.AttemptGuard,
	blacklist *security.TokenBlacklist,
	refreshTTL time.Duration,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		users:         users,
		refreshTokens: refreshTokens,
		tokens:        tokens,
		guard:         guard,
		blacklist:     blacklist,
		refreshTTL:    refreshTTL,
		logger:        logger,
	}
}

// Login verifies credentials and issues a fresh token pair. A locked
// account is rejected before the password is even looked at.
func (a *Auth) Login(ctx context.Context, email, password string) (model.TokenPair, error) {
	locked, err := a.guard.IsLocked(ctx, email)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("failed to check lockout: %w", err)
	}
	if locked {
		a.logger.Info("Auth service: login rejected, account locked", "login", email)
		return model.TokenPair{}, model.ErrLocked
	}

	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.TokenPair{}, a.loginFailed(ctx, email)
		}
		return model.TokenPair{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.TokenPair{}, a.loginFailed(ctx, email)
	}

	if err := a.guard.RecordSuccess(ctx, email); err != nil {
		return model.TokenPair{}, fmt.Errorf("failed to clear login failures: %w", err)
	}

	// One active refresh token per user: any prior session row goes first.
	if err := a.refreshTokens.DeleteByUser(ctx, user.ID); err != nil {
		return model.TokenPair{}, fmt.Errorf("failed to delete prior refresh token: %w", err)
	}

	pair, err := a.issuePair(ctx, user)
	if err != nil {
		return model.TokenPair{}, err
	}

	a.logger.Info("Auth service: login completed", "login", email)
	return pair, nil
}

func (a *Auth) loginFailed(ctx context.Context, email string) error {
	if err := a.guard.RecordFailure(ctx, email); err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}
	a.logger.Info("Auth service: login failed", "login", email)
	return model.ErrInvalidCredentials
}

// Reissue rotates a refresh token into a new token pair. Presenting an
// already-rotated token is treated as a compromise: every session of its
// owner is purged and the request is rejected.
func (a *Auth) Reissue(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	if _, err := a.tokens.Verify(refreshToken); err != nil {
		return model.TokenPair{}, model.ErrInvalidToken
	}

	owner, err := a.blacklist.RotatedTokenOwner(ctx, refreshToken)
	if err == nil {
		return model.TokenPair{}, a.replayDetected(ctx, owner)
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.TokenPair{}, fmt.Errorf("failed to check rotated tokens: %w", err)
	}

	stored, err := a.refreshTokens.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.TokenPair{}, model.ErrInvalidToken
		}
		return model.TokenPair{}, fmt.Errorf("failed to get refresh token: %w", err)
	}

	if time.Now().After(stored.ExpiresAt) {
		if err := a.refreshTokens.DeleteByToken(ctx, refreshToken); err != nil {
			return model.TokenPair{}, fmt.Errorf("failed to delete expired refresh token: %w", err)
		}
		return model.TokenPair{}, model.ErrInvalidToken
	}

	user, err := a.users.GetByID(ctx, stored.UserID)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("failed to get refresh token owner: %w", err)
	}

	pair, err := a.rotatePair(ctx, user, refreshToken)
	if err != nil {
		return model.TokenPair{}, err
	}

	a.logger.Info("Auth service: token reissue completed", "login", user.Email)
	return pair, nil
}

func (a *Auth) replayDetected(ctx context.Context, owner string) error {
	a.logger.Warn("Auth service: rotated refresh token replayed, purging sessions",
		"login", owner)

	user, err := a.users.GetByEmail(ctx, owner)
	if err == nil {
		if err := a.refreshTokens.DeleteByUser(ctx, user.ID); err != nil {
			return fmt.Errorf("failed to purge sessions after replay: %w", err)
		}
	} else if !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("failed to resolve replayed token owner: %w", err)
	}

	return model.ErrInvalidToken
}

// Logout removes the subject's refresh session and blacklists the presented
// access token for the rest of its natural lifetime.
func (a *Auth) Logout(ctx context.Context, accessToken, subject string) error {
	user, err := a.users.GetByEmail(ctx, subject)
	if err == nil {
		if err := a.refreshTokens.DeleteByUser(ctx, user.ID); err != nil {
			return fmt.Errorf("failed to delete refresh token: %w", err)
		}
	} else if !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("failed to get user by email: %w", err)
	}

	remaining, err := a.tokens.RemainingLifetime(accessToken)
	if err != nil {
		// Malformed token, nothing left to revoke.
		return nil
	}
	if err := a.blacklist.BlacklistAccess(ctx, accessToken, remaining); err != nil {
		return fmt.Errorf("failed to blacklist access token: %w", err)
	}

	a.logger.Info("Auth service: logout completed", "login", subject)
	return nil
}

// Authenticate resolves the subject of an access token, rejecting tokens
// that fail verification or were blacklisted at logout.
func (a *Auth) Authenticate(ctx context.Context, accessToken string) (string, error) {
	subject, err := a.tokens.Verify(accessToken)
	if err != nil {
		return "", model.ErrInvalidToken
	}

	listed, err := a.blacklist.IsAccessBlacklisted(ctx, accessToken)
	if err != nil {
		return "", fmt.Errorf("failed to check token blacklist: %w", err)
	}
	if listed {
		return "", model.ErrInvalidToken
	}

	return subject, nil
}

func (a *Auth) issuePair(ctx context.Context, user model.User) (model.TokenPair, error) {
	access, err := a.tokens.IssueAccessToken(user.Email)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("failed to issue access token: %w", err)
	}
	refresh, err := a.tokens.IssueRefreshToken(user.Email)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	rt := model.RefreshToken{
		Token:     refresh,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(a.refreshTTL),
	}
	if err := a.refreshTokens.Save(ctx, rt); err != nil {
		return model.TokenPair{}, fmt.Errorf("failed to persist refresh token: %w", err)
	}

	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		UserName:     user.Name,
	}, nil
}

func (a *Auth) rotatePair(ctx context.Context, user model.User, oldRefresh string) (model.TokenPair, error) {
	access, err := a.tokens.IssueAccessToken(user.Email)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("failed to issue access token: %w", err)
	}
	refresh, err := a.tokens.IssueRefreshToken(user.Email)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	newRow := model.RefreshToken{
		Token:     refresh,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(a.refreshTTL),
	}
	if err := a.refreshTokens.Rotate(ctx, oldRefresh, newRow); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			// A concurrent reissue already consumed the old token.
			return model.TokenPair{}, model.ErrInvalidToken
		}
		return model.TokenPair{}, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	// Register the consumed token so a second presentation is recognized as
	// a replay for as long as it could still verify.
	if remaining, err := a.tokens.RemainingLifetime(oldRefresh); err == nil {
		if err := a.blacklist.MarkRotated(ctx, oldRefresh, user.Email, remaining); err != nil {
			return model.TokenPair{}, fmt.Errorf("failed to mark token rotated: %w", err)
		}
	}

	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		UserName:     user.Name,
	}, nil
}
