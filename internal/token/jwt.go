package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vibeapp/server/internal/model"
)

// JWT implements TokenManager backed by symmetric HMAC. Both token kinds are
// signed with the same key and differ only in lifetime; the caller decides
// which kind it is handling.
type JWT struct {
	secretKey  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewJWT creates a new JWT token manager with the provided secret key and
// per-kind lifetimes.
func NewJWT(secretKey string, accessTTL, refreshTTL time.Duration) model.TokenManager {
	return &JWT{
		secretKey:  []byte(secretKey),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssueAccessToken creates a short-lived access token for the subject.
func (j *JWT) IssueAccessToken(subject string) (string, error) {
	return j.issue(subject, j.accessTTL)
}

// IssueRefreshToken creates a long-lived refresh token for the subject.
func (j *JWT) IssueRefreshToken(subject string) (string, error) {
	return j.issue(subject, j.refreshTTL)
}

func (j *JWT) issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	// jti keeps tokens for the same subject distinct even when issued within
	// the same second; refresh tokens are stored keyed by their full string.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	})

	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Verify validates signature and expiry and extracts the subject. Any parse
// or validation failure is normalized to model.ErrInvalidToken.
func (j *JWT) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, j.keyFunc)
	if err != nil || !token.Valid {
		return "", model.ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", model.ErrInvalidToken
	}
	return claims.Subject, nil
}

// RemainingLifetime returns expiry minus now. The result is negative for an
// already expired token; signature and structure are still checked so a
// forged token cannot be measured.
func (j *JWT) RemainingLifetime(tokenString string) (time.Duration, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, j.keyFunc, jwt.WithoutClaimsValidation())
	if err != nil {
		return 0, model.ErrInvalidToken
	}
	if claims.ExpiresAt == nil {
		return 0, model.ErrInvalidToken
	}
	return time.Until(claims.ExpiresAt.Time), nil
}

func (j *JWT) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
	}
	return j.secretKey, nil
}
