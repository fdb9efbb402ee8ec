package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vibeapp/server/internal/logger"
	"github.com/vibeapp/server/internal/model"
)

// Users handles registration and password management.
type Users struct {
	store  model.UserStore
	logger *logger.Logger
}

func NewUsers(store model.UserStore, logger *logger.Logger) *Users {
	return &Users{store: store, logger: logger}
}

// Signup registers a new user with a bcrypt password hash.
func (u *Users) Signup(ctx context.Context, name, email, password, passwordConfirm string) error {
	if password != passwordConfirm {
		return model.ErrPasswordMismatch
	}

	_, err := u.store.GetByEmail(ctx, email)
	if err == nil {
		return model.ErrEmailTaken
	}
	if !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("failed to get user by email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := model.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}
	if _, err := u.store.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	u.logger.Info("Users service: signup completed", "login", email)
	return nil
}

// ChangePassword replaces the stored hash after verifying the current
// password and the confirmation.
func (u *Users) ChangePassword(ctx context.Context, email, currentPassword, newPassword, newPasswordConfirm string) error {
	user, err := u.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		return fmt.Errorf("failed to get user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return model.ErrInvalidCredentials
	}

	if newPassword != newPasswordConfirm {
		return model.ErrPasswordMismatch
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := u.store.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	u.logger.Info("Users service: password changed", "login", email)
	return nil
}

// GetByEmail returns the stored user for the subject.
func (u *Users) GetByEmail(ctx context.Context, email string) (model.User, error) {
	user, err := u.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}
