package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/vibeapp/server/internal/api/http/middleware"
	"github.com/vibeapp/server/internal/audit"
	"github.com/vibeapp/server/internal/logger"
	"github.com/vibeapp/server/internal/model"
)

// UserService defines registration and password management operations.
type UserService interface {
	Signup(ctx context.Context, name, email, password, passwordConfirm string) error
	ChangePassword(ctx context.Context, email, currentPassword, newPassword, newPasswordConfirm string) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
}

// User handles HTTP endpoints for signup and account management.
type User struct {
	userService UserService
	recorder    *audit.Recorder
	logger      *logger.Logger
}

// NewUser creates a new User handler.
func NewUser(userService UserService, recorder *audit.Recorder, logger *logger.Logger) *User {
	return &User{
		userService: userService,
		recorder:    recorder,
		logger:      logger,
	}
}

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type passwordChangeRequest struct {
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword"`
	NewPasswordConfirm string `json:"newPasswordConfirm"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Signup registers a new user.
func (h *User) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return badRequest(c, "name, email and password are required")
	}

	if err := h.userService.Signup(c.Context(), req.Name, req.Email, req.Password, req.PasswordConfirm); err != nil {
		return handleError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

// Me returns the authenticated user's profile.
func (h *User) Me(c *fiber.Ctx) error {
	subject, _ := c.Locals(middleware.SubjectKey).(string)

	user, err := h.userService.GetByEmail(c.Context(), subject)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(userResponse{
		ID:        user.ID.String(),
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

// ChangePassword replaces the authenticated user's password.
func (h *User) ChangePassword(c *fiber.Ctx) error {
	subject, _ := c.Locals(middleware.SubjectKey).(string)

	var req passwordChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return badRequest(c, "current and new password are required")
	}

	err := h.recorder.Observe(c.Context(), "PASSWORD_CHANGE", clientIP(c), func() (string, error) {
		return subject, h.userService.ChangePassword(
			c.Context(), subject, req.CurrentPassword, req.NewPassword, req.NewPasswordConfirm)
	})
	if err != nil {
		return handleError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
