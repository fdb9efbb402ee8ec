package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/vibeapp/server/internal/api/http/middleware"
	"github.com/vibeapp/server/internal/audit"
	"github.com/vibeapp/server/internal/logger"
	"github.com/vibeapp/server/internal/model"
)

// AuthService defines the authentication flow operations.
type AuthService interface {
	Login(ctx context.Context, email, password string) (model.TokenPair, error)
	Reissue(ctx context.Context, refreshToken string) (model.TokenPair, error)
	Logout(ctx context.Context, accessToken, subject string) error
}

// Auth handles HTTP endpoints for login, reissue and logout.
type Auth struct {
	authService AuthService
	recorder    *audit.Recorder
	logger      *logger.Logger
}

// NewAuth creates a new Auth handler.
func NewAuth(authService AuthService, recorder *audit.Recorder, logger *logger.Logger) *Auth {
	return &Auth{
		authService: authService,
		recorder:    recorder,
		logger:      logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type reissueRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	TokenType    string `json:"tokenType"`
	UserName     string `json:"userName"`
	RefreshToken string `json:"refreshToken"`
}

// Login exchanges credentials for a token pair.
func (h *Auth) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email and password are required")
	}

	var pair model.TokenPair
	err := h.recorder.Observe(c.Context(), "LOGIN", clientIP(c), func() (string, error) {
		var err error
		pair, err = h.authService.Login(c.Context(), req.Email, req.Password)
		return req.Email, err
	})
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(tokenResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    "Bearer",
		UserName:     pair.UserName,
		RefreshToken: pair.RefreshToken,
	})
}

// Reissue rotates a refresh token into a new token pair.
func (h *Auth) Reissue(c *fiber.Ctx) error {
	var req reissueRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if req.RefreshToken == "" {
		return badRequest(c, "refreshToken is required")
	}

	var pair model.TokenPair
	err := h.recorder.Observe(c.Context(), "REISSUE", clientIP(c), func() (string, error) {
		var err error
		pair, err = h.authService.Reissue(c.Context(), req.RefreshToken)
		if err != nil {
			return "TOKEN_REISSUE_USER", err
		}
		return pair.UserName, nil
	})
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(tokenResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    "Bearer",
		UserName:     pair.UserName,
		RefreshToken: pair.RefreshToken,
	})
}

// Logout invalidates the caller's refresh session and access token.
func (h *Auth) Logout(c *fiber.Ctx) error {
	subject, _ := c.Locals(middleware.SubjectKey).(string)
	accessToken := middleware.BearerToken(c)

	err := h.recorder.Observe(c.Context(), "LOGOUT", clientIP(c), func() (string, error) {
		return subject, h.authService.Logout(c.Context(), accessToken, subject)
	})
	if err != nil {
		return handleError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
