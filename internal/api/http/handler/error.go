package handler

import (
	"errors"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"github.com/vibeapp/server/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
}

// handleError maps taxonomy errors to response codes. Unexpected failures
// are reported with full detail for operator follow-up and answered with a
// generic message.
func handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, model.ErrLocked):
		return c.Status(fiber.StatusForbidden).JSON(errorResponse{
			Error: "Account is locked due to too many failed attempts. Please try again later.",
		})
	case errors.Is(err, model.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{Error: "Invalid email or password."})
	case errors.Is(err, model.ErrInvalidToken):
		return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{Error: "Invalid or expired token."})
	case errors.Is(err, model.ErrRateLimited):
		return c.Status(fiber.StatusTooManyRequests).JSON(errorResponse{Error: "Too many requests."})
	case errors.Is(err, model.ErrEmailTaken):
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "Email is already registered."})
	case errors.Is(err, model.ErrPasswordMismatch):
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "Password confirmation does not match."})
	case errors.Is(err, model.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "Not found."})
	default:
		sentry.CaptureException(err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "Internal server error."})
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: msg})
}

// clientIP prefers the X-Forwarded-For chain over the socket address.
func clientIP(c *fiber.Ctx) string {
	if forwarded := c.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	return c.IP()
}
