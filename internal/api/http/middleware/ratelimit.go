package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/vibeapp/server/internal/logger"
)

// RateLimiter gates requests per (client, endpoint).
type RateLimiter interface {
	IsAllowed(ctx context.Context, client, endpoint string) (bool, error)
}

// RateLimit rejects over-limit requests with 429 before any handler runs.
func RateLimit(limiter RateLimiter, logger *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		allowed, err := limiter.IsAllowed(c.Context(), c.IP(), c.Path())
		if err != nil {
			logger.Error("rate limit check failed",
				"path", c.Path(),
				"error", err.Error())
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
		if !allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		}
		return c.Next()
	}
}
