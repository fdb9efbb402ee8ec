package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// SubjectKey is the fiber locals key holding the authenticated subject.
const SubjectKey = "subject"

// Authenticator resolves the subject of a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

// Authenticate validates the Authorization bearer token and stores the
// subject in the request locals. Blacklisted and malformed tokens are both
// rejected with 401.
func Authenticate(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := BearerToken(c)
		if tokenString == "" {
			return unauthorized(c)
		}

		subject, err := auth.Authenticate(c.Context(), tokenString)
		if err != nil {
			return unauthorized(c)
		}

		c.Locals(SubjectKey, subject)
		return c.Next()
	}
}

// BearerToken extracts the raw token from the Authorization header.
func BearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "authentication required",
	})
}
