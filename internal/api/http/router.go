package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vibeapp/server/internal/api/http/handler"
)

// NewApp assembles the fiber application. The rate limiter runs before
// every route; the authenticate middleware guards the protected ones.
func NewApp(
	authHandler *handler.Auth,
	userHandler *handler.User,
	rateLimit fiber.Handler,
	authenticate fiber.Handler,
) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(rateLimit)

	app.Post("/api/signup", userHandler.Signup)
	app.Post("/api/login", authHandler.Login)
	app.Post("/api/reissue", authHandler.Reissue)

	app.Post("/api/logout", authenticate, authHandler.Logout)
	app.Get("/api/user/me", authenticate, userHandler.Me)
	app.Post("/api/user/password", authenticate, userHandler.ChangePassword)

	return app
}
