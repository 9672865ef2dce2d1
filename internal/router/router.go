package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-autograder/internal/config"
	"github.com/noah-isme/gema-autograder/internal/handler"
	"github.com/noah-isme/gema-autograder/internal/middleware"
	"github.com/noah-isme/gema-autograder/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ProblemHandler    *handler.ProblemHandler
	SubmissionHandler *handler.SubmissionHandler
	FixLogHandler     *handler.FixLogHandler
	JWTMiddleware     fiber.Handler
	AIEnabled         bool
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	v1 := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	v1.Get("/health", handler.HealthCheck(cfg, deps.AIEnabled))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	v2 := app.Group("/api/v2", jwtMiddleware)

	if deps.ProblemHandler != nil {
		deps.ProblemHandler.Register(v2.Group("/problems"))
	}

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(v2)
	}

	if deps.FixLogHandler != nil {
		deps.FixLogHandler.Register(v2.Group("/fix-logs", middleware.RequireRole(middleware.AuthRoleEducator)))
	}
}
