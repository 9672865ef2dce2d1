package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-autograder/internal/config"
	"github.com/noah-isme/gema-autograder/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	Service       string    `json:"service"`
	Environment   string    `json:"environment"`
	RunnerBackend string    `json:"runner_backend"`
	AIEnabled     bool      `json:"ai_enabled"`
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config, aiEnabled bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, "service healthy", HealthResponse{
			Status:        "ok",
			Timestamp:     time.Now().UTC(),
			Service:       cfg.AppName,
			Environment:   cfg.AppEnv,
			RunnerBackend: cfg.RunnerBackend,
			AIEnabled:     aiEnabled,
		})
	}
}
