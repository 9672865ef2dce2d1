package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-autograder/internal/middleware"
	"github.com/noah-isme/gema-autograder/internal/service"
	"github.com/noah-isme/gema-autograder/internal/utils"
)

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		Name:  localString(c, middleware.LocalUserName),
		Email: localString(c, middleware.LocalUserEmail),
		Role:  localString(c, middleware.LocalUserRole),
	}
}

func localString(c *fiber.Ctx, key string) string {
	if value, ok := c.Locals(key).(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := middleware.RequestLogger(base, c)
	return &logger
}

// validationFailure answers 400 with one message per failing field.
func validationFailure(c *fiber.Ctx, err error) (bool, error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return false, nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[strings.ToLower(fieldErr.Field())] = fieldErr.Tag()
	}
	return true, utils.Fail(c, fiber.StatusBadRequest, "validation failed", details)
}
