package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-autograder/internal/utils"
)

// Auth role constants used by WithAuth helper.
const (
	AuthRoleAny      = "any"
	AuthRoleEducator = "educator"
	AuthRoleStudent  = "student"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth wraps a handler with authentication and role guards. Educator
// routes also admit admins and teachers.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	requireUser := opts.RequireUser || role != AuthRoleAny

	return func(c *fiber.Ctx) error {
		user := c.Locals(LocalUserName)
		if user == nil {
			if requireUser {
				return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
			}
			return handler(c)
		}

		if role == AuthRoleAny {
			return handler(c)
		}

		current := normalizeRoleValue(c.Locals(LocalUserRole))
		allowed := current == role
		if role == AuthRoleEducator {
			allowed = isEducatorRole(current)
		}
		if !allowed {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
		}

		return handler(c)
	}
}

func isEducatorRole(role string) bool {
	switch role {
	case AuthRoleEducator, "admin", "teacher":
		return true
	}
	return false
}
