package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func roleApp(role string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(LocalUserRole, role)
		return c.Next()
	})
	app.Use(RequireRole(AuthRoleEducator))
	app.Get("/fix-logs", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRequireRoleAdmitsEducatorAliases(t *testing.T) {
	for _, role := range []string{"educator", "admin", "Teacher"} {
		resp, err := roleApp(role).Test(httptest.NewRequest(http.MethodGet, "/fix-logs", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, role)
	}
}

func TestRequireRoleRejectsStudents(t *testing.T) {
	resp, err := roleApp("student").Test(httptest.NewRequest(http.MethodGet, "/fix-logs", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
