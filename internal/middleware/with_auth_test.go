package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-autograder/internal/middleware"
)

func appWithSession(name, role string, opts middleware.AuthOptions) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if name != "" {
			c.Locals(middleware.LocalUserName, name)
		}
		if role != "" {
			c.Locals(middleware.LocalUserRole, role)
		}
		return c.Next()
	})
	app.Get("/", middleware.WithAuth(func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	}, opts))
	return app
}

func TestWithAuthStudentRole(t *testing.T) {
	resp := perform(t, appWithSession("ana", "Student", middleware.AuthOptions{Role: middleware.AuthRoleStudent}))
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestWithAuthStudentRoleDenied(t *testing.T) {
	resp := perform(t, appWithSession("ana", "guest", middleware.AuthOptions{Role: middleware.AuthRoleStudent}))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestWithAuthEducatorAllowsTeacherAndAdmin(t *testing.T) {
	for _, role := range []string{"educator", "teacher", "admin"} {
		resp := perform(t, appWithSession("rivera", role, middleware.AuthOptions{Role: middleware.AuthRoleEducator}))
		require.Equal(t, fiber.StatusNoContent, resp.StatusCode, role)
	}

	resp := perform(t, appWithSession("ana", "student", middleware.AuthOptions{Role: middleware.AuthRoleEducator}))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestWithAuthAnyRequiresUserWhenAsked(t *testing.T) {
	resp := perform(t, appWithSession("", "", middleware.AuthOptions{Role: middleware.AuthRoleAny, RequireUser: true}))
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = perform(t, appWithSession("", "", middleware.AuthOptions{Role: middleware.AuthRoleStudent}))
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWithAuthAnyAllowsAnonymousByDefault(t *testing.T) {
	resp := perform(t, appWithSession("", "", middleware.AuthOptions{Role: middleware.AuthRoleAny}))
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func perform(t *testing.T, app *fiber.App) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}
