package utils_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-autograder/internal/utils"
)

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Meta    map[string]int    `json:"meta"`
	Details map[string]string `json:"details"`
}

func respond(t *testing.T, handler fiber.Handler) (int, envelope) {
	t.Helper()
	app := fiber.New()
	app.Get("/", handler)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestSendSuccessWithStatusDefaultsMessage(t *testing.T) {
	status, body := respond(t, func(c *fiber.Ctx) error {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "", fiber.Map{"score": 66.67})
	})

	require.Equal(t, fiber.StatusCreated, status)
	require.True(t, body.Success)
	require.Equal(t, "success", body.Message)
	require.JSONEq(t, `{"score":66.67}`, string(body.Data))
	require.Nil(t, body.Meta)
}

func TestOKCarriesMeta(t *testing.T) {
	status, body := respond(t, func(c *fiber.Ctx) error {
		return utils.OK(c, []string{"SUM-01"}, "problems retrieved", fiber.Map{"total": 1})
	})

	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "problems retrieved", body.Message)
	require.Equal(t, 1, body.Meta["total"])
}

func TestFailOmitsData(t *testing.T) {
	status, body := respond(t, func(c *fiber.Ctx) error {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", map[string]string{"access_code": "required"})
	})

	require.Equal(t, fiber.StatusBadRequest, status)
	require.False(t, body.Success)
	require.Equal(t, "required", body.Details["access_code"])
	require.Empty(t, body.Data)
}

func TestSendErrorDefaultsMessage(t *testing.T) {
	status, body := respond(t, func(c *fiber.Ctx) error {
		return utils.SendError(c, fiber.StatusNotFound, "")
	})

	require.Equal(t, fiber.StatusNotFound, status)
	require.Equal(t, "error", body.Message)
	require.Nil(t, body.Details)
}
