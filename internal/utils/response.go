package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope every endpoint answers with. Data is omitted
// on failures and Details only carries per-field validation problems.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Meta    interface{} `json:"meta,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// SendSuccess answers 200 with data.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return respond(c, fiber.StatusOK, APIResponse{Success: true, Message: message, Data: data})
}

// SendSuccessWithStatus answers with a custom success status such as 201.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	return respond(c, status, APIResponse{Success: true, Message: message, Data: data})
}

// OK answers 200 with data plus summary meta such as list totals.
func OK(c *fiber.Ctx, data interface{}, message string, meta interface{}) error {
	return respond(c, fiber.StatusOK, APIResponse{Success: true, Message: message, Data: data, Meta: meta})
}

// SendError answers with a bare failure message.
func SendError(c *fiber.Ctx, status int, message string) error {
	return respond(c, status, APIResponse{Message: message})
}

// Fail answers with a failure message and optional details.
func Fail(c *fiber.Ctx, status int, message string, details interface{}) error {
	return respond(c, status, APIResponse{Message: message, Details: details})
}

func respond(c *fiber.Ctx, status int, body APIResponse) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	if body.Message == "" {
		body.Message = "error"
		if body.Success {
			body.Message = "success"
		}
	}
	return c.Status(status).JSON(body)
}
