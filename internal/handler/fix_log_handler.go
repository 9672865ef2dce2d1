package handler

import (
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-autograder/internal/dto"
	"github.com/noah-isme/gema-autograder/internal/service"
	"github.com/noah-isme/gema-autograder/internal/utils"
)

const maxMonitorUploadBytes = 1 << 20

// FixLogHandler exposes the script monitoring and fix verification flow.
type FixLogHandler struct {
	service service.FixLogService
	logger  zerolog.Logger
}

// NewFixLogHandler constructs the handler.
func NewFixLogHandler(service service.FixLogService, logger zerolog.Logger) *FixLogHandler {
	return &FixLogHandler{
		service: service,
		logger:  logger.With().Str("component", "fix_log_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *FixLogHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("/monitor", h.monitor)
	router.Put("/:id/code", h.updateCode)
	router.Post("/:id/check", h.check)
	router.Post("/:id/confirm", h.confirm)
	router.Delete("/:id", h.resolve)
}

func (h *FixLogHandler) list(c *fiber.Ctx) error {
	logs, err := h.service.List(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.OK(c, logs, "fix logs retrieved", fiber.Map{"total": len(logs)})
}

func (h *FixLogHandler) monitor(c *fiber.Ctx) error {
	content, err := scriptContent(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.Monitor(c.UserContext(), content)
	if err != nil {
		return h.handleError(c, err)
	}

	status := fiber.StatusOK
	if result.Status == dto.MonitorStatusErrorLogged {
		status = fiber.StatusCreated
	}
	return utils.SendSuccessWithStatus(c, status, result.Message, result)
}

func (h *FixLogHandler) updateCode(c *fiber.Ctx) error {
	var payload dto.UpdateFixCodeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.UpdateCode(c.UserContext(), c.Params("id"), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "fix recorded", response)
}

func (h *FixLogHandler) check(c *fiber.Ctx) error {
	result, err := h.service.CheckFix(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, result.Message, result)
}

func (h *FixLogHandler) confirm(c *fiber.Ctx) error {
	var payload dto.ConfirmDeleteRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.ConfirmDelete(c.UserContext(), c.Params("id"), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, result.Message, result)
}

func (h *FixLogHandler) resolve(c *fiber.Ctx) error {
	if err := h.service.Resolve(c.UserContext(), c.Params("id")); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "fix log deleted", nil)
}

func (h *FixLogHandler) handleError(c *fiber.Ctx, err error) error {
	if handled, resp := validationFailure(c, err); handled {
		return resp
	}
	switch {
	case errors.Is(err, service.ErrInvalidID),
		errors.Is(err, service.ErrInvalidConfirmation),
		errors.Is(err, service.ErrUnsupportedScript):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrFixLogNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrFixLogNotConfirmable):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("fix log operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

// scriptContent reads the script from a multipart "file" field, falling back
// to a JSON or form "content" field.
func scriptContent(c *fiber.Ctx) ([]byte, error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if header, err := c.FormFile("file"); err == nil {
			if header.Size > maxMonitorUploadBytes {
				return nil, errors.New("file too large")
			}
			file, err := header.Open()
			if err != nil {
				return nil, errors.New("unable to read file")
			}
			defer file.Close()
			return io.ReadAll(io.LimitReader(file, maxMonitorUploadBytes))
		}
	}

	var payload dto.MonitorScriptRequest
	if err := c.BodyParser(&payload); err != nil || strings.TrimSpace(payload.Content) == "" {
		return nil, errors.New("file or content is required")
	}
	return []byte(payload.Content), nil
}
