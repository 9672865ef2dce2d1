package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-autograder/internal/dto"
	"github.com/noah-isme/gema-autograder/internal/middleware"
	"github.com/noah-isme/gema-autograder/internal/service"
	"github.com/noah-isme/gema-autograder/internal/utils"
)

// SubmissionHandler exposes code submission endpoints.
type SubmissionHandler struct {
	service service.SubmissionService
	limiter fiber.Handler
	logger  zerolog.Logger
}

// NewSubmissionHandler constructs the handler. limiter guards the submit
// route and may be nil.
func NewSubmissionHandler(service service.SubmissionService, limiter fiber.Handler, logger zerolog.Logger) *SubmissionHandler {
	if limiter == nil {
		limiter = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &SubmissionHandler{
		service: service,
		limiter: limiter,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register wires the handler endpoints into the versioned API group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	student := middleware.AuthOptions{Role: middleware.AuthRoleStudent}
	anyUser := middleware.AuthOptions{Role: middleware.AuthRoleAny, RequireUser: true}

	router.Post("/problems/:id/submissions", h.limiter, middleware.WithAuth(h.submit, student))
	router.Get("/submissions", middleware.WithAuth(h.listMine, student))
	router.Get("/submissions/:id", middleware.WithAuth(h.get, anyUser))
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	var payload dto.SubmitCodeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Submit(c.UserContext(), actorFromContext(c), c.Params("id"), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission evaluated", response)
}

func (h *SubmissionHandler) listMine(c *fiber.Ctx) error {
	submissions, err := h.service.ListForStudent(c.UserContext(), actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.OK(c, submissions, "submissions retrieved", fiber.Map{"total": len(submissions)})
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	response, err := h.service.Get(c.UserContext(), actorFromContext(c), c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "submission retrieved", response)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	if handled, resp := validationFailure(c, err); handled {
		return resp
	}
	switch {
	case errors.Is(err, service.ErrInvalidID):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrProblemNotFound), errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "forbidden")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("submission operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
