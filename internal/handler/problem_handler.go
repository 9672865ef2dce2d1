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

// ProblemHandler exposes problem authoring and access endpoints.
type ProblemHandler struct {
	service service.ProblemService
	logger  zerolog.Logger
}

// NewProblemHandler constructs the handler.
func NewProblemHandler(service service.ProblemService, logger zerolog.Logger) *ProblemHandler {
	return &ProblemHandler{
		service: service,
		logger:  logger.With().Str("component", "problem_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *ProblemHandler) Register(router fiber.Router) {
	educator := middleware.AuthOptions{Role: middleware.AuthRoleEducator}
	anyUser := middleware.AuthOptions{Role: middleware.AuthRoleAny, RequireUser: true}

	router.Post("", middleware.WithAuth(h.create, educator))
	router.Get("", middleware.WithAuth(h.list, educator))
	router.Post("/access", middleware.WithAuth(h.access, anyUser))
	router.Get("/:id/view", middleware.WithAuth(h.view, anyUser))
	router.Get("/:id", middleware.WithAuth(h.detail, educator))
}

func (h *ProblemHandler) create(c *fiber.Ctx) error {
	var payload dto.CreateProblemRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Create(c.UserContext(), actorFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "problem created", response)
}

func (h *ProblemHandler) list(c *fiber.Ctx) error {
	problems, err := h.service.ListForEducator(c.UserContext(), actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.OK(c, problems, "problems retrieved", fiber.Map{"total": len(problems)})
}

func (h *ProblemHandler) access(c *fiber.Ctx) error {
	var payload dto.AccessProblemRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Access(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "problem unlocked", response)
}

func (h *ProblemHandler) view(c *fiber.Ctx) error {
	response, err := h.service.GetForStudent(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "problem retrieved", response)
}

func (h *ProblemHandler) detail(c *fiber.Ctx) error {
	response, err := h.service.GetDetail(c.UserContext(), actorFromContext(c), c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "problem detail retrieved", response)
}

func (h *ProblemHandler) handleError(c *fiber.Ctx, err error) error {
	if handled, resp := validationFailure(c, err); handled {
		return resp
	}
	switch {
	case errors.Is(err, service.ErrInvalidID):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrProblemNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAccessCodeExists):
		return utils.SendError(c, fiber.StatusConflict, "access code already in use")
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "forbidden")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("problem operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
