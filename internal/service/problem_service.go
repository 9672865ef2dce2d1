package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-autograder/internal/dto"
	"github.com/noah-isme/gema-autograder/internal/models"
	"github.com/noah-isme/gema-autograder/internal/repository"
	"github.com/noah-isme/gema-autograder/pkg/ai"
)

var (
	// ErrProblemNotFound indicates the problem does not exist.
	ErrProblemNotFound = errors.New("problem not found")
	// ErrAccessCodeExists indicates another problem already uses the access code.
	ErrAccessCodeExists = errors.New("access code exists")
	// ErrInvalidID indicates a malformed identifier.
	ErrInvalidID = errors.New("invalid identifier")
	// ErrForbidden indicates the caller may not access the resource.
	ErrForbidden = errors.New("forbidden")
)

// ContentGenerator produces problem statements and materials.
type ContentGenerator interface {
	GenerateQuestionVariations(ctx context.Context, topic string, count int) []string
	GenerateMaterials(ctx context.Context, description string) ai.Materials
}

// ProblemService covers problem authoring and lookup.
type ProblemService interface {
	Create(ctx context.Context, educator Actor, payload dto.CreateProblemRequest) (dto.ProblemResponse, error)
	Access(ctx context.Context, payload dto.AccessProblemRequest) (dto.ProblemResponse, error)
	GetForStudent(ctx context.Context, id string) (dto.ProblemResponse, error)
	ListForEducator(ctx context.Context, educator Actor) ([]dto.ProblemResponse, error)
	GetDetail(ctx context.Context, educator Actor, id string) (dto.ProblemDetailResponse, error)
	InvalidateDetail(ctx context.Context, id uuid.UUID)
}

type problemService struct {
	problems    repository.ProblemRepository
	submissions repository.SubmissionRepository
	generator   ContentGenerator
	validator   *validator.Validate
	cache       *redis.Client
	cacheTTL    time.Duration
	policy      *bluemonday.Policy
	tracer      trace.Tracer
	logger      zerolog.Logger
}

// NewProblemService constructs the authoring service. cache may be nil.
func NewProblemService(problems repository.ProblemRepository, submissions repository.SubmissionRepository, generator ContentGenerator, validate *validator.Validate, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ProblemService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &problemService{
		problems:    problems,
		submissions: submissions,
		generator:   generator,
		validator:   validate,
		cache:       cache,
		cacheTTL:    ttl,
		policy:      bluemonday.UGCPolicy(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-autograder/internal/service"),
		logger:      logger.With().Str("component", "problem_service").Logger(),
	}
}

func (s *problemService) Create(ctx context.Context, educator Actor, payload dto.CreateProblemRequest) (dto.ProblemResponse, error) {
	ctx, span := s.tracer.Start(ctx, "problem.create")
	defer span.End()

	payload.Title = strings.TrimSpace(payload.Title)
	payload.ProblemDescription = strings.TrimSpace(payload.ProblemDescription)
	payload.AccessCode = strings.TrimSpace(payload.AccessCode)
	payload.Topic = strings.TrimSpace(payload.Topic)
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProblemResponse{}, err
	}
	if payload.Topic == "" {
		payload.Topic = models.DefaultTopic
	}

	exists, err := s.problems.ExistsByAccessCode(ctx, payload.AccessCode)
	if err != nil {
		return dto.ProblemResponse{}, fmt.Errorf("check access code: %w", err)
	}
	if exists {
		return dto.ProblemResponse{}, ErrAccessCodeExists
	}

	candidates := s.generator.GenerateQuestionVariations(ctx, payload.ProblemDescription, ai.DefaultVariations)
	best := ai.SelectBestQuestion(payload.ProblemDescription, candidates)
	materials := s.generator.GenerateMaterials(ctx, best)
	span.SetAttributes(attribute.Bool("materials.fallback", materials.Fallback))

	problem := models.ProblemSpec{
		Title:              payload.Title,
		UserPrompt:         payload.ProblemDescription,
		ProblemDescription: best,
		Topic:              payload.Topic,
		Scenario:           s.policy.Sanitize(materials.Scenario),
		TestSuite:          materials.Tests,
		MaterialsFallback:  materials.Fallback,
		Variations:         datatypes.NewJSONSlice(candidates),
		AccessCode:         payload.AccessCode,
		EducatorName:       educator.Name,
		EducatorEmail:      educator.Email,
	}
	if err := s.problems.Create(ctx, &problem); err != nil {
		return dto.ProblemResponse{}, err
	}

	s.logger.Info().
		Str("problem_id", problem.ID.String()).
		Bool("materials_fallback", materials.Fallback).
		Msg("problem created")
	return dto.NewProblemResponse(problem, true), nil
}

func (s *problemService) Access(ctx context.Context, payload dto.AccessProblemRequest) (dto.ProblemResponse, error) {
	payload.AccessCode = strings.TrimSpace(payload.AccessCode)
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProblemResponse{}, err
	}

	problem, err := s.problems.GetByAccessCode(ctx, payload.AccessCode)
	if err != nil {
		return dto.ProblemResponse{}, translateNotFound(err, ErrProblemNotFound)
	}
	return dto.NewProblemResponse(problem, false), nil
}

func (s *problemService) GetForStudent(ctx context.Context, id string) (dto.ProblemResponse, error) {
	problem, err := s.load(ctx, id)
	if err != nil {
		return dto.ProblemResponse{}, err
	}
	return dto.NewProblemResponse(problem, false), nil
}

func (s *problemService) ListForEducator(ctx context.Context, educator Actor) ([]dto.ProblemResponse, error) {
	problems, err := s.problems.ListByEducator(ctx, educator.Name)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.ProblemResponse, 0, len(problems))
	for _, problem := range problems {
		responses = append(responses, dto.NewProblemResponse(problem, true))
	}
	return responses, nil
}

func (s *problemService) GetDetail(ctx context.Context, educator Actor, id string) (dto.ProblemDetailResponse, error) {
	problem, err := s.load(ctx, id)
	if err != nil {
		return dto.ProblemDetailResponse{}, err
	}
	if problem.EducatorName != educator.Name && !strings.EqualFold(educator.Role, RoleAdmin) {
		return dto.ProblemDetailResponse{}, ErrForbidden
	}

	cacheKey := detailCacheKey(problem.ID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.ProblemDetailResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read problem detail cache")
		}
	}

	submissions, err := s.submissions.ListByProblem(ctx, problem.ID)
	if err != nil {
		return dto.ProblemDetailResponse{}, err
	}

	response := dto.ProblemDetailResponse{
		Problem:     dto.NewProblemResponse(problem, true),
		Submissions: make([]dto.SubmissionResponse, 0, len(submissions)),
	}
	for _, submission := range submissions {
		response.Submissions = append(response.Submissions, dto.NewSubmissionResponse(submission, true))
		response.Stats.Total++
		if submission.Evaluation.Pass {
			response.Stats.Passed++
		}
	}
	response.Stats.Failed = response.Stats.Total - response.Stats.Passed

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store problem detail cache")
			}
		}
	}

	return response, nil
}

func (s *problemService) InvalidateDetail(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, detailCacheKey(id)).Err(); err != nil {
		s.logger.Warn().Err(err).Str("problem_id", id.String()).Msg("failed to invalidate problem detail cache")
	}
}

func (s *problemService) load(ctx context.Context, id string) (models.ProblemSpec, error) {
	problemID, err := parseID(id)
	if err != nil {
		return models.ProblemSpec{}, err
	}
	problem, err := s.problems.GetByID(ctx, problemID)
	if err != nil {
		return models.ProblemSpec{}, translateNotFound(err, ErrProblemNotFound)
	}
	return problem, nil
}

func detailCacheKey(id uuid.UUID) string {
	return "problem:detail:" + id.String()
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, ErrInvalidID
	}
	return id, nil
}

func translateNotFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
