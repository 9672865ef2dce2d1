package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-autograder/internal/dto"
	"github.com/noah-isme/gema-autograder/internal/models"
	"github.com/noah-isme/gema-autograder/internal/repository"
	"github.com/noah-isme/gema-autograder/pkg/runner"
	"github.com/noah-isme/gema-autograder/pkg/sanitizer"
	"github.com/noah-isme/gema-autograder/pkg/testreport"
)

// ErrSubmissionNotFound indicates a submission could not be found.
var ErrSubmissionNotFound = errors.New("submission not found")

var submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gema",
	Subsystem: "evaluation",
	Name:      "submissions_total",
	Help:      "Number of evaluated submissions by status and verdict",
}, []string{"status", "pass"})

// DetailInvalidator drops cached problem detail views.
type DetailInvalidator interface {
	InvalidateDetail(ctx context.Context, id uuid.UUID)
}

// SubmissionConfig tunes the evaluation pipeline.
type SubmissionConfig struct {
	ExecutionTimeout time.Duration
}

// SubmissionService evaluates student code.
type SubmissionService interface {
	Submit(ctx context.Context, student Actor, problemID string, payload dto.SubmitCodeRequest) (dto.SubmissionResponse, error)
	Get(ctx context.Context, viewer Actor, id string) (dto.SubmissionResponse, error)
	ListForStudent(ctx context.Context, student Actor) ([]dto.SubmissionResponse, error)
}

type submissionService struct {
	problems    repository.ProblemRepository
	submissions repository.SubmissionRepository
	runner      runner.Runner
	sanitizer   *sanitizer.Sanitizer
	enrichment  EnrichmentEnqueuer
	invalidator DetailInvalidator
	validator   *validator.Validate
	config      SubmissionConfig
	tracer      trace.Tracer
	logger      zerolog.Logger
}

// NewSubmissionService constructs the evaluation service. enrichment and
// invalidator may be nil.
func NewSubmissionService(problems repository.ProblemRepository, submissions repository.SubmissionRepository, exec runner.Runner, enrichment EnrichmentEnqueuer, invalidator DetailInvalidator, validate *validator.Validate, logger zerolog.Logger, cfg SubmissionConfig) SubmissionService {
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = runner.DefaultTimeout
	}
	return &submissionService{
		problems:    problems,
		submissions: submissions,
		runner:      exec,
		sanitizer:   sanitizer.New(sanitizer.DefaultPackage),
		enrichment:  enrichment,
		invalidator: invalidator,
		validator:   validate,
		config:      cfg,
		tracer:      otel.Tracer("github.com/noah-isme/gema-autograder/internal/service"),
		logger:      logger.With().Str("component", "submission_service").Logger(),
	}
}

func (s *submissionService) Submit(ctx context.Context, student Actor, problemID string, payload dto.SubmitCodeRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit")
	defer span.End()

	id, err := parseID(problemID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	problem, err := s.problems.GetByID(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, translateNotFound(err, ErrProblemNotFound)
	}

	result, runErr := s.runner.RunTests(ctx, runner.TestRequest{
		Source:    s.sanitizer.Sanitize(payload.Source),
		TestSuite: problem.TestSuite,
		Timeout:   s.config.ExecutionTimeout,
	})
	if runErr != nil {
		s.logger.Error().Err(runErr).Str("problem_id", id.String()).Msg("runner failed to execute submission")
		result.Error = runErr.Error()
	}

	report := testreport.Parse(result.Output)
	submission := models.Submission{
		ProblemID:    problem.ID,
		StudentName:  student.Name,
		StudentEmail: student.Email,
		Source:       payload.Source,
		Status:       submissionStatus(result, runErr),
		RunError:     strings.TrimSpace(result.Error),
		RawOutput:    result.Output,
		DurationMs:   result.Duration.Milliseconds(),
		Evaluation:   models.NewEvaluationResult(report),
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	span.SetAttributes(
		attribute.String("submission.id", submission.ID.String()),
		attribute.String("submission.status", submission.Status),
		attribute.Float64("submission.score", submission.Evaluation.Score),
	)
	submissionsTotal.WithLabelValues(submission.Status, boolLabel(submission.Evaluation.Pass)).Inc()

	if s.invalidator != nil {
		s.invalidator.InvalidateDetail(ctx, problem.ID)
	}

	if s.enrichment != nil {
		s.enrichment.Enqueue(EnrichmentTask{
			SubmissionID: submission.ID,
			ProblemID:    problem.ID,
			Problem:      problem.ProblemDescription,
			Source:       payload.Source,
			Tests:        submission.Evaluation.Tests,
			Passed:       submission.Evaluation.Pass,
			Score:        submission.Evaluation.Score,
			TotalTests:   submission.Evaluation.TotalTests,
		})
	}

	s.logger.Info().
		Str("submission_id", submission.ID.String()).
		Str("status", submission.Status).
		Float64("score", submission.Evaluation.Score).
		Msg("submission evaluated")

	return dto.NewSubmissionResponse(submission, true), nil
}

func (s *submissionService) Get(ctx context.Context, viewer Actor, id string) (dto.SubmissionResponse, error) {
	submissionID, err := parseID(id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, translateNotFound(err, ErrSubmissionNotFound)
	}

	if !viewer.IsEducator() && submission.StudentName != viewer.Name {
		return dto.SubmissionResponse{}, ErrForbidden
	}
	return dto.NewSubmissionResponse(submission, true), nil
}

func (s *submissionService) ListForStudent(ctx context.Context, student Actor) ([]dto.SubmissionResponse, error) {
	submissions, err := s.submissions.ListByStudent(ctx, student.Name)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, dto.NewSubmissionResponse(submission, true))
	}
	return responses, nil
}

func submissionStatus(result runner.Result, runErr error) string {
	switch {
	case result.TimedOut:
		return models.SubmissionStatusTimeout
	case runErr != nil, result.Failed():
		return models.SubmissionStatusFailed
	default:
		return models.SubmissionStatusCompleted
	}
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
