package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-autograder/internal/models"
	"github.com/noah-isme/gema-autograder/internal/repository"
	"github.com/noah-isme/gema-autograder/pkg/ai"
	"github.com/noah-isme/gema-autograder/pkg/testreport"
)

var enrichmentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gema",
	Subsystem: "enrichment",
	Name:      "tasks_total",
	Help:      "Enrichment tasks by outcome",
}, []string{"outcome"})

// EnrichmentTask carries what the AI advisor needs for one submission.
type EnrichmentTask struct {
	SubmissionID uuid.UUID            `json:"submission_id"`
	ProblemID    uuid.UUID            `json:"problem_id"`
	Problem      string               `json:"problem"`
	Source       string               `json:"source"`
	Tests        []testreport.Outcome `json:"tests"`
	Passed       bool                 `json:"passed"`
	Score        float64              `json:"score"`
	TotalTests   int                  `json:"total_tests"`
}

// EnrichmentEnqueuer accepts enrichment tasks without blocking the caller.
type EnrichmentEnqueuer interface {
	Enqueue(task EnrichmentTask)
}

// Advisor produces tutoring feedback and complexity estimates.
type Advisor interface {
	GenerateFeedback(ctx context.Context, in ai.FeedbackInput) ai.Feedback
	EstimateComplexity(ctx context.Context, problem, code string) ai.ComplexityEstimate
}

// EnrichmentService fills in the AI columns of an evaluated submission.
type EnrichmentService interface {
	Enrich(ctx context.Context, task EnrichmentTask) error
}

type enrichmentService struct {
	submissions repository.SubmissionRepository
	advisor     Advisor
	invalidator DetailInvalidator
	policy      *bluemonday.Policy
	tracer      trace.Tracer
	logger      zerolog.Logger
}

// NewEnrichmentService constructs the enrichment worker body. invalidator may
// be nil.
func NewEnrichmentService(submissions repository.SubmissionRepository, advisor Advisor, invalidator DetailInvalidator, logger zerolog.Logger) EnrichmentService {
	return &enrichmentService{
		submissions: submissions,
		advisor:     advisor,
		invalidator: invalidator,
		policy:      bluemonday.UGCPolicy(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-autograder/internal/service"),
		logger:      logger.With().Str("component", "enrichment_service").Logger(),
	}
}

func (s *enrichmentService) Enrich(ctx context.Context, task EnrichmentTask) error {
	ctx, span := s.tracer.Start(ctx, "enrichment.enrich")
	defer span.End()
	span.SetAttributes(attribute.String("submission.id", task.SubmissionID.String()))

	feedback := s.advisor.GenerateFeedback(ctx, ai.FeedbackInput{
		Problem:    task.Problem,
		Code:       task.Source,
		Tests:      task.Tests,
		Passed:     task.Passed,
		Score:      task.Score,
		TotalTests: task.TotalTests,
	})
	complexity := s.advisor.EstimateComplexity(ctx, task.Problem, task.Source)

	err := s.submissions.SaveEnrichment(ctx, task.SubmissionID, s.policy.Sanitize(feedback.Text), models.ComplexityEstimate{
		Time:      complexity.Time,
		Space:     complexity.Space,
		Rationale: complexity.Rationale,
		Fallback:  complexity.Fallback,
	})
	if err != nil {
		enrichmentOutcomes.WithLabelValues("store_failed").Inc()
		return fmt.Errorf("save enrichment: %w", err)
	}
	if s.invalidator != nil && task.ProblemID != uuid.Nil {
		s.invalidator.InvalidateDetail(ctx, task.ProblemID)
	}

	outcome := "enriched"
	if feedback.Fallback || complexity.Fallback {
		outcome = "fallback"
	}
	enrichmentOutcomes.WithLabelValues(outcome).Inc()

	s.logger.Info().
		Str("submission_id", task.SubmissionID.String()).
		Bool("feedback_fallback", feedback.Fallback).
		Bool("complexity_fallback", complexity.Fallback).
		Msg("submission enriched")
	return nil
}
