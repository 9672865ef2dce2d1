package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/gema-autograder/internal/models"
	"github.com/noah-isme/gema-autograder/pkg/testreport"
)

// SubmitCodeRequest carries a student's source.
type SubmitCodeRequest struct {
	Source string `json:"student_code" form:"student_code" validate:"required"`
}

// EvaluationResponse mirrors models.EvaluationResult.
type EvaluationResponse struct {
	Score            float64                    `json:"score"`
	Tests            []testreport.Outcome       `json:"tests"`
	TotalTests       int                        `json:"total_tests"`
	PassedTests      int                        `json:"passed_tests"`
	FailedTestsCount int                        `json:"failed_tests_count"`
	Pass             bool                       `json:"pass"`
	AIFeedback       *string                    `json:"ai_feedback"`
	Complexity       *models.ComplexityEstimate `json:"complexity"`
}

// SubmissionResponse describes a submission to API consumers.
type SubmissionResponse struct {
	ID           uuid.UUID          `json:"id"`
	ProblemID    uuid.UUID          `json:"problem_id"`
	StudentName  string             `json:"student_name"`
	StudentEmail string             `json:"student_email"`
	Source       string             `json:"student_code,omitempty"`
	Status       string             `json:"status"`
	RunError     string             `json:"run_error,omitempty"`
	DurationMs   int64              `json:"duration_ms"`
	Evaluation   EvaluationResponse `json:"evaluation"`
	Enriched     bool               `json:"enriched"`
	CreatedAt    time.Time          `json:"created_at"`
}

// NewSubmissionResponse converts a model into a DTO.
func NewSubmissionResponse(submission models.Submission, includeSource bool) SubmissionResponse {
	tests := submission.Evaluation.Tests
	if tests == nil {
		tests = []testreport.Outcome{}
	}

	response := SubmissionResponse{
		ID:           submission.ID,
		ProblemID:    submission.ProblemID,
		StudentName:  submission.StudentName,
		StudentEmail: submission.StudentEmail,
		Status:       submission.Status,
		RunError:     submission.RunError,
		DurationMs:   submission.DurationMs,
		Evaluation: EvaluationResponse{
			Score:            submission.Evaluation.Score,
			Tests:            tests,
			TotalTests:       submission.Evaluation.TotalTests,
			PassedTests:      submission.Evaluation.PassedTests,
			FailedTestsCount: submission.Evaluation.FailedTestsCount,
			Pass:             submission.Evaluation.Pass,
			AIFeedback:       submission.Evaluation.AIFeedback,
			Complexity:       submission.Evaluation.Complexity,
		},
		Enriched:  submission.Enriched(),
		CreatedAt: submission.CreatedAt,
	}
	if includeSource {
		response.Source = submission.Source
	}
	return response
}
