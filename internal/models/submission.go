package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-autograder/pkg/testreport"
)

// Submission statuses.
const (
	SubmissionStatusCompleted = "completed"
	SubmissionStatusFailed    = "failed"
	SubmissionStatusTimeout   = "timeout"
)

// Submission is one student's attempt at a ProblemSpec together with its
// evaluation. The AI fields of the evaluation stay nil until enrichment runs.
type Submission struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ProblemID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"problem_id"`
	StudentName  string           `gorm:"size:255;not null" json:"student_name"`
	StudentEmail string           `gorm:"size:255;index" json:"student_email"`
	Source       string           `gorm:"type:text" json:"source"`
	Status       string           `gorm:"size:32;not null" json:"status"`
	RunError     string           `gorm:"type:text" json:"run_error"`
	RawOutput    string           `gorm:"type:text" json:"raw_output"`
	DurationMs   int64            `gorm:"default:0" json:"duration_ms"`
	Evaluation   EvaluationResult `gorm:"embedded;embeddedPrefix:evaluation_" json:"evaluation"`
	EnrichedAt   *time.Time       `json:"enriched_at"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// BeforeCreate assigns the identifier.
func (s *Submission) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Enriched reports whether AI feedback has been stored.
func (s Submission) Enriched() bool {
	return s.EnrichedAt != nil
}

// ComplexityEstimate is the persisted big-O estimate for a submission.
type ComplexityEstimate struct {
	Time      string `json:"time"`
	Space     string `json:"space"`
	Rationale string `json:"rationale"`
	Fallback  bool   `json:"fallback,omitempty"`
}

// EvaluationResult is the verdict for a submission. Build it with
// NewEvaluationResult so Pass and Score stay consistent with the counts.
type EvaluationResult struct {
	Score            float64              `gorm:"not null;default:0" json:"score"`
	Tests            []testreport.Outcome `gorm:"serializer:json;type:text" json:"tests"`
	TotalTests       int                  `gorm:"not null;default:0" json:"total_tests"`
	PassedTests      int                  `gorm:"not null;default:0" json:"passed_tests"`
	FailedTestsCount int                  `gorm:"not null;default:0" json:"failed_tests_count"`
	Pass             bool                 `gorm:"not null;default:false" json:"pass"`
	AIFeedback       *string              `gorm:"column:ai_feedback;type:text" json:"ai_feedback"`
	Complexity       *ComplexityEstimate  `gorm:"column:complexity;serializer:json;type:text" json:"complexity"`
}

// NewEvaluationResult converts a parsed report into the skeleton result
// stored at submit time.
func NewEvaluationResult(report testreport.Report) EvaluationResult {
	result := EvaluationResult{
		Score:            report.Score,
		Tests:            report.Outcomes,
		TotalTests:       report.TotalTests,
		PassedTests:      report.PassedTests,
		FailedTestsCount: report.FailedTestsCount,
	}
	if result.TotalTests <= 0 {
		result.TotalTests = 0
		result.Score = 0
	}
	result.Pass = result.FailedTestsCount == 0 && result.TotalTests > 0
	return result
}
