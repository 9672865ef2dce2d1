package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/gema-autograder/internal/models"
)

// CreateProblemRequest is the educator payload for authoring a problem.
type CreateProblemRequest struct {
	Title              string `json:"title" form:"title" validate:"required,max=255"`
	ProblemDescription string `json:"problem_description" form:"problem_description" validate:"required"`
	Topic              string `json:"topic" form:"topic" validate:"omitempty,max=128"`
	AccessCode         string `json:"access_code" form:"access_code" validate:"required,max=64"`
}

// AccessProblemRequest opens a problem by its access code.
type AccessProblemRequest struct {
	AccessCode string `json:"access_code" form:"access_code" validate:"required,max=64"`
}

// ProblemResponse describes a problem. Students never receive the test
// suite or the access code.
type ProblemResponse struct {
	ID                 uuid.UUID `json:"id"`
	Title              string    `json:"title"`
	UserPrompt         string    `json:"user_prompt,omitempty"`
	ProblemDescription string    `json:"problem_description"`
	Topic              string    `json:"topic"`
	Scenario           string    `json:"scenario"`
	TestSuite          string    `json:"test_suite,omitempty"`
	AccessCode         string    `json:"access_code,omitempty"`
	Variations         []string  `json:"variations,omitempty"`
	MaterialsFallback  bool      `json:"materials_fallback"`
	EducatorName       string    `json:"educator_name"`
	CreatedAt          time.Time `json:"created_at"`
}

// ProblemStats aggregates submission outcomes for a problem.
type ProblemStats struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// ProblemDetailResponse is the educator view of a problem.
type ProblemDetailResponse struct {
	Problem     ProblemResponse      `json:"problem"`
	Submissions []SubmissionResponse `json:"submissions"`
	Stats       ProblemStats         `json:"stats"`
	CacheHit    bool                 `json:"cache_hit"`
}

// NewProblemResponse converts a model into a DTO.
func NewProblemResponse(problem models.ProblemSpec, educatorView bool) ProblemResponse {
	response := ProblemResponse{
		ID:                 problem.ID,
		Title:              problem.Title,
		ProblemDescription: problem.ProblemDescription,
		Topic:              problem.Topic,
		Scenario:           problem.Scenario,
		MaterialsFallback:  problem.MaterialsFallback,
		EducatorName:       problem.EducatorName,
		CreatedAt:          problem.CreatedAt,
	}
	if educatorView {
		response.UserPrompt = problem.UserPrompt
		response.TestSuite = problem.TestSuite
		response.AccessCode = problem.AccessCode
		response.Variations = problem.Variations
	}
	return response
}
