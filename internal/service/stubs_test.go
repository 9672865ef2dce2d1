package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-autograder/internal/models"
	"github.com/noah-isme/gema-autograder/pkg/ai"
	"github.com/noah-isme/gema-autograder/pkg/runner"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type problemRepoStub struct {
	problems map[uuid.UUID]models.ProblemSpec
	err      error
}

func newProblemRepoStub(problems ...models.ProblemSpec) *problemRepoStub {
	stub := &problemRepoStub{problems: map[uuid.UUID]models.ProblemSpec{}}
	for _, problem := range problems {
		stub.problems[problem.ID] = problem
	}
	return stub
}

func (s *problemRepoStub) Create(ctx context.Context, problem *models.ProblemSpec) error {
	if s.err != nil {
		return s.err
	}
	if problem.ID == uuid.Nil {
		problem.ID = uuid.New()
	}
	s.problems[problem.ID] = *problem
	return nil
}

func (s *problemRepoStub) GetByID(ctx context.Context, id uuid.UUID) (models.ProblemSpec, error) {
	problem, ok := s.problems[id]
	if !ok {
		return models.ProblemSpec{}, gorm.ErrRecordNotFound
	}
	return problem, nil
}

func (s *problemRepoStub) GetByAccessCode(ctx context.Context, code string) (models.ProblemSpec, error) {
	for _, problem := range s.problems {
		if problem.AccessCode == code {
			return problem, nil
		}
	}
	return models.ProblemSpec{}, gorm.ErrRecordNotFound
}

func (s *problemRepoStub) ExistsByAccessCode(ctx context.Context, code string) (bool, error) {
	_, err := s.GetByAccessCode(ctx, code)
	return err == nil, nil
}

func (s *problemRepoStub) ListByEducator(ctx context.Context, educatorName string) ([]models.ProblemSpec, error) {
	var result []models.ProblemSpec
	for _, problem := range s.problems {
		if problem.EducatorName == educatorName {
			result = append(result, problem)
		}
	}
	return result, nil
}

type enrichmentCall struct {
	id         uuid.UUID
	feedback   string
	complexity models.ComplexityEstimate
}

type submissionRepoStub struct {
	mu          sync.Mutex
	submissions []models.Submission
	enrichments []enrichmentCall
	listCalls   int
	saveErr     error
}

func (s *submissionRepoStub) Create(ctx context.Context, submission *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if submission.ID == uuid.Nil {
		submission.ID = uuid.New()
	}
	s.submissions = append(s.submissions, *submission)
	return nil
}

func (s *submissionRepoStub) GetByID(ctx context.Context, id uuid.UUID) (models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, submission := range s.submissions {
		if submission.ID == id {
			return submission, nil
		}
	}
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (s *submissionRepoStub) ListByStudent(ctx context.Context, studentName string) ([]models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Submission
	for _, submission := range s.submissions {
		if submission.StudentName == studentName {
			result = append(result, submission)
		}
	}
	return result, nil
}

func (s *submissionRepoStub) ListByProblem(ctx context.Context, problemID uuid.UUID) ([]models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	var result []models.Submission
	for _, submission := range s.submissions {
		if submission.ProblemID == problemID {
			result = append(result, submission)
		}
	}
	return result, nil
}

func (s *submissionRepoStub) SaveEnrichment(ctx context.Context, id uuid.UUID, feedback string, complexity models.ComplexityEstimate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.enrichments = append(s.enrichments, enrichmentCall{id: id, feedback: feedback, complexity: complexity})
	return nil
}

func (s *submissionRepoStub) enriched() []enrichmentCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]enrichmentCall(nil), s.enrichments...)
}

type runnerStub struct {
	result   runner.Result
	err      error
	script   func(path string) runner.Result
	requests []runner.TestRequest
	scripts  []string
}

func (s *runnerStub) RunTests(ctx context.Context, req runner.TestRequest) (runner.Result, error) {
	s.requests = append(s.requests, req)
	return s.result, s.err
}

func (s *runnerStub) RunScript(ctx context.Context, req runner.ScriptRequest) (runner.Result, error) {
	s.scripts = append(s.scripts, req.Path)
	if s.err != nil {
		return runner.Result{}, s.err
	}
	if s.script != nil {
		return s.script(req.Path), nil
	}
	return s.result, nil
}

type contentStub struct {
	variations []string
	materials  ai.Materials
	described  string
	calls      int
}

func (s *contentStub) GenerateQuestionVariations(ctx context.Context, topic string, count int) []string {
	s.calls++
	return s.variations
}

func (s *contentStub) GenerateMaterials(ctx context.Context, description string) ai.Materials {
	s.described = description
	return s.materials
}

type advisorStub struct {
	feedback   ai.Feedback
	complexity ai.ComplexityEstimate
	panicWith  any
	inputs     []ai.FeedbackInput
	mu         sync.Mutex
}

func (s *advisorStub) GenerateFeedback(ctx context.Context, in ai.FeedbackInput) ai.Feedback {
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	s.mu.Lock()
	s.inputs = append(s.inputs, in)
	s.mu.Unlock()
	return s.feedback
}

func (s *advisorStub) EstimateComplexity(ctx context.Context, problem, code string) ai.ComplexityEstimate {
	return s.complexity
}

type verifierStub struct {
	valid bool
	calls []string
}

func (s *verifierStub) VerifyFix(ctx context.Context, errorLog, originalCode, newCode string) bool {
	s.calls = append(s.calls, newCode)
	return s.valid
}

type enqueueRecorder struct {
	mu    sync.Mutex
	tasks []EnrichmentTask
}

func (r *enqueueRecorder) Enqueue(task EnrichmentTask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
}

type invalidationRecorder struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (r *invalidationRecorder) InvalidateDetail(ctx context.Context, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

func (r *invalidationRecorder) invalidated() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.ids...)
}
