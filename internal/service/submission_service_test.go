package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-autograder/internal/dto"
	"github.com/noah-isme/gema-autograder/internal/models"
	"github.com/noah-isme/gema-autograder/pkg/runner"
)

var student = Actor{Name: "ana", Email: "ana@school.test", Role: RoleStudent}

const studentSource = `package main

func init() { panic("boom") }

func Solution(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
`

type submissionFixture struct {
	problem     models.ProblemSpec
	submissions *submissionRepoStub
	runner      *runnerStub
	enqueued    *enqueueRecorder
	invalidated *invalidationRecorder
	service     SubmissionService
}

func newSubmissionFixture(result runner.Result, runErr error) submissionFixture {
	problem := models.ProblemSpec{
		ID:                 uuid.New(),
		ProblemDescription: "Sum a list of integers.",
		TestSuite:          "package solution\n\nimport \"testing\"\n\nfunc TestSum(t *testing.T) {}\n",
	}
	f := submissionFixture{
		problem:     problem,
		submissions: &submissionRepoStub{},
		runner:      &runnerStub{result: result, err: runErr},
		enqueued:    &enqueueRecorder{},
		invalidated: &invalidationRecorder{},
	}
	f.service = NewSubmissionService(newProblemRepoStub(problem), f.submissions, f.runner, f.enqueued, f.invalidated, validator.New(), testLogger(), SubmissionConfig{ExecutionTimeout: 3 * time.Second})
	return f
}

func TestSubmissionServiceSubmitRecordsFailingRun(t *testing.T) {
	f := newSubmissionFixture(runner.Result{
		Output:   "--- PASS: TestSum (0.00s)\n--- FAIL: TestEmpty (0.00s)\n2 passed, 1 failed",
		ExitCode: 1,
		Error:    "exit status 1",
		Duration: 40 * time.Millisecond,
	}, nil)

	response, err := f.service.Submit(context.Background(), student, f.problem.ID.String(), dto.SubmitCodeRequest{Source: studentSource})
	require.NoError(t, err)

	require.Equal(t, models.SubmissionStatusFailed, response.Status)
	require.Equal(t, 66.67, response.Evaluation.Score)
	require.Equal(t, 3, response.Evaluation.TotalTests)
	require.Equal(t, 1, response.Evaluation.FailedTestsCount)
	require.False(t, response.Evaluation.Pass)
	require.Nil(t, response.Evaluation.AIFeedback)
	require.Nil(t, response.Evaluation.Complexity)
	require.False(t, response.Enriched)
	require.Equal(t, int64(40), response.DurationMs)

	require.Len(t, f.runner.requests, 1)
	request := f.runner.requests[0]
	require.Equal(t, 3*time.Second, request.Timeout)
	require.Equal(t, f.problem.TestSuite, request.TestSuite)
	require.Contains(t, request.Source, "package solution")
	require.Contains(t, request.Source, "func Solution")
	require.NotContains(t, request.Source, "func init")

	require.Len(t, f.submissions.submissions, 1)
	stored := f.submissions.submissions[0]
	require.Equal(t, studentSource, stored.Source)
	require.Equal(t, student.Name, stored.StudentName)

	require.Equal(t, []uuid.UUID{f.problem.ID}, f.invalidated.invalidated())
	require.Len(t, f.enqueued.tasks, 1)
	task := f.enqueued.tasks[0]
	require.Equal(t, stored.ID, task.SubmissionID)
	require.Equal(t, f.problem.ID, task.ProblemID)
	require.Equal(t, f.problem.ProblemDescription, task.Problem)
	require.Equal(t, studentSource, task.Source)
	require.Equal(t, 3, task.TotalTests)
	require.Len(t, task.Tests, 2)
}

func TestSubmissionServiceSubmitPassingRun(t *testing.T) {
	f := newSubmissionFixture(runner.Result{Output: "--- PASS: TestSum (0.00s)\n1 passed in 0.01s"}, nil)

	response, err := f.service.Submit(context.Background(), student, f.problem.ID.String(), dto.SubmitCodeRequest{Source: studentSource})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusCompleted, response.Status)
	require.True(t, response.Evaluation.Pass)
	require.Equal(t, 100.0, response.Evaluation.Score)
	require.Empty(t, response.RunError)
}

func TestSubmissionServiceSubmitTimeoutIsData(t *testing.T) {
	f := newSubmissionFixture(runner.Result{
		TimedOut: true,
		ExitCode: -1,
		Error:    runner.TimeoutMessage(10*time.Second, ""),
	}, nil)

	response, err := f.service.Submit(context.Background(), student, f.problem.ID.String(), dto.SubmitCodeRequest{Source: studentSource})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusTimeout, response.Status)
	require.Contains(t, response.RunError, runner.TimeoutIndicator)
	require.Zero(t, response.Evaluation.Score)
	require.Zero(t, response.Evaluation.TotalTests)
	require.False(t, response.Evaluation.Pass)
	require.Len(t, f.enqueued.tasks, 1)
}

func TestSubmissionServiceSubmitRunnerErrorIsRecorded(t *testing.T) {
	f := newSubmissionFixture(runner.Result{}, errors.New("create workspace: disk full"))

	response, err := f.service.Submit(context.Background(), student, f.problem.ID.String(), dto.SubmitCodeRequest{Source: studentSource})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusFailed, response.Status)
	require.Contains(t, response.RunError, "disk full")
	require.False(t, response.Evaluation.Pass)
}

func TestSubmissionServiceSubmitRejectsBadInput(t *testing.T) {
	f := newSubmissionFixture(runner.Result{}, nil)

	_, err := f.service.Submit(context.Background(), student, "nope", dto.SubmitCodeRequest{Source: studentSource})
	require.ErrorIs(t, err, ErrInvalidID)

	_, err = f.service.Submit(context.Background(), student, uuid.NewString(), dto.SubmitCodeRequest{Source: studentSource})
	require.ErrorIs(t, err, ErrProblemNotFound)

	_, err = f.service.Submit(context.Background(), student, f.problem.ID.String(), dto.SubmitCodeRequest{})
	require.Error(t, err)

	require.Empty(t, f.runner.requests)
	require.Empty(t, f.enqueued.tasks)
}

func TestSubmissionServiceGetEnforcesOwnership(t *testing.T) {
	f := newSubmissionFixture(runner.Result{Output: "1 passed"}, nil)
	created, err := f.service.Submit(context.Background(), student, f.problem.ID.String(), dto.SubmitCodeRequest{Source: studentSource})
	require.NoError(t, err)

	own, err := f.service.Get(context.Background(), student, created.ID.String())
	require.NoError(t, err)
	require.Equal(t, created.ID, own.ID)

	_, err = f.service.Get(context.Background(), Actor{Name: "ben", Role: RoleStudent}, created.ID.String())
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.service.Get(context.Background(), educator, created.ID.String())
	require.NoError(t, err)

	_, err = f.service.Get(context.Background(), student, uuid.NewString())
	require.ErrorIs(t, err, ErrSubmissionNotFound)

	list, err := f.service.ListForStudent(context.Background(), student)
	require.NoError(t, err)
	require.Len(t, list, 1)
}
