package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-autograder/internal/models"
	"github.com/noah-isme/gema-autograder/pkg/testreport"
)

func TestProblemRepositoryAccessCodeLookup(t *testing.T) {
	db := setupTestDB(t, &models.ProblemSpec{})
	repo := NewProblemRepository(db)
	ctx := context.Background()

	problem := models.ProblemSpec{Title: "Sums", UserPrompt: "sum", ProblemDescription: "Sum a list", TestSuite: "package solution", AccessCode: "SUM1", EducatorName: "Ada"}
	problem.Variations = datatypes.NewJSONSlice([]string{"Sum a list", "Reverse a list"})
	require.NoError(t, repo.Create(ctx, &problem))
	require.NotEqual(t, uuid.Nil, problem.ID)
	require.Equal(t, models.DefaultTopic, problem.Topic)

	exists, err := repo.ExistsByAccessCode(ctx, "SUM1")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = repo.ExistsByAccessCode(ctx, "NOPE")
	require.NoError(t, err)
	require.False(t, exists)

	found, err := repo.GetByAccessCode(ctx, "SUM1")
	require.NoError(t, err)
	require.Equal(t, problem.ID, found.ID)
	require.Equal(t, []string{"Sum a list", "Reverse a list"}, []string(found.Variations))

	duplicate := models.ProblemSpec{Title: "Again", UserPrompt: "x", ProblemDescription: "x", TestSuite: "x", AccessCode: "SUM1"}
	require.Error(t, repo.Create(ctx, &duplicate))

	_, err = repo.GetByID(ctx, uuid.New())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	listed, err := repo.ListByEducator(ctx, "Ada")
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestSubmissionRepositorySaveEnrichment(t *testing.T) {
	db := setupTestDB(t, &models.Submission{})
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	problemID := uuid.New()
	submission := models.Submission{
		ProblemID:   problemID,
		StudentName: "Grace",
		Source:      "package solution",
		Status:      models.SubmissionStatusCompleted,
		Evaluation:  models.NewEvaluationResult(testreport.ParseText("3 passed, 2 failed")),
	}
	require.NoError(t, repo.Create(ctx, &submission))

	stored, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.Nil(t, stored.Evaluation.AIFeedback)
	require.Nil(t, stored.Evaluation.Complexity)
	require.False(t, stored.Enriched())
	require.Equal(t, 60.0, stored.Evaluation.Score)
	require.False(t, stored.Evaluation.Pass)

	complexity := models.ComplexityEstimate{Time: "O(n)", Space: "O(1)", Rationale: "single pass"}
	require.NoError(t, repo.SaveEnrichment(ctx, submission.ID, "Nice work", complexity))

	enriched, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.NotNil(t, enriched.Evaluation.AIFeedback)
	require.Equal(t, "Nice work", *enriched.Evaluation.AIFeedback)
	require.Equal(t, &complexity, enriched.Evaluation.Complexity)
	require.True(t, enriched.Enriched())
	require.Equal(t, 60.0, enriched.Evaluation.Score)

	err = repo.SaveEnrichment(ctx, uuid.New(), "x", complexity)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	byProblem, err := repo.ListByProblem(ctx, problemID)
	require.NoError(t, err)
	require.Len(t, byProblem, 1)

	byStudent, err := repo.ListByStudent(ctx, "Grace")
	require.NoError(t, err)
	require.Len(t, byStudent, 1)
}

func TestFixLogRepositoryLifecycle(t *testing.T) {
	db := setupTestDB(t, &models.FixLog{})
	repo := NewFixLogRepository(db)
	ctx := context.Background()

	log := models.FixLog{FilePath: "/tmp/a.go", ErrorMessage: "panic", OriginalCode: "package main"}
	require.NoError(t, repo.Create(ctx, &log))
	require.Equal(t, models.FixLogStatusUnresolved, log.Status)

	found, err := repo.FindUnresolvedByPath(ctx, "/tmp/a.go")
	require.NoError(t, err)
	require.Equal(t, log.ID, found.ID)

	other := models.FixLog{FilePath: "/tmp/b.go", ErrorMessage: "boom", Status: models.FixLogStatusPendingConfirmation, CreatedAt: time.Now().Add(time.Minute)}
	require.NoError(t, repo.Create(ctx, &other))

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	found.Status = models.FixLogStatusVerificationFailed
	require.NoError(t, repo.Update(ctx, &found))
	pending, err = repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, models.FixLogStatusVerificationFailed, pending[0].Status)

	deleted, err := repo.Delete(ctx, log.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = repo.Delete(ctx, log.ID)
	require.NoError(t, err)
	require.False(t, deleted)
}

func setupTestDB(t *testing.T, models ...interface{}) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models...))
	return db
}
