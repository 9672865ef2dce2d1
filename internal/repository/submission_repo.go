package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-autograder/internal/models"
)

// SubmissionRepository persists student submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (models.Submission, error)
	ListByStudent(ctx context.Context, studentName string) ([]models.Submission, error)
	ListByProblem(ctx context.Context, problemID uuid.UUID) ([]models.Submission, error)
	SaveEnrichment(ctx context.Context, id uuid.UUID, feedback string, complexity models.ComplexityEstimate) error
}

// NewSubmissionRepository constructs a submission repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

type submissionRepository struct {
	db *gorm.DB
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uuid.UUID) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).First(&submission, "id = ?", id).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) ListByStudent(ctx context.Context, studentName string) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("student_name = ?", studentName).
		Order("created_at DESC").
		Find(&submissions).Error
	return submissions, err
}

func (r *submissionRepository) ListByProblem(ctx context.Context, problemID uuid.UUID) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("problem_id = ?", problemID).
		Order("created_at DESC").
		Find(&submissions).Error
	return submissions, err
}

// SaveEnrichment writes feedback and complexity in one UPDATE.
func (r *submissionRepository) SaveEnrichment(ctx context.Context, id uuid.UUID, feedback string, complexity models.ComplexityEstimate) error {
	encoded, err := json.Marshal(complexity)
	if err != nil {
		return fmt.Errorf("encode complexity: %w", err)
	}

	result := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"evaluation_ai_feedback": feedback,
			"evaluation_complexity":  string(encoded),
			"enriched_at":            time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
