package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-autograder/internal/models"
)

// ProblemRepository persists problem specs.
type ProblemRepository interface {
	Create(ctx context.Context, problem *models.ProblemSpec) error
	GetByID(ctx context.Context, id uuid.UUID) (models.ProblemSpec, error)
	GetByAccessCode(ctx context.Context, code string) (models.ProblemSpec, error)
	ExistsByAccessCode(ctx context.Context, code string) (bool, error)
	ListByEducator(ctx context.Context, educatorName string) ([]models.ProblemSpec, error)
}

// NewProblemRepository constructs a problem repository.
func NewProblemRepository(db *gorm.DB) ProblemRepository {
	return &problemRepository{db: db}
}

type problemRepository struct {
	db *gorm.DB
}

func (r *problemRepository) Create(ctx context.Context, problem *models.ProblemSpec) error {
	return r.db.WithContext(ctx).Create(problem).Error
}

func (r *problemRepository) GetByID(ctx context.Context, id uuid.UUID) (models.ProblemSpec, error) {
	var problem models.ProblemSpec
	if err := r.db.WithContext(ctx).First(&problem, "id = ?", id).Error; err != nil {
		return models.ProblemSpec{}, err
	}
	return problem, nil
}

func (r *problemRepository) GetByAccessCode(ctx context.Context, code string) (models.ProblemSpec, error) {
	var problem models.ProblemSpec
	if err := r.db.WithContext(ctx).First(&problem, "access_code = ?", code).Error; err != nil {
		return models.ProblemSpec{}, err
	}
	return problem, nil
}

func (r *problemRepository) ExistsByAccessCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProblemSpec{}).Where("access_code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *problemRepository) ListByEducator(ctx context.Context, educatorName string) ([]models.ProblemSpec, error) {
	var problems []models.ProblemSpec
	err := r.db.WithContext(ctx).
		Where("educator_name = ?", educatorName).
		Order("created_at DESC").
		Find(&problems).Error
	return problems, err
}
