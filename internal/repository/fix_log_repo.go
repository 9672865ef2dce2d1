package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-autograder/internal/models"
)

// FixLogRepository persists fix logs.
type FixLogRepository interface {
	Create(ctx context.Context, log *models.FixLog) error
	GetByID(ctx context.Context, id uuid.UUID) (models.FixLog, error)
	FindUnresolvedByPath(ctx context.Context, path string) (models.FixLog, error)
	ListPending(ctx context.Context) ([]models.FixLog, error)
	Update(ctx context.Context, log *models.FixLog) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// NewFixLogRepository constructs a fix log repository.
func NewFixLogRepository(db *gorm.DB) FixLogRepository {
	return &fixLogRepository{db: db}
}

type fixLogRepository struct {
	db *gorm.DB
}

func (r *fixLogRepository) Create(ctx context.Context, log *models.FixLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *fixLogRepository) GetByID(ctx context.Context, id uuid.UUID) (models.FixLog, error) {
	var log models.FixLog
	if err := r.db.WithContext(ctx).First(&log, "id = ?", id).Error; err != nil {
		return models.FixLog{}, err
	}
	return log, nil
}

func (r *fixLogRepository) FindUnresolvedByPath(ctx context.Context, path string) (models.FixLog, error) {
	var log models.FixLog
	err := r.db.WithContext(ctx).
		Where("file_path = ? AND status = ?", path, models.FixLogStatusUnresolved).
		First(&log).Error
	if err != nil {
		return models.FixLog{}, err
	}
	return log, nil
}

// ListPending returns logs still awaiting a verified fix.
func (r *fixLogRepository) ListPending(ctx context.Context) ([]models.FixLog, error) {
	var logs []models.FixLog
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{models.FixLogStatusUnresolved, models.FixLogStatusVerificationFailed}).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}

func (r *fixLogRepository) Update(ctx context.Context, log *models.FixLog) error {
	return r.db.WithContext(ctx).Save(log).Error
}

func (r *fixLogRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&models.FixLog{}, "id = ?", id)
	return result.RowsAffected > 0, result.Error
}
