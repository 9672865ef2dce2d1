package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/gema-autograder/internal/models"
)

// Fix-log flow result statuses.
const (
	MonitorStatusOK          = "ok"
	MonitorStatusErrorLogged = "error_logged"

	FixCheckStillBroken = "still_broken"

	ConfirmStatusDeleted   = "deleted"
	ConfirmStatusCancelled = "deletion_cancelled"
)

// MonitorScriptRequest submits script content for a monitored run.
type MonitorScriptRequest struct {
	Content string `json:"content" form:"content" validate:"required"`
}

// UpdateFixCodeRequest stores a proposed fix.
type UpdateFixCodeRequest struct {
	NewCode string `json:"new_code" form:"new_code" validate:"required"`
}

// ConfirmDeleteRequest answers the deletion prompt with yes or no.
type ConfirmDeleteRequest struct {
	Confirmation string `json:"confirmation" form:"confirmation" validate:"required"`
}

// MonitorResult is returned by a monitored run.
type MonitorResult struct {
	Status  string     `json:"status"`
	Message string     `json:"message"`
	LogID   *uuid.UUID `json:"log_id,omitempty"`
}

// FixCheckResult is returned after re-running and verifying a fix.
type FixCheckResult struct {
	Status   string    `json:"status"`
	Message  string    `json:"message"`
	NewError string    `json:"new_error,omitempty"`
	LogID    uuid.UUID `json:"log_id"`
}

// ConfirmDeleteResult is returned by the confirmation step.
type ConfirmDeleteResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// FixLogResponse describes a stored fix log.
type FixLogResponse struct {
	ID           uuid.UUID `json:"id"`
	FilePath     string    `json:"file_path"`
	ErrorMessage string    `json:"error_message"`
	OriginalCode string    `json:"original_code"`
	NewCode      *string   `json:"new_code"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewFixLogResponse converts a model into a DTO.
func NewFixLogResponse(log models.FixLog) FixLogResponse {
	return FixLogResponse{
		ID:           log.ID,
		FilePath:     log.FilePath,
		ErrorMessage: log.ErrorMessage,
		OriginalCode: log.OriginalCode,
		NewCode:      log.NewCode,
		Status:       log.Status,
		CreatedAt:    log.CreatedAt,
		UpdatedAt:    log.UpdatedAt,
	}
}
