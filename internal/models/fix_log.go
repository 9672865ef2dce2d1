package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Fix log statuses.
const (
	FixLogStatusUnresolved          = "unresolved"
	FixLogStatusVerificationFailed  = "verification_failed"
	FixLogStatusFixAttempted        = "fix_attempted"
	FixLogStatusPendingConfirmation = "fix_verified_pending_confirmation"
)

// FixLog records a script that failed to run and tracks the manual fix
// through verification and deletion.
type FixLog struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FilePath     string    `gorm:"size:1024;not null;index" json:"file_path"`
	ErrorMessage string    `gorm:"type:text;not null" json:"error_message"`
	OriginalCode string    `gorm:"type:text" json:"original_code"`
	NewCode      *string   `gorm:"type:text" json:"new_code"`
	Status       string    `gorm:"size:64;not null;index" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BeforeCreate assigns the identifier and initial status.
func (l *FixLog) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = FixLogStatusUnresolved
	}
	return nil
}

// Confirmable reports whether the log is waiting for a delete confirmation.
func (l FixLog) Confirmable() bool {
	return l.Status == FixLogStatusPendingConfirmation
}
