package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultTopic is used when an educator leaves the topic blank.
const DefaultTopic = "General"

// ProblemSpec is an educator-authored assessment: the selected problem text,
// the generated scenario and test suite, and the access code students use to
// open it. Variations holds every candidate the selector scored, including
// the winner.
type ProblemSpec struct {
	ID                 uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	Title              string                      `gorm:"size:255;not null" json:"title"`
	UserPrompt         string                      `gorm:"type:text;not null" json:"user_prompt"`
	ProblemDescription string                      `gorm:"type:text;not null" json:"problem_description"`
	Topic              string                      `gorm:"size:128;not null" json:"topic"`
	Scenario           string                      `gorm:"type:text" json:"scenario"`
	TestSuite          string                      `gorm:"type:text;not null" json:"test_suite"`
	MaterialsFallback  bool                        `gorm:"not null;default:false" json:"materials_fallback"`
	Variations         datatypes.JSONSlice[string] `gorm:"type:json" json:"variations"`
	AccessCode         string                      `gorm:"size:64;not null;uniqueIndex" json:"access_code"`
	EducatorName       string                      `gorm:"size:255;index" json:"educator_name"`
	EducatorEmail      string                      `gorm:"size:255" json:"educator_email"`
	CreatedAt          time.Time                   `json:"created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`
}

// BeforeCreate assigns the identifier and default topic.
func (p *ProblemSpec) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Topic == "" {
		p.Topic = DefaultTopic
	}
	return nil
}
