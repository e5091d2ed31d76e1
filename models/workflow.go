package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Workflow statuses
const (
	WorkflowStatusActive    = "active"
	WorkflowStatusCompleted = "completed"
	WorkflowStatusArchived  = "archived"
)

// WorkflowMaxStep is the final confirmation step of the guided wizard.
const WorkflowMaxStep = 7

type Workflow struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StoryID uuid.UUID `gorm:"type:uuid;not null;index" json:"story_id"`
	UID     uuid.UUID `gorm:"type:uuid;not null;index" json:"uid"`

	CurrentStep int    `gorm:"not null;default:1" json:"current_step"`
	Status      string `gorm:"size:32;default:'active';index" json:"status"`

	// Per-step blobs keyed by the step number ("1".."7")
	StepInputs  datatypes.JSONMap `gorm:"type:jsonb" json:"step_inputs"`
	StepOutputs datatypes.JSONMap `gorm:"type:jsonb" json:"step_outputs"`

	// Instant mode: single-shot generation that skips step-by-step review
	Instant      bool  `gorm:"default:false" json:"instant"`
	GenerationMs int64 `gorm:"default:0" json:"generation_ms,omitempty"`
	TotalMs      int64 `gorm:"default:0" json:"total_ms,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Workflow) TableName() string {
	return "workflows"
}

func (w *Workflow) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
