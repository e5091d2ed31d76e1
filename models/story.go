package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Story statuses
const (
	StoryStatusDraft           = "draft"
	StoryStatusScriptGenerated = "script_generated"
	StoryStatusProcessing      = "processing"
	StoryStatusCompleted       = "completed"
	StoryStatusError           = "error"
)

// Script style presets accepted by the generation client.
var StoryStyles = []string{"dramatic", "comedic", "adventure", "romantic", "mystery"}

func IsValidStyle(style string) bool {
	for _, s := range StoryStyles {
		if s == style {
			return true
		}
	}
	return false
}

type Story struct {
	ID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UID uuid.UUID `gorm:"type:uuid;not null;index" json:"uid"`

	Title    string `gorm:"size:255" json:"title"`
	TextRaw  string `gorm:"type:text;not null" json:"text_raw"`
	Language string `gorm:"size:8;default:'ja'" json:"language"`
	Style    string `gorm:"size:32;default:'dramatic'" json:"style"`

	// Generation settings
	SceneCount      int `gorm:"not null;default:5" json:"scene_count"`
	DurationSeconds int `gorm:"default:60" json:"duration_seconds"`

	// Generated MulmoScript, nil until script generation succeeds
	Script datatypes.JSON `gorm:"type:jsonb" json:"script,omitempty"`
	Beats  int            `gorm:"default:0" json:"beats"`

	Status    string    `gorm:"size:32;default:'draft';index" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Story) TableName() string {
	return "stories"
}

func (s *Story) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
