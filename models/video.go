package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Video statuses
const (
	VideoStatusQueued     = "queued"
	VideoStatusProcessing = "processing"
	VideoStatusCompleted  = "completed"
	VideoStatusFailed     = "failed"
	VideoStatusError      = "error"
)

// Preview-image sub-statuses
const (
	PreviewStatusNone      = ""
	PreviewStatusRequested = "requested"
	PreviewStatusReady     = "ready"
	PreviewStatusFailed    = "failed"
)

type Video struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StoryID uuid.UUID `gorm:"type:uuid;not null;index" json:"story_id"`
	UID     uuid.UUID `gorm:"type:uuid;not null;index" json:"uid"`

	Status string `gorm:"size:32;default:'queued';index" json:"status"`

	// Set by the renderer callback on completion
	URL             string  `gorm:"size:1024" json:"url,omitempty"`
	DurationSeconds float64 `gorm:"default:0" json:"duration_seconds,omitempty"`
	Resolution      string  `gorm:"size:32" json:"resolution,omitempty"`
	SizeBytes       int64   `gorm:"default:0" json:"size_bytes,omitempty"`
	StoragePath     string  `gorm:"size:1024" json:"storage_path,omitempty"`

	ErrorMsg      string `gorm:"type:text" json:"error_msg,omitempty"`
	PreviewStatus string `gorm:"size:32" json:"preview_status,omitempty"`

	// Requeue bookkeeping for the scheduler sweeper
	RequeueCount int `gorm:"default:0" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Video) TableName() string {
	return "videos"
}

func (v *Video) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// IsPending reports whether the render job is still in flight.
func (v *Video) IsPending() bool {
	return v.Status == VideoStatusQueued || v.Status == VideoStatusProcessing
}
