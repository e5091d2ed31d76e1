package models

import (
	"time"

	"github.com/google/uuid"
)

// DetectedFace is a face bounding box extracted from a preview image. Rows
// are written by the renderer's image_preview callback and labelled with
// character names through the workflow face endpoints.
type DetectedFace struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	WorkflowID uuid.UUID `gorm:"type:uuid;not null;index" json:"workflow_id"`
	UID        uuid.UUID `gorm:"type:uuid;not null;index" json:"uid"`

	ImagePath string `gorm:"size:1024;not null" json:"image_path"`

	// Bounding box in source-image pixels
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`

	// Character label assigned by the user (or empty until tagged)
	Tag string `gorm:"size:64" json:"tag"`

	CreatedAt time.Time `json:"created_at"`
}

func (DetectedFace) TableName() string {
	return "detected_faces"
}
