package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ---
// QUEUE DEFINITIONS
// ---
// We define all queue names as constants here.
const (
	// QueueScriptGeneration: generate a MulmoScript for a story asynchronously.
	QueueScriptGeneration = "q_script_generation"

	// QueueRenderDispatch: post the finished script to the renderer webhook.
	QueueRenderDispatch = "q_render_dispatch"

	// QueuePreviewDispatch: ask the renderer for preview images / face detection.
	QueuePreviewDispatch = "q_preview_dispatch"
)

// ---
// TASK PAYLOADS
// ---
// These are the structs that will be JSON-marshalled and sent to Redis.

// ScriptTaskPayload is the payload for QueueScriptGeneration
type ScriptTaskPayload struct {
	StoryID         uuid.UUID `json:"story_id"`
	SceneTitleHints []string  `json:"scene_title_hints,omitempty"`
}

// RenderTaskPayload is the payload for QueueRenderDispatch
type RenderTaskPayload struct {
	VideoID uuid.UUID `json:"video_id"`
}

// PreviewTaskPayload is the payload for QueuePreviewDispatch
type PreviewTaskPayload struct {
	VideoID    uuid.UUID `json:"video_id"`
	WorkflowID uuid.UUID `json:"workflow_id"`
}

// Marshal creates a JSON payload for a task.
func Marshal(payload interface{}) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
