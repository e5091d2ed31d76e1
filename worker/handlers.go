package worker

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/akibsystems/showgeki2-sub004/generation"
	"github.com/akibsystems/showgeki2-sub004/models"
	"github.com/akibsystems/showgeki2-sub004/render"
	"github.com/akibsystems/showgeki2-sub004/tasks"
)

// HandleScriptGeneration processes tasks from QueueScriptGeneration.
func (p *Processor) HandleScriptGeneration(ctx context.Context, payload string) error {
	var task tasks.ScriptTaskPayload
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return err
	}

	log.Info().Str("story_id", task.StoryID.String()).Msg("generating script")

	var story models.Story
	if err := p.DB.First(&story, "id = ?", task.StoryID).Error; err != nil {
		return err
	}

	// GenerateScript never fails: it falls back to the template generator
	script := p.Generator.GenerateScript(ctx, generation.Request{
		Text:            story.TextRaw,
		Style:           story.Style,
		Language:        story.Language,
		SceneCount:      story.SceneCount,
		DurationSeconds: story.DurationSeconds,
		SceneTitleHints: task.SceneTitleHints,
	})

	encoded, err := json.Marshal(script)
	if err != nil {
		return err
	}

	if err := p.DB.Model(&story).Updates(map[string]interface{}{
		"script": encoded,
		"beats":  len(script.Beats),
		"title":  script.Title,
		"status": models.StoryStatusScriptGenerated,
	}).Error; err != nil {
		return err
	}

	log.Info().
		Str("story_id", story.ID.String()).
		Int("beats", len(script.Beats)).
		Msg("script generated")
	return nil
}

// HandleRenderDispatch processes tasks from QueueRenderDispatch.
func (p *Processor) HandleRenderDispatch(ctx context.Context, payload string) error {
	var task tasks.RenderTaskPayload
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return err
	}

	var video models.Video
	if err := p.DB.First(&video, "id = ?", task.VideoID).Error; err != nil {
		return err
	}
	if video.Status == models.VideoStatusCompleted {
		// Already finished, nothing to dispatch
		return nil
	}

	var story models.Story
	if err := p.DB.First(&story, "id = ?", video.StoryID).Error; err != nil {
		p.DB.Model(&video).Updates(map[string]interface{}{
			"status":    models.VideoStatusFailed,
			"error_msg": "story not found",
		})
		return err
	}
	if len(story.Script) == 0 {
		p.DB.Model(&video).Updates(map[string]interface{}{
			"status":    models.VideoStatusFailed,
			"error_msg": "story has no generated script",
		})
		return nil
	}

	result, err := p.Dispatcher.Dispatch(ctx, render.Envelope{
		Type: render.TypeVideoGeneration,
		Payload: render.VideoPayload{
			VideoID:    video.ID,
			StoryID:    story.ID,
			UID:        video.UID,
			Title:      story.Title,
			TextRaw:    story.TextRaw,
			ScriptJSON: json.RawMessage(story.Script),
		},
	})
	if err != nil {
		p.DB.Model(&video).Updates(map[string]interface{}{
			"status":    models.VideoStatusFailed,
			"error_msg": err.Error(),
		})
		return err
	}

	switch {
	case result.OK():
		p.DB.Model(&story).Update("status", models.StoryStatusProcessing)
		log.Info().Str("video_id", video.ID.String()).Msg("render dispatched")
	case result.RateLimited():
		// Leave the video queued: the scheduler sweeper requeues it later
		log.Warn().
			Str("video_id", video.ID.String()).
			Int("retry_after", result.RetryAfter).
			Msg("renderer rate limited, leaving video queued")
	default:
		p.DB.Model(&video).Updates(map[string]interface{}{
			"status":    models.VideoStatusFailed,
			"error_msg": result.Body,
		})
		log.Error().
			Str("video_id", video.ID.String()).
			Int("status", result.StatusCode).
			Msg("render dispatch rejected")
	}

	return nil
}

// HandlePreviewDispatch processes tasks from QueuePreviewDispatch.
func (p *Processor) HandlePreviewDispatch(ctx context.Context, payload string) error {
	var task tasks.PreviewTaskPayload
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return err
	}

	var video models.Video
	if err := p.DB.First(&video, "id = ?", task.VideoID).Error; err != nil {
		return err
	}

	var story models.Story
	if err := p.DB.First(&story, "id = ?", video.StoryID).Error; err != nil {
		return err
	}

	result, err := p.Dispatcher.Dispatch(ctx, render.Envelope{
		Type: render.TypeImagePreview,
		Payload: render.PreviewPayload{
			VideoID:    video.ID,
			WorkflowID: task.WorkflowID,
			StoryID:    story.ID,
			UID:        video.UID,
			ScriptJSON: json.RawMessage(story.Script),
		},
	})
	if err != nil || !result.OK() {
		p.DB.Model(&video).Update("preview_status", models.PreviewStatusFailed)
		if err != nil {
			return err
		}
		log.Error().
			Str("video_id", video.ID.String()).
			Int("status", result.StatusCode).
			Msg("preview dispatch rejected")
		return nil
	}

	p.DB.Model(&video).Update("preview_status", models.PreviewStatusRequested)
	log.Info().Str("video_id", video.ID.String()).Msg("preview dispatched")
	return nil
}
