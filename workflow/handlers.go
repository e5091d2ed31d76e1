package workflow

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/akibsystems/showgeki2-sub004/auth"
	"github.com/akibsystems/showgeki2-sub004/generation"
	"github.com/akibsystems/showgeki2-sub004/internal/config"
	"github.com/akibsystems/showgeki2-sub004/models"
	"github.com/akibsystems/showgeki2-sub004/pkg/httpx"
	"github.com/akibsystems/showgeki2-sub004/render"
	"github.com/akibsystems/showgeki2-sub004/tasks"
)

type Handler struct {
	DB         *gorm.DB
	Redis      *redis.Client
	Generator  *generation.Client
	Dispatcher *render.Dispatcher
	Config     *config.Config
}

func NewHandler(db *gorm.DB, rdb *redis.Client, gen *generation.Client, disp *render.Dispatcher, cfg *config.Config) *Handler {
	return &Handler{DB: db, Redis: rdb, Generator: gen, Dispatcher: disp, Config: cfg}
}

type CreateWorkflowRequest struct {
	StoryID uuid.UUID `json:"story_id" binding:"required"`
}

// CreateWorkflow starts the wizard for an owned story, prefilling step 1
// from the story row.
func (h *Handler) CreateWorkflow(c *gin.Context) {
	uid := auth.UID(c)

	var req CreateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, http.StatusBadRequest, httpx.CodeValidation, err.Error())
		return
	}

	var story models.Story
	if err := h.DB.First(&story, "id = ? AND uid = ?", req.StoryID, uid).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			httpx.NotFound(c, "story")
		} else {
			httpx.Internal(c, err)
		}
		return
	}

	wf := models.Workflow{
		StoryID:     story.ID,
		UID:         uid,
		CurrentStep: StepStoryInput,
		Status:      models.WorkflowStatusActive,
		StepInputs:  datatypes.JSONMap{},
		StepOutputs: datatypes.JSONMap{
			StepKey(StepStoryInput): map[string]interface{}{
				"text_raw":         story.TextRaw,
				"style":            story.Style,
				"language":         story.Language,
				"scene_count":      story.SceneCount,
				"duration_seconds": story.DurationSeconds,
			},
		},
	}
	if err := h.DB.Create(&wf).Error; err != nil {
		httpx.Internal(c, err)
		return
	}

	c.JSON(http.StatusCreated, wf)
}

// getOwnedWorkflow enforces uid scoping; misses are 404.
func (h *Handler) getOwnedWorkflow(c *gin.Context) (*models.Workflow, bool) {
	wfID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpx.Error(c, http.StatusBadRequest, httpx.CodeValidation, "invalid workflow ID")
		return nil, false
	}

	uid := auth.UID(c)
	var wf models.Workflow
	if err := h.DB.First(&wf, "id = ? AND uid = ?", wfID, uid).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			httpx.NotFound(c, "workflow")
		} else {
			httpx.Internal(c, err)
		}
		return nil, false
	}
	return &wf, true
}

func (h *Handler) GetWorkflow(c *gin.Context) {
	wf, ok := h.getOwnedWorkflow(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, wf)
}

// WorkflowStatus is the read-only polling endpoint for the wizard.
func (h *Handler) WorkflowStatus(c *gin.Context) {
	wf, ok := h.getOwnedWorkflow(c)
	if !ok {
		return
	}

	resp := gin.H{
		"workflow_id":  wf.ID,
		"status":       wf.Status,
		"current_step": wf.CurrentStep,
		"message":      StepMessage(wf.CurrentStep),
	}
	if wf.Instant {
		resp["instant"] = true
		resp["generation_ms"] = wf.GenerationMs
		resp["total_ms"] = wf.TotalMs
	}
	c.JSON(http.StatusOK, resp)
}

type SubmitStepRequest struct {
	Input map[string]interface{} `json:"input"`
	// Rewind regresses current_step back to this step's successor
	Rewind bool `json:"rewind"`
	// Regenerate overwrites an existing next-step preview
	Regenerate bool `json:"regenerate"`
}

// SubmitStep handles POST /workflow/:id/step/:n: validate, merge, persist,
// and return the generated preview for the next step. A failed generation
// call persists nothing.
func (h *Handler) SubmitStep(c *gin.Context) {
	wf, ok := h.getOwnedWorkflow(c)
	if !ok {
		return
	}
	if wf.Status == models.WorkflowStatusArchived {
		httpx.Error(c, http.StatusConflict, httpx.CodeValidation, "workflow is archived")
		return
	}

	n, err := parseStep(c.Param("step"))
	if err != nil {
		httpx.Error(c, http.StatusBadRequest, httpx.CodeValidation, "invalid step number")
		return
	}

	switch Guard(wf.CurrentStep, n) {
	case GuardOutOfRange:
		httpx.Error(c, http.StatusBadRequest, httpx.CodeValidation, "step must be between 1 and 7")
		return
	case GuardAhead:
		httpx.Error(c, http.StatusConflict, httpx.CodeValidation, "step is ahead of the workflow's progress")
		return
	}

	var req SubmitStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, http.StatusBadRequest, httpx.CodeValidation, err.Error())
		return
	}
	if req.Input == nil {
		req.Input = map[string]interface{}{}
	}

	if errs := ValidateStepInput(n, req.Input); errs.HasErrors() {
		httpx.ValidationError(c, errs)
		return
	}

	mergedOutputs := MergeStepOutput(wf.StepOutputs, n, req.Input)
	mergedInputs := datatypes.JSONMap{}
	for k, v := range wf.StepInputs {
		mergedInputs[k] = v
	}
	mergedInputs[StepKey(n)] = req.Input

	nextStep := NextStep(wf.CurrentStep, n, req.Rewind)

	// Step 7 submissions finalize instead of previewing
	if n == StepConfirm {
		h.persistStep(c, wf, mergedInputs, mergedOutputs, nextStep)
		if c.IsAborted() {
			return
		}

		var confirm ConfirmStep
		raw, _ := json.Marshal(req.Input)
		json.Unmarshal(raw, &confirm)
		if confirm.Confirmed {
			h.finalize(c, wf)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"workflow_id":  wf.ID,
			"current_step": wf.CurrentStep,
			"message":      StepMessage(StepConfirm),
		})
		return
	}

	// Generate preview content for the step the user is about to enter.
	// Existing next-step output survives unless regeneration is requested.
	var preview map[string]interface{}
	previewStep := n + 1
	advancing := n >= wf.CurrentStep

	if advancing && previewStep >= StepTitle && previewStep <= StepAudio {
		existing, hasExisting := mergedOutputs[StepKey(previewStep)].(map[string]interface{})
		if hasExisting && !req.Regenerate {
			preview = existing
		} else {
			// Build the preview from the merged (not yet persisted) context
			scratch := *wf
			scratch.StepOutputs = mergedOutputs
			generated, err := h.Generator.GeneratePreview(c.Request.Context(), previewStep, buildPreviewInput(&scratch))
			if err != nil {
				if generation.IsRateLimited(err) {
					httpx.RateLimited(c, render.DefaultRetryAfter)
					return
				}
				log.Error().Err(err).Int("step", previewStep).Msg("preview generation failed")
				httpx.Error(c, http.StatusBadGateway, httpx.CodeInternal, "preview generation failed")
				return
			}
			preview = generated
			mergedOutputs[StepKey(previewStep)] = generated
		}
	} else if previewStep == StepConfirm && advancing {
		// Entering the confirm step: the preview is the assembled script
		scratch := *wf
		scratch.StepOutputs = mergedOutputs
		if script, errs := AssembleScript(&scratch); !errs.HasErrors() {
			raw, _ := json.Marshal(script)
			var blob map[string]interface{}
			json.Unmarshal(raw, &blob)
			preview = blob
		}
	}

	h.persistStep(c, wf, mergedInputs, mergedOutputs, nextStep)
	if c.IsAborted() {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"workflow_id":  wf.ID,
		"current_step": wf.CurrentStep,
		"preview_step": previewStep,
		"preview":      preview,
		"message":      StepMessage(wf.CurrentStep),
	})
}

func (h *Handler) persistStep(c *gin.Context, wf *models.Workflow, inputs, outputs datatypes.JSONMap, nextStep int) {
	if err := h.DB.Model(wf).Updates(map[string]interface{}{
		"step_inputs":  inputs,
		"step_outputs": outputs,
		"current_step": nextStep,
	}).Error; err != nil {
		httpx.Internal(c, err)
		return
	}
	wf.StepInputs = inputs
	wf.StepOutputs = outputs
	wf.CurrentStep = nextStep
}

// finalize assembles the MulmoScript, stores it on the story, creates the
// render job and dispatches the webhook synchronously.
func (h *Handler) finalize(c *gin.Context, wf *models.Workflow) {
	script, errs := AssembleScript(wf)
	if errs.HasErrors() {
		httpx.ValidationError(c, errs)
		return
	}

	var story models.Story
	if err := h.DB.First(&story, "id = ? AND uid = ?", wf.StoryID, wf.UID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			httpx.NotFound(c, "story")
		} else {
			httpx.Internal(c, err)
		}
		return
	}

	encoded, err := json.Marshal(script)
	if err != nil {
		httpx.Internal(c, err)
		return
	}
	if err := h.DB.Model(&story).Updates(map[string]interface{}{
		"script": encoded,
		"beats":  len(script.Beats),
		"title":  script.Title,
		"status": models.StoryStatusScriptGenerated,
	}).Error; err != nil {
		httpx.Internal(c, err)
		return
	}

	video, err := h.findOrCreateVideo(&story)
	if err != nil {
		httpx.Internal(c, err)
		return
	}

	result, err := h.Dispatcher.Dispatch(c.Request.Context(), render.Envelope{
		Type: render.TypeVideoGeneration,
		Payload: render.VideoPayload{
			VideoID:    video.ID,
			StoryID:    story.ID,
			UID:        story.UID,
			Title:      story.Title,
			TextRaw:    story.TextRaw,
			ScriptJSON: encoded,
		},
	})
	if err != nil {
		h.DB.Model(video).Updates(map[string]interface{}{
			"status":    models.VideoStatusFailed,
			"error_msg": err.Error(),
		})
		httpx.Error(c, http.StatusBadGateway, httpx.CodeInternal, "failed to reach the renderer")
		return
	}

	switch {
	case result.OK():
		h.DB.Model(&story).Update("status", models.StoryStatusProcessing)
		h.DB.Model(wf).Update("status", models.WorkflowStatusCompleted)
		c.JSON(http.StatusOK, gin.H{
			"workflow_id": wf.ID,
			"video_id":    video.ID,
			"status":      models.VideoStatusQueued,
		})
	case result.RateLimited():
		// The video stays queued; the caller may retry after the hint
		httpx.RateLimited(c, result.RetryAfter)
	default:
		h.DB.Model(video).Updates(map[string]interface{}{
			"status":    models.VideoStatusFailed,
			"error_msg": result.Body,
		})
		httpx.Error(c, http.StatusBadGateway, httpx.CodeInternal, "renderer rejected the job")
	}
}

// findOrCreateVideo reuses a still-pending render job for the story so
// repeated confirmations never create duplicates.
func (h *Handler) findOrCreateVideo(story *models.Story) (*models.Video, error) {
	var video models.Video
	err := h.DB.Where("story_id = ? AND uid = ? AND status IN ?",
		story.ID, story.UID,
		[]string{models.VideoStatusQueued, models.VideoStatusProcessing}).
		Order("created_at DESC").First(&video).Error
	if err == nil {
		return &video, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	video = models.Video{
		StoryID: story.ID,
		UID:     story.UID,
		Status:  models.VideoStatusQueued,
	}
	if err := h.DB.Create(&video).Error; err != nil {
		return nil, err
	}
	return &video, nil
}

type InstantRequest struct {
	StoryID         uuid.UUID `json:"story_id" binding:"required"`
	SceneTitleHints []string  `json:"scene_title_hints"`
}

// InstantGenerate is the single-shot variant: one generation call fills
// every step, then the render job is created and dispatched immediately.
func (h *Handler) InstantGenerate(c *gin.Context) {
	uid := auth.UID(c)

	var req InstantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, http.StatusBadRequest, httpx.CodeValidation, err.Error())
		return
	}

	var story models.Story
	if err := h.DB.First(&story, "id = ? AND uid = ?", req.StoryID, uid).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			httpx.NotFound(c, "story")
		} else {
			httpx.Internal(c, err)
		}
		return
	}

	start := time.Now()
	script := h.Generator.GenerateScript(c.Request.Context(), generation.Request{
		Text:            story.TextRaw,
		Style:           story.Style,
		Language:        story.Language,
		SceneCount:      story.SceneCount,
		DurationSeconds: story.DurationSeconds,
		SceneTitleHints: req.SceneTitleHints,
	})
	generationMs := time.Since(start).Milliseconds()

	outputs := datatypes.JSONMap{}
	for step, blob := range scriptToStepOutputs(&story, script) {
		outputs[StepKey(step)] = blob
	}

	wf := models.Workflow{
		StoryID:      story.ID,
		UID:          uid,
		CurrentStep:  StepConfirm,
		Status:       models.WorkflowStatusActive,
		StepInputs:   datatypes.JSONMap{},
		StepOutputs:  outputs,
		Instant:      true,
		GenerationMs: generationMs,
	}
	if err := h.DB.Create(&wf).Error; err != nil {
		httpx.Internal(c, err)
		return
	}

	h.finalize(c, &wf)
	if c.IsAborted() {
		return
	}

	h.DB.Model(&wf).Update("total_ms", time.Since(start).Milliseconds())
}

// PreviewImages asks the renderer for beat preview images and face
// detection on the workflow's current script. Dispatch is out of band.
func (h *Handler) PreviewImages(c *gin.Context) {
	wf, ok := h.getOwnedWorkflow(c)
	if !ok {
		return
	}

	if _, errs := AssembleScript(wf); errs.HasErrors() {
		httpx.ValidationError(c, errs)
		return
	}

	var story models.Story
	if err := h.DB.First(&story, "id = ? AND uid = ?", wf.StoryID, wf.UID).Error; err != nil {
		httpx.NotFound(c, "story")
		return
	}

	video, err := h.findOrCreateVideo(&story)
	if err != nil {
		httpx.Internal(c, err)
		return
	}

	if err := h.DB.Model(video).Update("preview_status", models.PreviewStatusRequested).Error; err != nil {
		httpx.Internal(c, err)
		return
	}

	payload, err := tasks.Marshal(tasks.PreviewTaskPayload{VideoID: video.ID, WorkflowID: wf.ID})
	if err != nil {
		httpx.Internal(c, err)
		return
	}
	if err := h.Redis.LPush(c.Request.Context(), tasks.QueuePreviewDispatch, payload).Err(); err != nil {
		httpx.Internal(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"video_id":       video.ID,
		"preview_status": models.PreviewStatusRequested,
	})
}

// ListFaces returns the detected faces for a workflow.
func (h *Handler) ListFaces(c *gin.Context) {
	wf, ok := h.getOwnedWorkflow(c)
	if !ok {
		return
	}

	var faces []models.DetectedFace
	if err := h.DB.Where("workflow_id = ? AND uid = ?", wf.ID, wf.UID).Find(&faces).Error; err != nil {
		httpx.Internal(c, err)
		return
	}
	c.JSON(http.StatusOK, faces)
}

type TagFaceRequest struct {
	Tag string `json:"tag" binding:"required"`
}

// TagFace assigns a character label to a detected face.
func (h *Handler) TagFace(c *gin.Context) {
	wf, ok := h.getOwnedWorkflow(c)
	if !ok {
		return
	}

	var req TagFaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, http.StatusBadRequest, httpx.CodeValidation, err.Error())
		return
	}

	result := h.DB.Model(&models.DetectedFace{}).
		Where("id = ? AND workflow_id = ? AND uid = ?", c.Param("faceId"), wf.ID, wf.UID).
		Update("tag", req.Tag)
	if result.Error != nil {
		httpx.Internal(c, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		httpx.NotFound(c, "face")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tagged": true})
}

func parseStep(raw string) (int, error) {
	return strconv.Atoi(raw)
}
