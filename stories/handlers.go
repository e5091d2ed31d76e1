package stories

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/akibsystems/showgeki2-sub004/auth"
	"github.com/akibsystems/showgeki2-sub004/generation"
	"github.com/akibsystems/showgeki2-sub004/internal/config"
	"github.com/akibsystems/showgeki2-sub004/models"
	"github.com/akibsystems/showgeki2-sub004/pkg/httpx"
	"github.com/akibsystems/showgeki2-sub004/pkg/validate"
	"github.com/akibsystems/showgeki2-sub004/tasks"
)

// Scene-count limits; free users are capped lower than subscribers.
const (
	MaxSceneCount     = 20
	FreeMaxSceneCount = 5
)

type Handler struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Generator *generation.Client
	Config    *config.Config
}

func NewHandler(db *gorm.DB, rdb *redis.Client, gen *generation.Client, cfg *config.Config) *Handler {
	return &Handler{DB: db, Redis: rdb, Generator: gen, Config: cfg}
}

type CreateStoryRequest struct {
	Title           string `json:"title"`
	TextRaw         string `json:"text_raw"`
	Language        string `json:"language"`
	Style           string `json:"style"`
	SceneCount      int    `json:"scene_count"`
	DurationSeconds int    `json:"duration_seconds"`
}

func (r *CreateStoryRequest) normalize() {
	if r.Language == "" {
		r.Language = "ja"
	}
	if r.Style == "" {
		r.Style = "dramatic"
	}
	if r.SceneCount == 0 {
		r.SceneCount = 5
	}
	if r.DurationSeconds == 0 {
		r.DurationSeconds = 60
	}
}

func (r *CreateStoryRequest) validate(maxScenes int) validate.Errors {
	var errs validate.Errors
	if r.TextRaw == "" {
		errs = errs.Required("text_raw")
	}
	if r.Language != "ja" && r.Language != "en" {
		errs = errs.Invalid("language", "language must be \"ja\" or \"en\"")
	}
	if !models.IsValidStyle(r.Style) {
		errs = errs.Invalid("style", "unknown style \""+r.Style+"\"")
	}
	if r.SceneCount < 1 || r.SceneCount > maxScenes {
		errs = errs.OutOfRange("scene_count", 1, maxScenes)
	}
	if r.DurationSeconds < 10 || r.DurationSeconds > 600 {
		errs = errs.OutOfRange("duration_seconds", 10, 600)
	}
	return errs
}

// maxScenesFor returns the per-plan scene-count cap.
func (h *Handler) maxScenesFor(uid uuid.UUID) int {
	var user models.User
	if err := h.DB.First(&user, "uid = ?", uid).Error; err == nil && user.IsSubscribed() {
		return MaxSceneCount
	}
	return FreeMaxSceneCount
}

func (h *Handler) CreateStory(c *gin.Context) {
	uid := auth.UID(c)

	var req CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, http.StatusBadRequest, httpx.CodeValidation, err.Error())
		return
	}
	req.normalize()
	if errs := req.validate(h.maxScenesFor(uid)); errs.HasErrors() {
		httpx.ValidationError(c, errs)
		return
	}

	story := models.Story{
		UID:             uid,
		Title:           req.Title,
		TextRaw:         req.TextRaw,
		Language:        req.Language,
		Style:           req.Style,
		SceneCount:      req.SceneCount,
		DurationSeconds: req.DurationSeconds,
		Status:          models.StoryStatusDraft,
	}
	if err := h.DB.Create(&story).Error; err != nil {
		httpx.Internal(c, err)
		return
	}

	c.JSON(http.StatusCreated, story)
}

func (h *Handler) ListStories(c *gin.Context) {
	uid := auth.UID(c)

	var stories []models.Story
	if err := h.DB.Where("uid = ?", uid).Order("created_at DESC").Find(&stories).Error; err != nil {
		httpx.Internal(c, err)
		return
	}

	c.JSON(http.StatusOK, stories)
}

// getOwnedStory loads a story enforcing uid scoping; ownership misses
// surface as 404, never revealing another user's rows.
func (h *Handler) getOwnedStory(c *gin.Context) (*models.Story, bool) {
	storyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpx.Error(c, http.StatusBadRequest, httpx.CodeValidation, "invalid story ID")
		return nil, false
	}

	uid := auth.UID(c)
	var story models.Story
	if err := h.DB.First(&story, "id = ? AND uid = ?", storyID, uid).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			httpx.NotFound(c, "story")
		} else {
			httpx.Internal(c, err)
		}
		return nil, false
	}
	return &story, true
}

func (h *Handler) GetStory(c *gin.Context) {
	story, ok := h.getOwnedStory(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, story)
}

type UpdateStoryRequest struct {
	Title   *string `json:"title"`
	TextRaw *string `json:"text_raw"`
}

func (h *Handler) UpdateStory(c *gin.Context) {
	story, ok := h.getOwnedStory(c)
	if !ok {
		return
	}

	var req UpdateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, http.StatusBadRequest, httpx.CodeValidation, err.Error())
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.TextRaw != nil {
		if *req.TextRaw == "" {
			var errs validate.Errors
			httpx.ValidationError(c, errs.Required("text_raw"))
			return
		}
		updates["text_raw"] = *req.TextRaw
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, story)
		return
	}

	if err := h.DB.Model(story).Updates(updates).Error; err != nil {
		httpx.Internal(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *Handler) DeleteStory(c *gin.Context) {
	story, ok := h.getOwnedStory(c)
	if !ok {
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("story_id = ?", story.ID).Delete(&models.Workflow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("story_id = ?", story.ID).Delete(&models.Video{}).Error; err != nil {
			return err
		}
		return tx.Delete(story).Error
	})
	if err != nil {
		httpx.Internal(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// CopyStory duplicates a story for re-editing, resetting its lifecycle.
func (h *Handler) CopyStory(c *gin.Context) {
	story, ok := h.getOwnedStory(c)
	if !ok {
		return
	}

	copied := models.Story{
		UID:             story.UID,
		Title:           story.Title + " (copy)",
		TextRaw:         story.TextRaw,
		Language:        story.Language,
		Style:           story.Style,
		SceneCount:      story.SceneCount,
		DurationSeconds: story.DurationSeconds,
		Status:          models.StoryStatusDraft,
	}
	if err := h.DB.Create(&copied).Error; err != nil {
		httpx.Internal(c, err)
		return
	}

	c.JSON(http.StatusCreated, copied)
}

type GenerateScriptRequest struct {
	SceneTitleHints []string `json:"scene_title_hints"`
}

// GenerateScript produces a script outside the workflow wizard. With
// DIRECT_SCRIPT_GENERATION on it runs inline and returns the script;
// otherwise the story is queued for the worker and polled via GET.
func (h *Handler) GenerateScript(c *gin.Context) {
	story, ok := h.getOwnedStory(c)
	if !ok {
		return
	}

	var req GenerateScriptRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.Error(c, http.StatusBadRequest, httpx.CodeValidation, err.Error())
			return
		}
	}

	if !h.Config.DirectScriptGeneration {
		payload, err := tasks.Marshal(tasks.ScriptTaskPayload{
			StoryID:         story.ID,
			SceneTitleHints: req.SceneTitleHints,
		})
		if err != nil {
			httpx.Internal(c, err)
			return
		}
		if err := h.Redis.LPush(c.Request.Context(), tasks.QueueScriptGeneration, payload).Err(); err != nil {
			log.Error().Err(err).Str("story_id", story.ID.String()).Msg("failed to enqueue script generation")
			httpx.Internal(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"story_id": story.ID, "status": story.Status})
		return
	}

	script := h.Generator.GenerateScript(c.Request.Context(), generation.Request{
		Text:            story.TextRaw,
		Style:           story.Style,
		Language:        story.Language,
		SceneCount:      story.SceneCount,
		DurationSeconds: story.DurationSeconds,
		SceneTitleHints: req.SceneTitleHints,
	})

	encoded, err := json.Marshal(script)
	if err != nil {
		httpx.Internal(c, err)
		return
	}

	if err := h.DB.Model(story).Updates(map[string]interface{}{
		"script": encoded,
		"beats":  len(script.Beats),
		"title":  script.Title,
		"status": models.StoryStatusScriptGenerated,
	}).Error; err != nil {
		httpx.Internal(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"story_id": story.ID,
		"status":   models.StoryStatusScriptGenerated,
		"script":   script,
	})
}

// GenerateVideo creates a render job for the story. Idempotent: an existing
// completed or still-pending video is returned instead of creating a
// duplicate.
func (h *Handler) GenerateVideo(c *gin.Context) {
	story, ok := h.getOwnedStory(c)
	if !ok {
		return
	}

	if len(story.Script) == 0 {
		var errs validate.Errors
		httpx.ValidationError(c, errs.Invalid("script", "story has no generated script yet"))
		return
	}

	// Idempotence check
	var existing models.Video
	err := h.DB.Where("story_id = ? AND uid = ? AND status IN ?",
		story.ID, story.UID,
		[]string{models.VideoStatusQueued, models.VideoStatusProcessing, models.VideoStatusCompleted}).
		Order("created_at DESC").First(&existing).Error
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"video_id": existing.ID, "status": existing.Status, "existing": true})
		return
	}
	if err != gorm.ErrRecordNotFound {
		httpx.Internal(c, err)
		return
	}

	// Free plan allows one render job in flight at a time, across stories
	if h.maxScenesFor(story.UID) == FreeMaxSceneCount {
		var pending int64
		if err := h.DB.Model(&models.Video{}).
			Where("uid = ? AND status IN ?", story.UID,
				[]string{models.VideoStatusQueued, models.VideoStatusProcessing}).
			Count(&pending).Error; err != nil {
			httpx.Internal(c, err)
			return
		}
		if pending > 0 {
			httpx.Error(c, http.StatusTooManyRequests, httpx.CodeRateLimit,
				"free plan allows one video render at a time")
			return
		}
	}

	video := models.Video{
		StoryID: story.ID,
		UID:     story.UID,
		Status:  models.VideoStatusQueued,
	}
	if err := h.DB.Create(&video).Error; err != nil {
		httpx.Internal(c, err)
		return
	}

	// Dispatch happens out of band; the handler returns immediately
	payload, err := tasks.Marshal(tasks.RenderTaskPayload{VideoID: video.ID})
	if err != nil {
		httpx.Internal(c, err)
		return
	}
	if err := h.Redis.LPush(c.Request.Context(), tasks.QueueRenderDispatch, payload).Err(); err != nil {
		log.Error().Err(err).Str("video_id", video.ID.String()).Msg("failed to enqueue render dispatch")
		httpx.Internal(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"video_id": video.ID, "status": video.Status})
}
