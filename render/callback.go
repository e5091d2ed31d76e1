package render

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/akibsystems/showgeki2-sub004/internal/config"
	"github.com/akibsystems/showgeki2-sub004/models"
	"github.com/akibsystems/showgeki2-sub004/pkg/httpx"
)

// Handler receives completion callbacks from the renderer.
type Handler struct {
	DB     *gorm.DB
	Secret string
}

func NewHandler(db *gorm.DB, cfg *config.Config) *Handler {
	return &Handler{DB: db, Secret: cfg.WebhookSecret}
}

// CallbackRequest is the renderer's report for a dispatched job.
type CallbackRequest struct {
	Type    string    `json:"type" binding:"required"`
	VideoID uuid.UUID `json:"video_id" binding:"required"`
	Status  string    `json:"status" binding:"required"`

	// video_generation results
	URL             string  `json:"url"`
	DurationSeconds float64 `json:"duration_seconds"`
	Resolution      string  `json:"resolution"`
	SizeBytes       int64   `json:"size_bytes"`
	StoragePath     string  `json:"storage_path"`
	ErrorMsg        string  `json:"error_msg"`

	// image_preview results
	WorkflowID uuid.UUID      `json:"workflow_id"`
	Faces      []FaceCallback `json:"faces"`
}

// FaceCallback is one detected face box from the preview pass.
type FaceCallback struct {
	ImagePath string `json:"image_path"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Tag       string `json:"tag"`
}

// HandleCallback processes POST /api/videos/callback. Authenticated by the
// shared webhook secret, not a user session.
func (h *Handler) HandleCallback(c *gin.Context) {
	if h.Secret != "" && c.GetHeader("X-Webhook-Secret") != h.Secret {
		httpx.Error(c, http.StatusUnauthorized, httpx.CodeAuthorization, "invalid webhook secret")
		return
	}

	var req CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, http.StatusBadRequest, httpx.CodeValidation, err.Error())
		return
	}

	var video models.Video
	if err := h.DB.First(&video, "id = ?", req.VideoID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			httpx.NotFound(c, "video")
		} else {
			httpx.Internal(c, err)
		}
		return
	}

	switch req.Type {
	case TypeVideoGeneration:
		h.applyVideoResult(c, &video, req)
	case TypeImagePreview:
		h.applyPreviewResult(c, &video, req)
	default:
		httpx.Error(c, http.StatusBadRequest, httpx.CodeValidation, "unknown callback type")
	}
}

func (h *Handler) applyVideoResult(c *gin.Context, video *models.Video, req CallbackRequest) {
	updates := map[string]interface{}{}

	switch req.Status {
	case models.VideoStatusProcessing:
		updates["status"] = models.VideoStatusProcessing
	case models.VideoStatusCompleted:
		updates["status"] = models.VideoStatusCompleted
		updates["url"] = req.URL
		updates["duration_seconds"] = req.DurationSeconds
		updates["resolution"] = req.Resolution
		updates["size_bytes"] = req.SizeBytes
		updates["storage_path"] = req.StoragePath
	case models.VideoStatusFailed, models.VideoStatusError:
		updates["status"] = models.VideoStatusFailed
		updates["error_msg"] = req.ErrorMsg
	default:
		httpx.Error(c, http.StatusBadRequest, httpx.CodeValidation, "unknown video status")
		return
	}

	if err := h.DB.Model(video).Updates(updates).Error; err != nil {
		httpx.Internal(c, err)
		return
	}

	// Keep the owning story's status in sync with the terminal states
	switch req.Status {
	case models.VideoStatusCompleted:
		h.DB.Model(&models.Story{}).Where("id = ?", video.StoryID).
			Update("status", models.StoryStatusCompleted)
	case models.VideoStatusFailed, models.VideoStatusError:
		h.DB.Model(&models.Story{}).Where("id = ?", video.StoryID).
			Update("status", models.StoryStatusError)
	}

	log.Info().
		Str("video_id", video.ID.String()).
		Str("status", req.Status).
		Msg("renderer callback applied")

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) applyPreviewResult(c *gin.Context, video *models.Video, req CallbackRequest) {
	if req.Status == models.VideoStatusFailed || req.Status == models.VideoStatusError {
		if err := h.DB.Model(video).Updates(map[string]interface{}{
			"preview_status": models.PreviewStatusFailed,
			"error_msg":      req.ErrorMsg,
		}).Error; err != nil {
			httpx.Internal(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		for _, f := range req.Faces {
			face := models.DetectedFace{
				WorkflowID: req.WorkflowID,
				UID:        video.UID,
				ImagePath:  f.ImagePath,
				X:          f.X,
				Y:          f.Y,
				Width:      f.Width,
				Height:     f.Height,
				Tag:        f.Tag,
			}
			if err := tx.Create(&face).Error; err != nil {
				return err
			}
		}
		return tx.Model(video).Update("preview_status", models.PreviewStatusReady).Error
	})
	if err != nil {
		httpx.Internal(c, err)
		return
	}

	log.Info().
		Str("video_id", video.ID.String()).
		Int("faces", len(req.Faces)).
		Msg("preview callback applied")

	c.JSON(http.StatusOK, gin.H{"received": true})
}
