package stories

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/akibsystems/showgeki2-sub004/auth"
	"github.com/akibsystems/showgeki2-sub004/models"
	"github.com/akibsystems/showgeki2-sub004/pkg/httpx"
)

// statusMessages is the static lookup the UI renders during polling.
var statusMessages = map[string]string{
	models.VideoStatusQueued:     "動画の生成を待っています...",
	models.VideoStatusProcessing: "動画を生成しています...",
	models.VideoStatusCompleted:  "動画が完成しました",
	models.VideoStatusFailed:     "動画の生成に失敗しました",
	models.VideoStatusError:      "エラーが発生しました",
}

// StatusMessage returns the UI message for a video status.
func StatusMessage(status string) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return "処理中です..."
}

// VideoStatus serves the polling endpoint. Purely read-only.
func (h *Handler) VideoStatus(c *gin.Context) {
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpx.Error(c, http.StatusBadRequest, httpx.CodeValidation, "invalid video ID")
		return
	}

	uid := auth.UID(c)
	var video models.Video
	if err := h.DB.First(&video, "id = ? AND uid = ?", videoID, uid).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			httpx.NotFound(c, "video")
		} else {
			httpx.Internal(c, err)
		}
		return
	}

	resp := gin.H{
		"video_id": video.ID,
		"status":   video.Status,
		"message":  StatusMessage(video.Status),
	}
	if video.Status == models.VideoStatusCompleted {
		resp["url"] = video.URL
		resp["duration_seconds"] = video.DurationSeconds
		resp["resolution"] = video.Resolution
		resp["size_bytes"] = video.SizeBytes
	}
	if video.Status == models.VideoStatusFailed || video.Status == models.VideoStatusError {
		resp["error_msg"] = video.ErrorMsg
	}
	if video.PreviewStatus != "" {
		resp["preview_status"] = video.PreviewStatus
	}

	c.JSON(http.StatusOK, resp)
}

// ListStoryVideos returns the render jobs for one owned story.
func (h *Handler) ListStoryVideos(c *gin.Context) {
	story, ok := h.getOwnedStory(c)
	if !ok {
		return
	}

	var videos []models.Video
	if err := h.DB.Where("story_id = ?", story.ID).Order("created_at DESC").Find(&videos).Error; err != nil {
		httpx.Internal(c, err)
		return
	}

	c.JSON(http.StatusOK, videos)
}
