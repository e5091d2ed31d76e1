// Package admin exposes the operator dashboard API. All routes run behind
// the admin middleware.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/akibsystems/showgeki2-sub004/models"
	"github.com/akibsystems/showgeki2-sub004/pkg/httpx"
	"github.com/akibsystems/showgeki2-sub004/render"
)

type Handler struct {
	DB      *gorm.DB
	Storage *render.StorageClient
}

func NewHandler(db *gorm.DB, storage *render.StorageClient) *Handler {
	return &Handler{DB: db, Storage: storage}
}

// VideoRow joins video, story and owner info for the dashboard list.
type VideoRow struct {
	models.Video
	StoryTitle string `json:"story_title"`
	OwnerEmail string `json:"owner_email"`
}

// ListVideos returns all videos across users, newest first.
func (h *Handler) ListVideos(c *gin.Context) {
	var rows []VideoRow
	err := h.DB.Table("videos").
		Select("videos.*, stories.title AS story_title, users.email AS owner_email").
		Joins("LEFT JOIN stories ON stories.id = videos.story_id").
		Joins("LEFT JOIN users ON users.uid = videos.uid").
		Order("videos.created_at DESC").
		Limit(500).
		Scan(&rows).Error
	if err != nil {
		httpx.Internal(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"videos": rows, "count": len(rows)})
}

type DeleteVideosRequest struct {
	VideoIDs []uuid.UUID `json:"video_ids" binding:"required,min=1"`
}

// DeleteVideos removes the storage object and the database row for each id.
// Partial storage failures are reported per id without aborting the batch.
func (h *Handler) DeleteVideos(c *gin.Context) {
	var req DeleteVideosRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, http.StatusBadRequest, httpx.CodeValidation, err.Error())
		return
	}

	deleted := 0
	storageErrors := map[string]string{}

	for _, id := range req.VideoIDs {
		var video models.Video
		if err := h.DB.First(&video, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				storageErrors[id.String()] = "video not found"
				continue
			}
			httpx.Internal(c, err)
			return
		}

		// Storage first; a failed storage delete still removes the row but
		// gets reported so an operator can clean up by hand
		if err := h.Storage.DeleteObject(c.Request.Context(), video.StoragePath); err != nil {
			log.Warn().Err(err).Str("video_id", id.String()).Msg("storage delete failed")
			storageErrors[id.String()] = err.Error()
		}

		if err := h.DB.Delete(&video).Error; err != nil {
			httpx.Internal(c, err)
			return
		}
		deleted++
	}

	c.JSON(http.StatusOK, gin.H{
		"deletedCount": deleted,
		"errors":       storageErrors,
	})
}

// ListUsers returns the user table for the dashboard.
func (h *Handler) ListUsers(c *gin.Context) {
	var users []models.User
	if err := h.DB.Order("created_at DESC").Limit(500).Find(&users).Error; err != nil {
		httpx.Internal(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}
