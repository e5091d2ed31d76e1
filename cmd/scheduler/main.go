package main

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/akibsystems/showgeki2-sub004/internal/config"
	"github.com/akibsystems/showgeki2-sub004/internal/platform"
	"github.com/akibsystems/showgeki2-sub004/models"
	"github.com/akibsystems/showgeki2-sub004/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	platform.SetupLogger(cfg.LogLevel)

	db := platform.NewDBConnection(cfg)
	rdb := platform.NewRedisClient(cfg)
	ctx := context.Background()

	c := cron.New()

	// Sweep stuck videos back onto the render queue
	if _, err := c.AddFunc("@every 5m", func() {
		sweepStuckVideos(ctx, db, rdb, cfg)
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule video sweeper")
	}

	// Remove expired sessions
	if _, err := c.AddFunc("@hourly", func() {
		cleanupExpiredSessions(db)
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule session cleanup")
	}

	// Archive workflows that have been idle for 30 days
	if _, err := c.AddFunc("@daily", func() {
		archiveIdleWorkflows(db)
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule workflow archiver")
	}

	c.Start()
	defer c.Stop()

	log.Info().Msg("scheduler started")
	select {}
}

// sweepStuckVideos requeues videos that have sat in queued or processing
// past their deadlines. Each requeue bumps requeue_count; past the limit
// the video is marked error instead.
func sweepStuckVideos(ctx context.Context, db *gorm.DB, rdb *redis.Client, cfg *config.Config) {
	now := time.Now()

	var stuck []models.Video
	err := db.Where(
		"(status = ? AND updated_at < ?) OR (status = ? AND updated_at < ?)",
		models.VideoStatusQueued, now.Add(-cfg.QueuedDeadline),
		models.VideoStatusProcessing, now.Add(-cfg.ProcessingDeadline),
	).Find(&stuck).Error
	if err != nil {
		log.Error().Err(err).Msg("failed to query stuck videos")
		return
	}

	for _, video := range stuck {
		if video.RequeueCount >= cfg.RequeueMaxAttempts {
			db.Model(&video).Updates(map[string]interface{}{
				"status":    models.VideoStatusError,
				"error_msg": "render deadline exceeded",
			})
			log.Warn().
				Str("video_id", video.ID.String()).
				Int("requeue_count", video.RequeueCount).
				Msg("video exceeded requeue limit, marked error")
			continue
		}

		payload, err := tasks.Marshal(tasks.RenderTaskPayload{VideoID: video.ID})
		if err != nil {
			log.Error().Err(err).Str("video_id", video.ID.String()).Msg("failed to marshal requeue task")
			continue
		}

		err = db.Model(&video).Updates(map[string]interface{}{
			"status":        models.VideoStatusQueued,
			"requeue_count": video.RequeueCount + 1,
		}).Error
		if err != nil {
			log.Error().Err(err).Str("video_id", video.ID.String()).Msg("failed to update requeued video")
			continue
		}

		if err := rdb.LPush(ctx, tasks.QueueRenderDispatch, payload).Err(); err != nil {
			log.Error().Err(err).Str("video_id", video.ID.String()).Msg("failed to push requeue task")
			continue
		}

		log.Info().
			Str("video_id", video.ID.String()).
			Int("requeue_count", video.RequeueCount+1).
			Msg("requeued stuck video")
	}
}

func cleanupExpiredSessions(db *gorm.DB) {
	result := db.Where("expires_at < ?", time.Now()).Delete(&models.Session{})
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("failed to delete expired sessions")
		return
	}
	if result.RowsAffected > 0 {
		log.Info().Int64("count", result.RowsAffected).Msg("deleted expired sessions")
	}
}

func archiveIdleWorkflows(db *gorm.DB) {
	cutoff := time.Now().AddDate(0, 0, -30)
	result := db.Model(&models.Workflow{}).
		Where("status = ? AND updated_at < ?", models.WorkflowStatusActive, cutoff).
		Update("status", models.WorkflowStatusArchived)
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("failed to archive idle workflows")
		return
	}
	if result.RowsAffected > 0 {
		log.Info().Int64("count", result.RowsAffected).Msg("archived idle workflows")
	}
}
