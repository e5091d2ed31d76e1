package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/akibsystems/showgeki2-sub004/admin"
	"github.com/akibsystems/showgeki2-sub004/auth"
	"github.com/akibsystems/showgeki2-sub004/billing"
	"github.com/akibsystems/showgeki2-sub004/generation"
	"github.com/akibsystems/showgeki2-sub004/internal/config"
	"github.com/akibsystems/showgeki2-sub004/internal/platform"
	"github.com/akibsystems/showgeki2-sub004/render"
	"github.com/akibsystems/showgeki2-sub004/stories"
	"github.com/akibsystems/showgeki2-sub004/workflow"
)

type Server struct {
	Config  *config.Config
	DB      *gorm.DB
	Redis   *redis.Client
	Router  *gin.Engine
	Metrics *generation.Metrics
}

func NewServer(cfg *config.Config) (*Server, error) {
	db := platform.NewDBConnection(cfg)
	rdb := platform.NewRedisClient(cfg)

	router := gin.New()
	router.Use(gin.Recovery())

	// CORS for the frontend
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", cfg.FrontendURL)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, X-User-UID, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	server := &Server{
		Config:  cfg,
		DB:      db,
		Redis:   rdb,
		Router:  router,
		Metrics: generation.NewMetrics(),
	}

	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	cfg := s.Config
	generator := generation.NewClient(cfg, s.Metrics)
	dispatcher := render.NewDispatcher(cfg)
	storage := render.NewStorageClient(cfg)

	authHandler := auth.NewHandler(s.DB, cfg)
	storyHandler := stories.NewHandler(s.DB, s.Redis, generator, cfg)
	workflowHandler := workflow.NewHandler(s.DB, s.Redis, generator, dispatcher, cfg)
	renderHandler := render.NewHandler(s.DB, cfg)
	adminHandler := admin.NewHandler(s.DB, storage)
	billingHandler := billing.NewHandler(s.DB, cfg)

	// Health check (no auth required)
	s.Router.GET("/health", func(c *gin.Context) {
		sqlDB, err := s.DB.DB()
		if err != nil {
			c.JSON(500, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		if err := sqlDB.Ping(); err != nil {
			c.JSON(500, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}

		c.JSON(200, gin.H{
			"status":     "healthy",
			"database":   "connected",
			"generation": s.Metrics.Snapshot(),
		})
	})

	s.Router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "Tokyo Shakespeare Studio API v1"})
	})

	// Webhook routes (public - no user auth, verified in the handlers)
	webhookRoutes := s.Router.Group("/webhooks")
	{
		webhookRoutes.POST("/stripe", billingHandler.HandleStripeWebhook)
	}
	// Renderer callback, authenticated by the shared webhook secret
	s.Router.POST("/api/videos/callback", renderHandler.HandleCallback)

	// Auth routes (public - no auth middleware)
	authRoutes := s.Router.Group("/auth")
	{
		authRoutes.GET("/google", authHandler.InitiateGoogleLogin)
		authRoutes.GET("/google/callback", authHandler.GoogleCallback)
		authRoutes.POST("/logout", authHandler.Logout)

		authRoutes.GET("/me", auth.Middleware(s.DB, cfg), authHandler.GetCurrentUser)
	}

	// Protected routes that require authentication
	protected := s.Router.Group("/api")
	protected.Use(auth.Middleware(s.DB, cfg))
	{
		storyRoutes := protected.Group("/stories")
		{
			storyRoutes.POST("", storyHandler.CreateStory)
			storyRoutes.GET("", storyHandler.ListStories)
			storyRoutes.GET("/:id", storyHandler.GetStory)
			storyRoutes.PUT("/:id", storyHandler.UpdateStory)
			storyRoutes.DELETE("/:id", storyHandler.DeleteStory)
			storyRoutes.POST("/:id/copy", storyHandler.CopyStory)
			storyRoutes.POST("/:id/generate-script", storyHandler.GenerateScript)
			storyRoutes.POST("/:id/generate-video", storyHandler.GenerateVideo)
			storyRoutes.GET("/:id/videos", storyHandler.ListStoryVideos)
		}

		protected.GET("/videos/:id/status", storyHandler.VideoStatus)

		workflowRoutes := protected.Group("/workflow")
		{
			workflowRoutes.POST("", workflowHandler.CreateWorkflow)
			workflowRoutes.POST("/instant", workflowHandler.InstantGenerate)
			workflowRoutes.GET("/:id", workflowHandler.GetWorkflow)
			workflowRoutes.GET("/:id/status", workflowHandler.WorkflowStatus)
			workflowRoutes.POST("/:id/step/:step", workflowHandler.SubmitStep)
			workflowRoutes.POST("/:id/preview-images", workflowHandler.PreviewImages)
			workflowRoutes.GET("/:id/faces", workflowHandler.ListFaces)
			workflowRoutes.PUT("/:id/faces/:faceId", workflowHandler.TagFace)
		}

		protected.GET("/generation/stats", func(c *gin.Context) {
			c.JSON(http.StatusOK, s.Metrics.Snapshot())
		})

		adminRoutes := protected.Group("/admin")
		adminRoutes.Use(auth.AdminMiddleware(s.DB, cfg))
		{
			adminRoutes.GET("/videos", adminHandler.ListVideos)
			adminRoutes.DELETE("/videos", adminHandler.DeleteVideos)
			adminRoutes.GET("/users", adminHandler.ListUsers)
		}
	}
}

func (s *Server) Run() error {
	log.Info().Str("port", s.Config.Port).Msg("server starting")
	return s.Router.Run(":" + s.Config.Port)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	platform.SetupLogger(cfg.LogLevel)

	server, err := NewServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}

	if err := server.Run(); err != nil {
		log.Fatal().Err(err).Msg("failed to run server")
	}
}
