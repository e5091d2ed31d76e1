package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/akibsystems/showgeki2-sub004/generation"
	"github.com/akibsystems/showgeki2-sub004/internal/config"
	"github.com/akibsystems/showgeki2-sub004/internal/platform"
	"github.com/akibsystems/showgeki2-sub004/render"
	"github.com/akibsystems/showgeki2-sub004/tasks"
	"github.com/akibsystems/showgeki2-sub004/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	platform.SetupLogger(cfg.LogLevel)

	db := platform.NewDBConnection(cfg)
	rdb := platform.NewRedisClient(cfg)

	generator := generation.NewClient(cfg, generation.NewMetrics())
	dispatcher := render.NewDispatcher(cfg)

	processor := worker.NewProcessor(db, rdb, generator, dispatcher)
	processor.Register(tasks.QueueScriptGeneration, processor.HandleScriptGeneration)
	processor.Register(tasks.QueueRenderDispatch, processor.HandleRenderDispatch)
	processor.Register(tasks.QueuePreviewDispatch, processor.HandlePreviewDispatch)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	processor.Listen(ctx,
		tasks.QueueScriptGeneration,
		tasks.QueueRenderDispatch,
		tasks.QueuePreviewDispatch,
	)

	log.Info().Msg("worker stopped")
}
