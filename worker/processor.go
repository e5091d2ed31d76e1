package worker

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/akibsystems/showgeki2-sub004/generation"
	"github.com/akibsystems/showgeki2-sub004/render"
	"github.com/akibsystems/showgeki2-sub004/tasks"
)

// TaskHandler is a function that processes a task payload.
type TaskHandler func(ctx context.Context, payload string) error

// Processor holds dependencies and registered task handlers.
type Processor struct {
	DB         *gorm.DB
	RDB        *redis.Client
	Generator  *generation.Client
	Dispatcher *render.Dispatcher
	handlers   map[string]TaskHandler
}

// NewProcessor creates a new worker processor.
func NewProcessor(db *gorm.DB, rdb *redis.Client, gen *generation.Client, disp *render.Dispatcher) *Processor {
	return &Processor{
		DB:         db,
		RDB:        rdb,
		Generator:  gen,
		Dispatcher: disp,
		handlers:   make(map[string]TaskHandler),
	}
}

// Register maps a queue name (task type) to a handler function.
func (p *Processor) Register(queueName string, handler TaskHandler) {
	p.handlers[queueName] = handler
	log.Info().Str("queue", queueName).Msg("registered task handler")
}

// Enqueue is a helper to add a new task to a queue.
func (p *Processor) Enqueue(ctx context.Context, queueName string, payload interface{}) error {
	payloadStr, err := tasks.Marshal(payload)
	if err != nil {
		return err
	}
	return p.RDB.LPush(ctx, queueName, payloadStr).Err()
}

// Listen starts the worker, listening on all registered queues.
func (p *Processor) Listen(ctx context.Context, queueNames ...string) {
	log.Info().Strs("queues", queueNames).Msg("worker listening")

	for {
		// BRPop blocks until a task is available on any of the listed queues.
		result, err := p.RDB.BRPop(ctx, 0, queueNames...).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("error popping from queue")
			time.Sleep(1 * time.Second)
			continue
		}

		// result[0] is the queue name, result[1] is the payload
		queueName := result[0]
		payload := result[1]

		handler, ok := p.handlers[queueName]
		if !ok {
			log.Error().Str("queue", queueName).Msg("no handler registered for queue")
			continue
		}

		log.Info().Str("queue", queueName).Msg("received task")

		if err := handler(ctx, payload); err != nil {
			log.Error().Err(err).Str("queue", queueName).Msg("error processing task")
		}
	}
}
