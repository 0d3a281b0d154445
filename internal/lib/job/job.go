// Package job provides background job processing using Asynq.
//
// Asynq is a Redis-backed job queue: tasks are enqueued with an
// asynq.Client and processed by the workers of an asynq.Server.
package job

import (
	"context"
	"fmt"

	"github.com/deppfellow/user-service/internal/config"
	"github.com/deppfellow/user-service/internal/lib/email"
	"github.com/deppfellow/user-service/internal/storage"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// enqueuer is the producer side of asynq.Client.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JobService enqueues and processes the service's background tasks.
type JobService struct {
	Client *asynq.Client

	queue  enqueuer
	server *asynq.Server
	logger *zerolog.Logger

	// Handler dependencies. emails is nil when no provider is configured.
	emails *email.Client
	store  storage.Store
}

// NewJobService creates the asynq client and server on the configured
// Redis. store is where image cleanup tasks delete from.
func NewJobService(logger *zerolog.Logger, cfg *config.Config, store storage.Store) *JobService {
	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Address}

	client := asynq.NewClient(redisOpt)

	// Out of 10 workers roughly 6 serve critical, 3 default and 1 low.
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
				QueueLow:      1,
			},
			Logger: newAsynqLogger(logger),
		},
	)

	return &JobService{
		Client: client,
		queue:  client,
		server: server,
		logger: logger,
		emails: email.NewClient(cfg, logger),
		store:  store,
	}
}

// Mux routes task types to their handlers.
func (j *JobService) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskWelcome, j.handleWelcomeEmailTask)
	mux.HandleFunc(TaskImageCleanup, j.handleImageCleanupTask)
	return mux
}

// Start launches the workers. It does not block.
func (j *JobService) Start() error {
	j.logger.Info().Msg("Starting background job server")

	if err := j.server.Start(j.Mux()); err != nil {
		return fmt.Errorf("failed to start job server: %w", err)
	}
	return nil
}

// Stop waits for running tasks and closes the client.
func (j *JobService) Stop() {
	j.logger.Info().Msg("Stopping background job server")
	j.server.Shutdown()
	if err := j.Client.Close(); err != nil {
		j.logger.Warn().Err(err).Msg("failed to close job client")
	}
}

// EmailEnabled reports whether welcome emails can be delivered.
func (j *JobService) EmailEnabled() bool {
	return j.emails != nil
}

// EnqueueWelcomeEmail queues the welcome email for a new account. It is a
// no-op when no email provider is configured.
func (j *JobService) EnqueueWelcomeEmail(ctx context.Context, to, fullName, username string) error {
	if !j.EmailEnabled() {
		return nil
	}

	task, err := NewWelcomeEmailTask(to, fullName, username)
	if err != nil {
		return err
	}

	info, err := j.queue.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue welcome email: %w", err)
	}

	j.logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Msg("welcome email enqueued")
	return nil
}

// ScheduleImageCleanup queues deletion of a stored image.
func (j *JobService) ScheduleImageCleanup(ctx context.Context, reference string) error {
	task, err := NewImageCleanupTask(reference)
	if err != nil {
		return err
	}

	info, err := j.queue.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue image cleanup: %w", err)
	}

	j.logger.Info().Str("task_id", info.ID).Str("image", reference).Msg("image cleanup scheduled")
	return nil
}
