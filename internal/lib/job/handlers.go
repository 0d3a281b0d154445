package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

var errEmailDisabled = errors.New("email provider not configured")

func (j *JobService) handleWelcomeEmailTask(ctx context.Context, t *asynq.Task) error {
	var p WelcomeEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal welcome email payload: %w: %w", err, asynq.SkipRetry)
	}

	if j.emails == nil {
		return fmt.Errorf("%w: %w", errEmailDisabled, asynq.SkipRetry)
	}

	j.logger.Info().
		Str("type", "welcome").
		Str("to", p.To).
		Msg("Processing welcome email task")

	if err := j.emails.SendWelcomeEmail(ctx, p.To, p.FullName, p.Username); err != nil {
		j.logger.Error().
			Str("type", "welcome").
			Str("to", p.To).
			Err(err).
			Msg("Failed to send welcome email")
		return err
	}

	j.logger.Info().
		Str("type", "welcome").
		Str("to", p.To).
		Msg("Successfully sent welcome email")

	return nil
}

func (j *JobService) handleImageCleanupTask(ctx context.Context, t *asynq.Task) error {
	var p ImageCleanupPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal image cleanup payload: %w: %w", err, asynq.SkipRetry)
	}

	if err := j.store.Delete(ctx, p.Reference); err != nil {
		j.logger.Warn().Err(err).Str("image", p.Reference).Msg("image cleanup failed")
		return err
	}

	j.logger.Info().Str("image", p.Reference).Msg("image cleaned up")
	return nil
}
