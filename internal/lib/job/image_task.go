package job

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// TaskImageCleanup is the task type that retries deleting a stored image.
const TaskImageCleanup = "image:cleanup"

type ImageCleanupPayload struct {
	Reference string `json:"reference"`
}

// NewImageCleanupTask builds the task: up to 5 retries on the low queue.
func NewImageCleanupTask(reference string) (*asynq.Task, error) {
	payload, err := json.Marshal(ImageCleanupPayload{Reference: reference})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskImageCleanup,
		payload,
		asynq.MaxRetry(5),
		asynq.Queue(QueueLow),
		asynq.Timeout(time.Minute),
	), nil
}
