package job

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// TaskWelcome is the task type of the welcome email.
const TaskWelcome = "email:welcome"

// WelcomeEmailPayload is the JSON payload of a welcome email task.
type WelcomeEmailPayload struct {
	To       string `json:"to"`
	FullName string `json:"full_name"`
	Username string `json:"username"`
}

// NewWelcomeEmailTask builds the task: up to 3 retries on the default
// queue, 30 seconds per attempt.
func NewWelcomeEmailTask(to, fullName, username string) (*asynq.Task, error) {
	payload, err := json.Marshal(WelcomeEmailPayload{
		To:       to,
		FullName: fullName,
		Username: username,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskWelcome,
		payload,
		asynq.MaxRetry(3),
		asynq.Queue(QueueDefault),
		asynq.Timeout(30*time.Second),
	), nil
}
