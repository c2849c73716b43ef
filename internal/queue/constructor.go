package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
)

type taskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer schedules publish jobs on the asynq queue.
type Enqueuer struct {
	client   taskClient
	maxRetry int
	timeout  time.Duration
}

func NewEnqueuer(client *asynq.Client, p config.Publishing) *Enqueuer {
	return &Enqueuer{
		client:   client,
		maxRetry: p.JobMaxRetry,
		timeout:  p.JobTimeout,
	}
}

// EnqueuePublish schedules req to run after delay. The request id doubles as the
// task id, so submitting the same request twice is a no-op.
func (e *Enqueuer) EnqueuePublish(ctx context.Context, req *models.PublishRequest, delay time.Duration) error {
	taskPayload, err := json.Marshal(NewPublishPostPayload(req))
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishPost, taskPayload)

	opts := []asynq.Option{
		asynq.ProcessIn(delay),
		asynq.MaxRetry(e.maxRetry),
	}
	if req.RequestID != "" {
		opts = append(opts, asynq.TaskID(req.RequestID))
	}
	if e.timeout > 0 {
		opts = append(opts, asynq.Timeout(e.timeout))
	}

	info, err := e.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		slog.Info("publish task already enqueued", "request_id", req.RequestID)
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("task scheduled", "task_id", info.ID, "queue", info.Queue, "request_id", req.RequestID, "delay", delay)
	return nil
}
