package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/service"
)

func (q *Queue) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypePublishPost, q.HandlePublishPostTask)
	return mux
}

// HandlePublishPostTask runs one publish request. Provider failures are part of
// the results and do not fail the task; malformed or invalid jobs are never
// retried.
func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	req, err := payload.Request()
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if req.RequestID == "" {
		req.RequestID = taskRequestID(ctx)
	}

	results, err := q.orchestrator.Publish(ctx, req)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Status == models.PublishFailed {
			failed++
		}
	}
	slog.Info("publish task done", "request_id", req.RequestID, "providers", len(results), "failed", failed)
	return nil
}

// taskRequestID groups the posts of a job enqueued without a request id.
func taskRequestID(ctx context.Context) string {
	if id, ok := asynq.GetTaskID(ctx); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
