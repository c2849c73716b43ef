package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	task *asynq.Task
	opts map[asynq.OptionType]interface{}
	err  error
}

func (f *fakeClient) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.task = task
	f.opts = map[asynq.OptionType]interface{}{}
	for _, o := range opts {
		f.opts[o.Type()] = o.Value()
	}
	return &asynq.TaskInfo{ID: "t1", Queue: "default"}, nil
}

type fakeOrchestrator struct {
	got     *models.PublishRequest
	results []models.PublishResult
	err     error
}

func (f *fakeOrchestrator) Publish(_ context.Context, req *models.PublishRequest) ([]models.PublishResult, error) {
	f.got = req
	return f.results, f.err
}

func TestEnqueuePublish(t *testing.T) {
	client := &fakeClient{}
	e := &Enqueuer{client: client, maxRetry: 3, timeout: 30 * time.Minute}

	req := &models.PublishRequest{
		RequestID: "3f1c7a2e-8a53-4c1a-9d0b-0a4f6f1f2b11",
		UserID:    9,
		Text:      "hello",
		MediaKeys: []string{"media/a.png"},
		Providers: []models.Provider{models.ProviderTwitter, models.ProviderThreads},
	}
	require.NoError(t, e.EnqueuePublish(context.Background(), req, 5*time.Minute))

	assert.Equal(t, TaskTypePublishPost, client.task.Type())
	assert.Equal(t, 5*time.Minute, client.opts[asynq.ProcessInOpt])
	assert.Equal(t, 3, client.opts[asynq.MaxRetryOpt])
	assert.Equal(t, req.RequestID, client.opts[asynq.TaskIDOpt])
	assert.Equal(t, 30*time.Minute, client.opts[asynq.TimeoutOpt])

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(client.task.Payload(), &raw))
	assert.Equal(t, "hello", raw["postText"])
	assert.Equal(t, float64(9), raw["userId"])
	assert.Equal(t, []interface{}{"twitter", "threads"}, raw["providers"])
	assert.NotContains(t, raw, "provider")

	t.Run("duplicate request id is not an error", func(t *testing.T) {
		e := &Enqueuer{client: &fakeClient{err: asynq.ErrTaskIDConflict}}
		assert.NoError(t, e.EnqueuePublish(context.Background(), req, 0))
	})

	t.Run("other errors surface", func(t *testing.T) {
		e := &Enqueuer{client: &fakeClient{err: errors.New("dial tcp: refused")}}
		assert.Error(t, e.EnqueuePublish(context.Background(), req, 0))
	})
}

func TestPayload_SingleProvider(t *testing.T) {
	var p PublishPostPayload
	require.NoError(t, json.Unmarshal([]byte(`{"request_id":"r1","provider":"linkedin","postText":"hi","mediaKeys":[],"userId":4}`), &p))

	req, err := p.Request()
	require.NoError(t, err)
	assert.Equal(t, []models.Provider{models.ProviderLinkedIn}, req.Providers)
	assert.Equal(t, int64(4), req.UserID)
	assert.Equal(t, "hi", req.Text)

	p.Provider = "friendster"
	_, err = p.Request()
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestPayload_StringUserID(t *testing.T) {
	var p PublishPostPayload
	require.NoError(t, json.Unmarshal([]byte(`{"provider":"twitter","postText":"hi","mediaKeys":[],"userId":"42"}`), &p))

	req, err := p.Request()
	require.NoError(t, err)
	assert.Equal(t, int64(42), req.UserID)
	assert.Equal(t, []models.Provider{models.ProviderTwitter}, req.Providers)

	var bad PublishPostPayload
	assert.Error(t, json.Unmarshal([]byte(`{"provider":"twitter","userId":"abc"}`), &bad))
}

func TestHandlePublishPostTask(t *testing.T) {
	payload := func(t *testing.T, p PublishPostPayload) *asynq.Task {
		data, err := json.Marshal(p)
		require.NoError(t, err)
		return asynq.NewTask(TaskTypePublishPost, data)
	}

	t.Run("provider failures do not fail the task", func(t *testing.T) {
		o := &fakeOrchestrator{results: []models.PublishResult{
			{Provider: models.ProviderTwitter, Status: models.PublishSuccess, Response: "1"},
			{Provider: models.ProviderLinkedIn, Status: models.PublishFailed, Error: "account not found"},
		}}
		q := NewQueue(o)

		err := q.HandlePublishPostTask(context.Background(), payload(t, PublishPostPayload{
			RequestID: "r1", Providers: []string{"twitter", "linkedin"}, PostText: "x", UserID: 1,
		}))
		require.NoError(t, err)
		assert.Equal(t, "r1", o.got.RequestID)
		assert.Len(t, o.got.Providers, 2)
	})

	t.Run("validation errors skip retry", func(t *testing.T) {
		o := &fakeOrchestrator{err: service.ErrValidation}
		err := NewQueue(o).HandlePublishPostTask(context.Background(), payload(t, PublishPostPayload{UserID: 1, Providers: []string{"twitter"}}))
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("unknown provider skips retry", func(t *testing.T) {
		o := &fakeOrchestrator{}
		err := NewQueue(o).HandlePublishPostTask(context.Background(), payload(t, PublishPostPayload{UserID: 1, Providers: []string{"orkut"}, PostText: "x"}))
		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.Nil(t, o.got)
	})

	t.Run("job without request id still gets one", func(t *testing.T) {
		o := &fakeOrchestrator{}
		task := asynq.NewTask(TaskTypePublishPost, []byte(`{"provider":"twitter","postText":"hi","mediaKeys":[],"userId":"42"}`))
		require.NoError(t, NewQueue(o).HandlePublishPostTask(context.Background(), task))
		require.NotNil(t, o.got)
		assert.NotEmpty(t, o.got.RequestID)
		assert.Equal(t, int64(42), o.got.UserID)
	})

	t.Run("malformed payload skips retry", func(t *testing.T) {
		err := NewQueue(&fakeOrchestrator{}).HandlePublishPostTask(context.Background(), asynq.NewTask(TaskTypePublishPost, []byte("{")))
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})
}
