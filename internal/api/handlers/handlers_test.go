package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/notify"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePostService struct {
	service.PostService
	created *transfer.PostCreation
	staged  int
	err     error
}

func (f *fakePostService) CreatePost(_ context.Context, _ int64, pc *transfer.PostCreation) (*transfer.PostCreated, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = pc
	return &transfer.PostCreated{RequestID: "req-1", ScheduledAt: time.Unix(0, 0).UTC()}, nil
}

func (f *fakePostService) StageMedia(_ context.Context, _ int64, files []*multipart.FileHeader) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.staged = len(files)
	keys := make([]string, len(files))
	for i := range files {
		keys[i] = fmt.Sprintf("media/%d.png", i)
	}
	return keys, nil
}

type fakeAccountService struct {
	service.AccountService
	disconnected []models.Provider
}

func (f *fakeAccountService) Disconnect(_ context.Context, _ int64, p models.Provider) error {
	if p != models.ProviderTwitter {
		return service.ErrAccountNotFound
	}
	f.disconnected = append(f.disconnected, p)
	return nil
}

type fakePlatformService struct {
	service.PlatformService
	params url.Values
	err    error
}

func (f *fakePlatformService) Callback(_ context.Context, _ models.Provider, params url.Values) (int64, error) {
	f.params = params
	return 1, f.err
}

func withUser(c *fiber.Ctx) error {
	c.Locals("user_id", "1")
	return c.Next()
}

func TestPostHandler_CreatePost(t *testing.T) {
	svc := &fakePostService{}
	app := fiber.New()
	app.Post("/api/posts", withUser, NewPostHandler(svc).CreatePost)

	req := httptest.NewRequest("POST", "/api/posts", strings.NewReader(`{"text":"hi","providers":["twitter","linkedin"]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var created transfer.PostCreated
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "req-1", created.RequestID)
	assert.Equal(t, []string{"twitter", "linkedin"}, svc.created.Providers)

	svc.err = fmt.Errorf("%w: text or media is required", service.ErrValidation)
	req = httptest.NewRequest("POST", "/api/posts", strings.NewReader(`{"providers":["twitter"]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	svc.err = fmt.Errorf("enqueue: dial tcp 10.0.0.1:6379")
	req = httptest.NewRequest("POST", "/api/posts", strings.NewReader(`{"text":"x","providers":["twitter"]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), "10.0.0.1")
}

func TestPostHandler_UploadMedia(t *testing.T) {
	svc := &fakePostService{}
	app := fiber.New()
	app.Post("/api/media", withUser, NewPostHandler(svc).UploadMedia)

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for i := 0; i < 2; i++ {
		part, err := w.CreateFormFile("files", fmt.Sprintf("f%d.png", i))
		require.NoError(t, err)
		_, _ = part.Write([]byte("data"))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/media", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var staged transfer.MediaStaged
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&staged))
	assert.Equal(t, []string{"media/0.png", "media/1.png"}, staged.Keys)
	assert.Equal(t, 2, svc.staged)
}

func TestPlatformHandler(t *testing.T) {
	accounts := &fakeAccountService{}
	platforms := &fakePlatformService{}
	h := NewPlatformHandler(platforms, accounts, config.Config{FrontendURL: "https://app.example.com"})

	app := fiber.New()
	app.Delete("/api/accounts/:platform", withUser, h.DeleteSocialAccount)
	app.Get("/auth/:platform/callback", h.CallbackHandler)

	resp, err := app.Test(httptest.NewRequest("DELETE", "/api/accounts/twitter", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("DELETE", "/api/accounts/linkedin", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("DELETE", "/api/accounts/myspace", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/auth/linkedin/callback?code=abc&state=xyz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "https://app.example.com/dashboard/accounts?connected=linkedin", resp.Header.Get("Location"))
	assert.Equal(t, "abc", platforms.params.Get("code"))
	assert.Equal(t, "xyz", platforms.params.Get("state"))

	platforms.err = fmt.Errorf("connect linkedin: %w", repository.ErrAccountExists)
	resp, err = app.Test(httptest.NewRequest("GET", "/auth/linkedin/callback?code=abc&state=xyz", nil))
	require.NoError(t, err)
	assert.Contains(t, resp.Header.Get("Location"), "error=already_connected")
}

type fakeNotificationService struct {
	service.NotificationService
	read []int64
}

func (f *fakeNotificationService) List(_ context.Context, _ int64, unreadOnly bool) ([]*models.Notification, error) {
	return []*models.Notification{{ID: 1, Message: "Post published on twitter", IsRead: !unreadOnly}}, nil
}

func (f *fakeNotificationService) MarkRead(_ context.Context, _ int64, id int64) error {
	if id != 1 {
		return service.ErrNotificationNotFound
	}
	f.read = append(f.read, id)
	return nil
}

func TestNotificationHandler(t *testing.T) {
	svc := &fakeNotificationService{}
	h := NewNotificationHandler(svc, nil)

	app := fiber.New()
	app.Get("/api/notifications", withUser, h.List)
	app.Post("/api/notifications/:id/read", withUser, h.MarkRead)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/notifications?unread=true", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var items []models.Notification
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.False(t, items[0].IsRead)

	resp, err = app.Test(httptest.NewRequest("POST", "/api/notifications/1/read", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []int64{1}, svc.read)

	resp, err = app.Test(httptest.NewRequest("POST", "/api/notifications/9/read", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("POST", "/api/notifications/abc/read", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestWriteSSE(t *testing.T) {
	events := make(chan notify.Envelope, 2)
	events <- notify.Envelope{Type: notify.EventPostPublished, Data: map[string]interface{}{"provider": "twitter"}, Timestamp: 1}
	events <- notify.Envelope{Type: notify.EventPostFailed, Data: map[string]interface{}{"provider": "linkedin"}, Timestamp: 2}
	close(events)

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	writeSSE(context.Background(), w, events, time.Hour)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, ": connected\n\n"))
	assert.Contains(t, out, "event: post.published\ndata: {")
	assert.Contains(t, out, "event: post.failed\ndata: {")
	assert.Equal(t, 2, strings.Count(out, "event: "))
}
