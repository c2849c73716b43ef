package threads

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/crosspost/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeThreads struct {
	mu         sync.Mutex
	containers []url.Values
	polls      map[string]int
	published  []string
	status     string
	errMessage string
}

func (f *fakeThreads) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v1.0/")
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/threads"):
		r.ParseForm()
		f.containers = append(f.containers, r.PostForm)
		fmt.Fprintf(w, `{"id":"t%d"}`, len(f.containers))
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/threads_publish"):
		r.ParseForm()
		f.published = append(f.published, r.PostForm.Get("creation_id"))
		w.Write([]byte(`{"id":"1801"}`))
	case r.Method == http.MethodGet:
		f.polls[path]++
		status := "FINISHED"
		if f.status != "" {
			status = f.status
		}
		fmt.Fprintf(w, `{"id":"%s","status":"%s","error_message":"%s"}`, path, status, f.errMessage)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, f *fakeThreads) *Client {
	f.polls = map[string]int{}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return New(Config{
		GraphURL: srv.URL + "/v1.0",
		Poll:     platform.PollConfig{Interval: time.Millisecond, MaxAttempts: 3, Timeout: time.Second},
	})
}

var creds = platform.Credentials{AccountID: "55", AccessToken: "th-token"}

func TestPublish_TextOnly(t *testing.T) {
	f := &fakeThreads{}
	res, err := newTestClient(t, f).Publish(context.Background(), creds, platform.Content{Text: "just words"})
	require.NoError(t, err)
	assert.Equal(t, "1801", res.PostID)

	require.Len(t, f.containers, 1)
	assert.Equal(t, "TEXT", f.containers[0].Get("media_type"))
	assert.Equal(t, "just words", f.containers[0].Get("text"))
	assert.Equal(t, "th-token", f.containers[0].Get("access_token"))
	assert.Equal(t, []string{"t1"}, f.published)
}

func TestPublish_Media(t *testing.T) {
	f := &fakeThreads{}
	content := platform.Content{Text: "clip", Media: []platform.Media{{Key: "v", ContentType: "video/mp4", URL: "https://cdn/v.mp4"}}}
	_, err := newTestClient(t, f).Publish(context.Background(), creds, content)
	require.NoError(t, err)
	assert.Equal(t, "VIDEO", f.containers[0].Get("media_type"))
	assert.Equal(t, "https://cdn/v.mp4", f.containers[0].Get("video_url"))
}

func TestPublish_Carousel(t *testing.T) {
	f := &fakeThreads{}
	content := platform.Content{Text: "set", Media: []platform.Media{
		{Key: "a", ContentType: "image/png", URL: "https://cdn/a.png"},
		{Key: "b", ContentType: "image/jpeg", URL: "https://cdn/b.jpg"},
	}}
	_, err := newTestClient(t, f).Publish(context.Background(), creds, content)
	require.NoError(t, err)

	require.Len(t, f.containers, 3)
	assert.Equal(t, "true", f.containers[0].Get("is_carousel_item"))
	assert.Equal(t, "IMAGE", f.containers[1].Get("media_type"))
	assert.Equal(t, "CAROUSEL", f.containers[2].Get("media_type"))
	assert.Equal(t, "t1,t2", f.containers[2].Get("children"))
	assert.Equal(t, []string{"t3"}, f.published)
}

func TestPublish_ContainerFailures(t *testing.T) {
	for _, status := range []string{"ERROR", "EXPIRED"} {
		t.Run(status, func(t *testing.T) {
			f := &fakeThreads{status: status, errMessage: "FAILED_DOWNLOADING_VIDEO"}
			_, err := newTestClient(t, f).Publish(context.Background(), creds, platform.Content{Text: "x"})
			assert.ErrorIs(t, err, platform.ErrProcessingFailed)
			assert.Contains(t, err.Error(), "FAILED_DOWNLOADING_VIDEO")
			assert.Empty(t, f.published)
		})
	}

	t.Run("in progress forever", func(t *testing.T) {
		f := &fakeThreads{status: "IN_PROGRESS"}
		_, err := newTestClient(t, f).Publish(context.Background(), creds, platform.Content{Text: "x"})
		assert.ErrorIs(t, err, platform.ErrProcessingTimeout)
		assert.Equal(t, 3, f.polls["t1"])
	})
}

func TestPublish_TextTooLong(t *testing.T) {
	f := &fakeThreads{}
	_, err := newTestClient(t, f).Publish(context.Background(), creds, platform.Content{Text: strings.Repeat("a", 501)})
	assert.Error(t, err)
	assert.Empty(t, f.containers)
}
