package threads

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/platform"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"golang.org/x/time/rate"
)

const (
	DefaultGraphURL = "https://graph.threads.net/v1.0"
	maxCarousel     = 20
	maxTextLength   = 500
)

type Config struct {
	GraphURL   string
	Poll       platform.PollConfig
	Limiter    *rate.Limiter
	HTTPClient *http.Client
}

type Client struct {
	cfg    Config
	caller *platform.Caller
}

func New(cfg Config) *Client {
	if cfg.GraphURL == "" {
		cfg.GraphURL = DefaultGraphURL
	}
	if cfg.Poll.MaxAttempts == 0 {
		cfg.Poll = platform.DefaultPollConfig()
	}
	return &Client{
		cfg: cfg,
		caller: &platform.Caller{
			Provider: models.ProviderThreads,
			HTTP:     cfg.HTTPClient,
			Limiter:  cfg.Limiter,
		},
	}
}

func (c *Client) Provider() models.Provider {
	return models.ProviderThreads
}

func (c *Client) Publish(ctx context.Context, creds platform.Credentials, content platform.Content) (*platform.Result, error) {
	if content.Text == "" && len(content.Media) == 0 {
		return nil, fmt.Errorf("threads: nothing to publish")
	}
	if len([]rune(content.Text)) > maxTextLength {
		return nil, fmt.Errorf("threads: text longer than %d characters", maxTextLength)
	}
	if len(content.Media) > maxCarousel {
		return nil, fmt.Errorf("threads: %w: at most %d items", platform.ErrTooManyMedia, maxCarousel)
	}
	for _, m := range content.Media {
		if m.URL == "" {
			return nil, fmt.Errorf("threads: media %s has no public url", m.Key)
		}
		if !m.IsImage() && !m.IsVideo() {
			return nil, fmt.Errorf("%w: %q", platform.ErrUnsupportedMedia, m.ContentType)
		}
	}

	var containerID string
	var err error
	switch len(content.Media) {
	case 0:
		containerID, err = c.createContainer(ctx, creds, url.Values{"media_type": {"TEXT"}, "text": {content.Text}})
	case 1:
		form := mediaForm(content.Media[0])
		form.Set("text", content.Text)
		containerID, err = c.createContainer(ctx, creds, form)
	default:
		containerID, err = c.createCarousel(ctx, creds, content)
	}
	if err != nil {
		return nil, err
	}

	if err := c.waitForContainer(ctx, creds, containerID); err != nil {
		return nil, fmt.Errorf("threads container %s: %w", containerID, err)
	}

	return c.publishContainer(ctx, creds, containerID)
}

func mediaForm(m platform.Media) url.Values {
	if m.IsVideo() {
		return url.Values{"media_type": {"VIDEO"}, "video_url": {m.URL}}
	}
	return url.Values{"media_type": {"IMAGE"}, "image_url": {m.URL}}
}

func (c *Client) createCarousel(ctx context.Context, creds platform.Credentials, content platform.Content) (string, error) {
	children := make([]string, 0, len(content.Media))
	for _, m := range content.Media {
		form := mediaForm(m)
		form.Set("is_carousel_item", "true")
		childID, err := c.createContainer(ctx, creds, form)
		if err != nil {
			return "", fmt.Errorf("carousel item %s: %w", m.Key, err)
		}
		if err := c.waitForContainer(ctx, creds, childID); err != nil {
			return "", fmt.Errorf("carousel item %s: %w", m.Key, err)
		}
		children = append(children, childID)
	}

	return c.createContainer(ctx, creds, url.Values{
		"media_type": {"CAROUSEL"},
		"children":   {strings.Join(children, ",")},
		"text":       {content.Text},
	})
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_, err = c.caller.Do(req, out)
	return err
}

func (c *Client) createContainer(ctx context.Context, creds platform.Credentials, form url.Values) (string, error) {
	form.Set("access_token", creds.AccessToken)

	var result transfer.GraphID
	if err := c.post(ctx, fmt.Sprintf("%s/%s/threads", c.cfg.GraphURL, creds.AccountID), form, &result); err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("no container ID returned from Threads")
	}
	return result.ID, nil
}

func (c *Client) waitForContainer(ctx context.Context, creds platform.Credentials, containerID string) error {
	q := url.Values{"fields": {"status,error_message"}, "access_token": {creds.AccessToken}}
	statusURL := fmt.Sprintf("%s/%s?%s", c.cfg.GraphURL, containerID, q.Encode())

	return platform.Poll(ctx, c.cfg.Poll, func(ctx context.Context) (bool, time.Duration, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return false, 0, err
		}
		var status transfer.ThreadsContainerStatus
		if _, err := c.caller.Do(req, &status); err != nil {
			return false, 0, err
		}

		switch status.Status {
		case "FINISHED", "PUBLISHED":
			return true, 0, nil
		case "ERROR", "EXPIRED":
			return false, 0, fmt.Errorf("%w: %s %s", platform.ErrProcessingFailed, status.Status, status.ErrorMessage)
		}
		return false, 0, nil
	})
}

func (c *Client) publishContainer(ctx context.Context, creds platform.Credentials, containerID string) (*platform.Result, error) {
	form := url.Values{"creation_id": {containerID}, "access_token": {creds.AccessToken}}

	var result transfer.GraphID
	if err := c.post(ctx, fmt.Sprintf("%s/%s/threads_publish", c.cfg.GraphURL, creds.AccountID), form, &result); err != nil {
		return nil, fmt.Errorf("publish container: %w", err)
	}
	if result.ID == "" {
		return nil, fmt.Errorf("no post ID returned from Threads")
	}
	return &platform.Result{PostID: result.ID}, nil
}
