package instagram

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
	DefaultGraphURL = "https://graph.instagram.com/v21.0"
	maxCarousel     = 10
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
		cfg.Poll = platform.PollConfig{Interval: 2 * time.Second, MaxAttempts: 60, Timeout: 10 * time.Minute}
	}
	return &Client{
		cfg: cfg,
		caller: &platform.Caller{
			Provider: models.ProviderInstagram,
			HTTP:     cfg.HTTPClient,
			Limiter:  cfg.Limiter,
		},
	}
}

func (c *Client) Provider() models.Provider {
	return models.ProviderInstagram
}

// Publish creates a media container (or a carousel of them), waits until
// Instagram has fetched and processed the media, then publishes it.
func (c *Client) Publish(ctx context.Context, creds platform.Credentials, content platform.Content) (*platform.Result, error) {
	switch n := len(content.Media); {
	case n == 0:
		return nil, fmt.Errorf("instagram: %w", platform.ErrMediaRequired)
	case n > maxCarousel:
		return nil, fmt.Errorf("instagram: %w: at most %d items", platform.ErrTooManyMedia, maxCarousel)
	}
	for _, m := range content.Media {
		if m.URL == "" {
			return nil, fmt.Errorf("instagram: media %s has no public url", m.Key)
		}
		if !m.IsImage() && !m.IsVideo() {
			return nil, fmt.Errorf("%w: %q", platform.ErrUnsupportedMedia, m.ContentType)
		}
	}

	var containerID string
	var err error
	if len(content.Media) == 1 {
		containerID, err = c.createContainer(ctx, creds, singlePayload(content.Media[0], content.Text))
	} else {
		containerID, err = c.createCarousel(ctx, creds, content)
	}
	if err != nil {
		return nil, err
	}

	if err := c.waitForContainer(ctx, creds, containerID); err != nil {
		return nil, fmt.Errorf("instagram container %s: %w", containerID, err)
	}

	return c.publishContainer(ctx, creds, containerID)
}

func singlePayload(m platform.Media, caption string) map[string]interface{} {
	payload := map[string]interface{}{"caption": caption}
	if m.IsVideo() {
		payload["media_type"] = "REELS"
		payload["video_url"] = m.URL
	} else {
		payload["image_url"] = m.URL
	}
	return payload
}

func (c *Client) createCarousel(ctx context.Context, creds platform.Credentials, content platform.Content) (string, error) {
	children := make([]string, 0, len(content.Media))
	for _, m := range content.Media {
		payload := map[string]interface{}{"is_carousel_item": true}
		if m.IsVideo() {
			payload["media_type"] = "VIDEO"
			payload["video_url"] = m.URL
		} else {
			payload["image_url"] = m.URL
		}

		childID, err := c.createContainer(ctx, creds, payload)
		if err != nil {
			return "", fmt.Errorf("carousel item %s: %w", m.Key, err)
		}
		if err := c.waitForContainer(ctx, creds, childID); err != nil {
			return "", fmt.Errorf("carousel item %s: %w", m.Key, err)
		}
		children = append(children, childID)
	}

	return c.createContainer(ctx, creds, map[string]interface{}{
		"media_type": "CAROUSEL",
		"caption":    content.Text,
		"children":   strings.Join(children, ","),
	})
}

func (c *Client) createContainer(ctx context.Context, creds platform.Credentials, payload map[string]interface{}) (string, error) {
	payload["access_token"] = creds.AccessToken

	req, err := platform.JSON(ctx, http.MethodPost, fmt.Sprintf("%s/%s/media", c.cfg.GraphURL, creds.AccountID), payload)
	if err != nil {
		return "", err
	}

	var result transfer.GraphID
	if _, err := c.caller.Do(req, &result); err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("no media ID returned from Instagram")
	}
	return result.ID, nil
}

func (c *Client) waitForContainer(ctx context.Context, creds platform.Credentials, containerID string) error {
	q := url.Values{"fields": {"status,status_code"}, "access_token": {creds.AccessToken}}
	statusURL := fmt.Sprintf("%s/%s?%s", c.cfg.GraphURL, containerID, q.Encode())

	return platform.Poll(ctx, c.cfg.Poll, func(ctx context.Context) (bool, time.Duration, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return false, 0, err
		}
		var status transfer.InstagramContainerStatus
		if _, err := c.caller.Do(req, &status); err != nil {
			return false, 0, err
		}

		switch status.StatusCode {
		case "FINISHED", "PUBLISHED":
			return true, 0, nil
		case "ERROR", "EXPIRED":
			return false, 0, fmt.Errorf("%w: %s %s", platform.ErrProcessingFailed, status.StatusCode, status.Status)
		}
		return false, 0, nil
	})
}

func (c *Client) publishContainer(ctx context.Context, creds platform.Credentials, containerID string) (*platform.Result, error) {
	payload := map[string]string{
		"creation_id":  containerID,
		"access_token": creds.AccessToken,
	}
	req, err := platform.JSON(ctx, http.MethodPost, fmt.Sprintf("%s/%s/media_publish", c.cfg.GraphURL, creds.AccountID), payload)
	if err != nil {
		return nil, err
	}

	var result transfer.GraphID
	if _, err := c.caller.Do(req, &result); err != nil {
		return nil, fmt.Errorf("publish container: %w", err)
	}
	if result.ID == "" {
		return nil, fmt.Errorf("no post ID returned from Instagram")
	}
	return &platform.Result{PostID: result.ID}, nil
}
