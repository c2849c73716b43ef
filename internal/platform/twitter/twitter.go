// Package twitter publishes tweets, uploading media through the chunked
// media/upload endpoint first. Every request is signed with OAuth1.
package twitter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/platform"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

const (
	DefaultUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
	DefaultAPIURL    = "https://api.twitter.com"
	DefaultChunkSize = 1024 * 1024

	maxImages = 4
)

type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	UploadURL      string
	APIURL         string
	ChunkSize      int
	Poll           platform.PollConfig
	// HTTPClient is the transport under the OAuth1 signer.
	HTTPClient *http.Client
}

type Client struct {
	cfg    Config
	oauth1 *oauth1.Config
}

func New(cfg Config) *Client {
	if cfg.UploadURL == "" {
		cfg.UploadURL = DefaultUploadURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Poll.MaxAttempts == 0 {
		cfg.Poll = platform.DefaultPollConfig()
	}
	return &Client{
		cfg:    cfg,
		oauth1: oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret),
	}
}

func (c *Client) Provider() models.Provider {
	return models.ProviderTwitter
}

// MediaCategory maps a sniffed MIME type to the upload category Twitter expects.
func MediaCategory(mime string) (string, error) {
	switch mime {
	case "image/gif":
		return "tweet_gif", nil
	case "image/jpeg", "image/png", "image/webp":
		return "tweet_image", nil
	case "video/mp4", "video/quicktime":
		return "tweet_video", nil
	}
	return "", fmt.Errorf("%w: %q", platform.ErrUnsupportedMedia, mime)
}

// checkMedia validates every item before anything is sent: at most four
// images, or exactly one video or GIF.
func checkMedia(media []platform.Media) ([]string, error) {
	categories := make([]string, len(media))
	var images, others int
	for i, m := range media {
		category, err := MediaCategory(m.ContentType)
		if err != nil {
			return nil, err
		}
		categories[i] = category
		if category == "tweet_image" {
			images++
		} else {
			others++
		}
	}
	if others > 1 || (others == 1 && images > 0) {
		return nil, fmt.Errorf("%w: a video or GIF must be the only attachment", platform.ErrTooManyMedia)
	}
	if images > maxImages {
		return nil, fmt.Errorf("%w: at most %d images", platform.ErrTooManyMedia, maxImages)
	}
	return categories, nil
}

func (c *Client) caller(ctx context.Context, creds platform.Credentials) *platform.Caller {
	if c.cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth1.HTTPClient, c.cfg.HTTPClient)
	}
	token := oauth1.NewToken(creds.AccessToken, creds.TokenSecret)
	return &platform.Caller{
		Provider: models.ProviderTwitter,
		HTTP:     c.oauth1.Client(ctx, token),
	}
}

func (c *Client) Publish(ctx context.Context, creds platform.Credentials, content platform.Content) (*platform.Result, error) {
	if content.Text == "" && len(content.Media) == 0 {
		return nil, fmt.Errorf("twitter: nothing to publish")
	}

	categories, err := checkMedia(content.Media)
	if err != nil {
		return nil, err
	}

	caller := c.caller(ctx, creds)

	mediaIDs := make([]string, 0, len(content.Media))
	for i, m := range content.Media {
		session, err := c.upload(ctx, caller, m, categories[i])
		if err != nil {
			return nil, fmt.Errorf("twitter media upload %s: %w", m.Key, err)
		}
		mediaIDs = append(mediaIDs, session.MediaID)
	}

	return c.tweet(ctx, caller, content.Text, mediaIDs)
}

// UploadMedia runs the full chunked upload for one item and returns the
// finished session.
func (c *Client) UploadMedia(ctx context.Context, creds platform.Credentials, m platform.Media) (*models.UploadSession, error) {
	category, err := MediaCategory(m.ContentType)
	if err != nil {
		return nil, err
	}
	return c.upload(ctx, c.caller(ctx, creds), m, category)
}

func (c *Client) upload(ctx context.Context, caller *platform.Caller, m platform.Media, category string) (*models.UploadSession, error) {
	session := models.NewUploadSession(len(m.Data))

	fail := func(err error) (*models.UploadSession, error) {
		session.Advance(models.UploadFailed)
		return session, err
	}

	initResp, err := c.command(ctx, caller, url.Values{
		"command":        {"INIT"},
		"total_bytes":    {strconv.Itoa(len(m.Data))},
		"media_type":     {m.ContentType},
		"media_category": {category},
	})
	if err != nil {
		return fail(fmt.Errorf("init: %w", err))
	}
	session.MediaID = initResp.MediaIDString
	if session.MediaID == "" {
		session.MediaID = strconv.FormatInt(initResp.MediaID, 10)
	}

	if err := session.Advance(models.UploadAppending); err != nil {
		return fail(err)
	}
	for segment, offset := 0, 0; offset < len(m.Data); segment++ {
		end := offset + c.cfg.ChunkSize
		if end > len(m.Data) {
			end = len(m.Data)
		}
		if err := c.appendChunk(ctx, caller, session.MediaID, segment, m.Data[offset:end]); err != nil {
			return fail(fmt.Errorf("append segment %d: %w", segment, err))
		}
		session.Sent(end - offset)
		offset = end
	}

	if err := session.Advance(models.UploadFinalizing); err != nil {
		return fail(err)
	}
	finalizeResp, err := c.command(ctx, caller, url.Values{
		"command":  {"FINALIZE"},
		"media_id": {session.MediaID},
	})
	if err != nil {
		return fail(fmt.Errorf("finalize: %w", err))
	}

	if info := finalizeResp.ProcessingInfo; info != nil && info.State != "succeeded" {
		if info.State == "failed" {
			return fail(processingError(info))
		}
		if err := session.Advance(models.UploadProcessing); err != nil {
			return fail(err)
		}
		if err := c.waitForProcessing(ctx, caller, session.MediaID, info); err != nil {
			return fail(err)
		}
	}

	if err := session.Advance(models.UploadReady); err != nil {
		return fail(err)
	}
	slog.Debug("twitter media ready", "media_id", session.MediaID, "bytes", session.BytesSent)
	return session, nil
}

func (c *Client) command(ctx context.Context, caller *platform.Caller, form url.Values) (*transfer.TwitterMediaResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.UploadURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out transfer.TwitterMediaResponse
	if _, err := caller.Do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) appendChunk(ctx context.Context, caller *platform.Caller, mediaID string, segment int, chunk []byte) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, field := range [][2]string{
		{"command", "APPEND"},
		{"media_id", mediaID},
		{"segment_index", strconv.Itoa(segment)},
	} {
		if err := w.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}
	part, err := w.CreateFormFile("media", "blob")
	if err != nil {
		return err
	}
	if _, err := part.Write(chunk); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.UploadURL, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	_, err = caller.Do(req, nil)
	return err
}

func (c *Client) waitForProcessing(ctx context.Context, caller *platform.Caller, mediaID string, info *transfer.TwitterProcessingInfo) error {
	delay := time.Duration(info.CheckAfterSecs) * time.Second
	return platform.PollAfter(ctx, c.cfg.Poll, delay, func(ctx context.Context) (bool, time.Duration, error) {
		q := url.Values{"command": {"STATUS"}, "media_id": {mediaID}}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.UploadURL+"?"+q.Encode(), nil)
		if err != nil {
			return false, 0, err
		}
		var out transfer.TwitterMediaResponse
		if _, err := caller.Do(req, &out); err != nil {
			return false, 0, err
		}

		status := out.ProcessingInfo
		if status == nil {
			return true, 0, nil
		}
		switch status.State {
		case "succeeded":
			return true, 0, nil
		case "failed":
			return false, 0, processingError(status)
		}
		return false, time.Duration(status.CheckAfterSecs) * time.Second, nil
	})
}

func processingError(info *transfer.TwitterProcessingInfo) error {
	msg := "unknown error"
	if info.Error != nil {
		msg = info.Error.Message
	}
	return fmt.Errorf("%w: %s", platform.ErrProcessingFailed, msg)
}

func (c *Client) tweet(ctx context.Context, caller *platform.Caller, text string, mediaIDs []string) (*platform.Result, error) {
	payload := transfer.TweetRequest{Text: text}
	if len(mediaIDs) > 0 {
		payload.Media = &transfer.TweetMedia{MediaIDs: mediaIDs}
	}

	req, err := platform.JSON(ctx, http.MethodPost, c.cfg.APIURL+"/2/tweets", payload)
	if err != nil {
		return nil, err
	}

	var out transfer.TweetResponse
	if _, err := caller.Do(req, &out); err != nil {
		return nil, fmt.Errorf("create tweet: %w", err)
	}
	if out.Data.ID == "" {
		return nil, fmt.Errorf("create tweet: no id returned")
	}

	return &platform.Result{
		PostID: out.Data.ID,
		URL:    "https://x.com/i/web/status/" + out.Data.ID,
	}, nil
}
