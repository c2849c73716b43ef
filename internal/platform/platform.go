// Package platform defines what every provider client implements and the
// plumbing they share: media detection, bounded polling and HTTP error handling.
package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/h2non/filetype"
	ftypes "github.com/h2non/filetype/types"
	"github.com/maheshrc27/crosspost/internal/models"
)

var (
	ErrProcessingTimeout = errors.New("processing timeout")
	ErrProcessingFailed  = errors.New("processing failed")
	ErrUnsupportedMedia  = errors.New("unsupported media type")
	ErrTooManyMedia      = errors.New("too many media items")
	ErrMediaRequired     = errors.New("at least one media item is required")
)

// Credentials are the decrypted secrets of one connected account. They are
// built right before a publish call and must not outlive it.
type Credentials struct {
	AccountID   string
	AccessToken string
	// TokenSecret is only set for OAuth1 providers.
	TokenSecret string
}

type Media struct {
	Key         string
	Data        []byte
	ContentType string
	// URL is where providers that fetch media themselves can download it.
	URL string
}

func (m Media) IsVideo() bool {
	return strings.HasPrefix(m.ContentType, "video/")
}

func (m Media) IsImage() bool {
	return strings.HasPrefix(m.ContentType, "image/")
}

type Content struct {
	Text  string
	Media []Media
}

type Result struct {
	PostID string
	URL    string
}

// Response is what gets stored and shown for a successful publish.
func (r *Result) Response() string {
	if r.URL != "" {
		return r.URL
	}
	return r.PostID
}

type Publisher interface {
	Provider() models.Provider
	Publish(ctx context.Context, creds Credentials, content Content) (*Result, error)
}

// DetectMedia sniffs data and returns it as Media. Unrecognised content is an error.
func DetectMedia(key string, data []byte) (Media, error) {
	kind, err := filetype.Match(data)
	if err != nil || kind == ftypes.Unknown {
		return Media{}, fmt.Errorf("%w: %s", ErrUnsupportedMedia, key)
	}
	return Media{Key: key, Data: data, ContentType: kind.MIME.Value}, nil
}
