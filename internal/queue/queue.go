package queue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/service"
)

type Queue struct {
	orchestrator service.Orchestrator
}

func NewQueue(orchestrator service.Orchestrator) *Queue {
	return &Queue{orchestrator: orchestrator}
}

const TaskTypePublishPost = "publish:post"

// PublishPostPayload is the job contract. Older producers send a single
// provider; it is merged into Providers when decoding.
type PublishPostPayload struct {
	RequestID string   `json:"request_id"`
	Provider  string   `json:"provider,omitempty"`
	Providers []string `json:"providers"`
	PostText  string   `json:"postText"`
	MediaKeys []string `json:"mediaKeys"`
	UserID    UserID   `json:"userId"`
}

// UserID decodes from a JSON number or a numeric string and always encodes as
// a number.
type UserID int64

func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("userId: %w", err)
	}
	*u = UserID(id)
	return nil
}

func NewPublishPostPayload(req *models.PublishRequest) PublishPostPayload {
	providers := make([]string, 0, len(req.Providers))
	for _, p := range req.Providers {
		providers = append(providers, string(p))
	}
	return PublishPostPayload{
		RequestID: req.RequestID,
		Providers: providers,
		PostText:  req.Text,
		MediaKeys: req.MediaKeys,
		UserID:    UserID(req.UserID),
	}
}

// Request converts the payload back into a publish request. Unknown provider
// names are reported as validation errors.
func (p PublishPostPayload) Request() (*models.PublishRequest, error) {
	names := p.Providers
	if p.Provider != "" {
		names = append([]string{p.Provider}, names...)
	}

	req := &models.PublishRequest{
		RequestID: p.RequestID,
		UserID:    int64(p.UserID),
		Text:      p.PostText,
		MediaKeys: p.MediaKeys,
		Providers: make([]models.Provider, 0, len(names)),
	}
	for _, name := range names {
		provider, err := models.ParseProvider(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", service.ErrValidation, err)
		}
		req.Providers = append(req.Providers, provider)
	}
	return req, nil
}
