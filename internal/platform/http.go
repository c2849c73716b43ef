package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"golang.org/x/time/rate"
)

const maxErrorBody = 512

// APIError is a non 2xx answer from a provider.
type APIError struct {
	Provider models.Provider
	Status   int
	Message  string
	Body     string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.Status, e.Body)
}

// Caller sends requests for one provider and turns failures into *APIError.
type Caller struct {
	Provider models.Provider
	HTTP     *http.Client
	// Limiter paces outgoing requests when set.
	Limiter *rate.Limiter
}

// Do sends req and decodes a JSON body into out when out is not nil. The
// returned response has its body consumed and closed, only headers remain useful.
func (c *Caller) Do(req *http.Request, out interface{}) (*http.Response, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		slog.Info(err.Error(), "provider", c.Provider)
		return nil, fmt.Errorf("%s request: %w", c.Provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s read response: %w", c.Provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, newAPIError(c.Provider, resp.StatusCode, body)
	}

	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp, fmt.Errorf("%s decode response: %w", c.Provider, err)
		}
	}
	return resp, nil
}

// JSON builds a request with a JSON encoded payload.
func JSON(ctx context.Context, method, url string, payload interface{}) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func newAPIError(provider models.Provider, status int, body []byte) *APIError {
	apiErr := &APIError{Provider: provider, Status: status}

	var graphErr transfer.GraphErrorResponse
	if json.Unmarshal(body, &graphErr) == nil && graphErr.Error.Message != "" {
		apiErr.Message = graphErr.Error.Message
	} else {
		var generic struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
		}
		if json.Unmarshal(body, &generic) == nil {
			if generic.Detail != "" {
				apiErr.Message = generic.Detail
			} else {
				apiErr.Message = generic.Message
			}
		}
	}

	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	apiErr.Body = string(body)
	return apiErr
}

// NewLimiter returns nil for a non positive rate, meaning unlimited.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}
