// Package notify records publish outcomes for users and pushes them live to
// any open notification stream.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	EventPostPublished = "post.published"
	EventPostFailed    = "post.failed"
)

// Envelope wraps every live message.
type Envelope struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

type Store interface {
	Create(ctx context.Context, n *models.Notification) (int64, error)
}

type Pusher interface {
	Push(ctx context.Context, userID int64, env Envelope) error
}

type Emitter interface {
	// PublishResult stores a notification for the outcome and pushes it live.
	// Both steps are attempted even if the first fails.
	PublishResult(ctx context.Context, userID int64, requestID string, result models.PublishResult) error
}

type emitter struct {
	store  Store
	pusher Pusher
}

func NewEmitter(store Store, pusher Pusher) Emitter {
	return &emitter{store: store, pusher: pusher}
}

// Message is the user facing text for a publish outcome.
func Message(result models.PublishResult) string {
	if result.Status == models.PublishSuccess {
		return fmt.Sprintf("Post published on %s", result.Provider)
	}
	return fmt.Sprintf("Failed to publish post on %s: %s", result.Provider, result.Error)
}

func (e *emitter) PublishResult(ctx context.Context, userID int64, requestID string, result models.PublishResult) error {
	n := &models.Notification{
		UserID:  userID,
		Type:    models.NotificationTypePostStatus,
		Message: Message(result),
	}

	var errs []error
	if _, err := e.store.Create(ctx, n); err != nil {
		errs = append(errs, fmt.Errorf("store notification: %w", err))
	}

	eventType := EventPostPublished
	if result.Status != models.PublishSuccess {
		eventType = EventPostFailed
	}
	env := Envelope{
		Type: eventType,
		Data: map[string]interface{}{
			"notification_id": n.ID,
			"request_id":      requestID,
			"provider":        result.Provider,
			"status":          result.Status,
			"message":         n.Message,
		},
		Timestamp: time.Now().Unix(),
	}
	if result.Response != "" {
		env.Data["response"] = result.Response
	}

	if e.pusher != nil {
		if err := e.pusher.Push(ctx, userID, env); err != nil {
			errs = append(errs, fmt.Errorf("push notification: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Channel is the pub/sub channel carrying a user's live notifications.
func Channel(userID int64) string {
	return fmt.Sprintf("notifications:%d", userID)
}

type RedisPusher struct {
	rdb *redis.Client
}

func NewRedisPusher(rdb *redis.Client) *RedisPusher {
	return &RedisPusher{rdb: rdb}
}

func (p *RedisPusher) Push(ctx context.Context, userID int64, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, Channel(userID), payload).Err()
}

// Subscribe streams the user's envelopes until ctx is done. The returned
// channel is closed when the subscription ends.
func (p *RedisPusher) Subscribe(ctx context.Context, userID int64) (<-chan Envelope, error) {
	sub := p.rdb.Subscribe(ctx, Channel(userID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	out := make(chan Envelope, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					slog.Warn("dropping malformed notification", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
