package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/notify"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/valyala/fasthttp"
)

const heartbeatInterval = 25 * time.Second

type Subscriber interface {
	Subscribe(ctx context.Context, userID int64) (<-chan notify.Envelope, error)
}

type NotificationHandler struct {
	s   service.NotificationService
	sub Subscriber
}

func NewNotificationHandler(s service.NotificationService, sub Subscriber) *NotificationHandler {
	return &NotificationHandler{s: s, sub: sub}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	notifications, err := h.s.List(c.Context(), GetUserID(c), c.QueryBool("unread", false))
	if err != nil {
		return errorJSON(c, err, "Unable to list notifications")
	}
	return c.Status(fiber.StatusOK).JSON(notifications)
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid notification id"})
	}
	if err := h.s.MarkRead(c.Context(), GetUserID(c), int64(id)); err != nil {
		return errorJSON(c, err, "Unable to update notification")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *NotificationHandler) Remove(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid notification id"})
	}
	if err := h.s.Remove(c.Context(), GetUserID(c), int64(id)); err != nil {
		return errorJSON(c, err, "Unable to remove notification")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *NotificationHandler) Clear(c *fiber.Ctx) error {
	n, err := h.s.Clear(c.Context(), GetUserID(c))
	if err != nil {
		return errorJSON(c, err, "Unable to clear notifications")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"deleted": n})
}

// Stream pushes live notifications to the browser as server-sent events.
func (h *NotificationHandler) Stream(c *fiber.Ctx) error {
	userID := GetUserID(c)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := h.sub.Subscribe(ctx, userID)
	if err != nil {
		cancel()
		slog.Info(err.Error())
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Live notifications unavailable",
		})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		writeSSE(ctx, w, events, heartbeatInterval)
	}))
	return nil
}

// writeSSE copies events to w until the subscription closes or a write fails.
func writeSSE(ctx context.Context, w *bufio.Writer, events <-chan notify.Envelope, heartbeat time.Duration) {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	fmt.Fprint(w, ": connected\n\n")
	if err := w.Flush(); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(env)
			if err != nil {
				slog.Warn("unable to encode notification", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Type, data)
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}
