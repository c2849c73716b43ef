package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

type PostHandler struct {
	s service.PostService
}

func NewPostHandler(service service.PostService) *PostHandler {
	return &PostHandler{s: service}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	created, err := h.s.CreatePost(c.Context(), userID, &pc)
	if err != nil {
		return errorJSON(c, err, "Error scheduling post")
	}

	return c.Status(fiber.StatusAccepted).JSON(created)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	if requestID := c.Query("request_id"); requestID != "" {
		posts, err := h.s.RequestStatus(c.Context(), userID, requestID)
		if err != nil {
			return errorJSON(c, err, "Unable to list posts")
		}
		return c.Status(fiber.StatusOK).JSON(posts)
	}

	posts, err := h.s.List(c.Context(), userID, c.QueryInt("limit", 0))
	if err != nil {
		return errorJSON(c, err, "Unable to list posts")
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, _ := c.ParamsInt("id", 0)

	if err := h.s.Remove(c.Context(), userID, int64(postID)); err != nil {
		return errorJSON(c, err, "Unable to remove post")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *PostHandler) UploadMedia(c *fiber.Ctx) error {
	userID := GetUserID(c)
	form, err := c.MultipartForm()
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse form",
		})
	}

	keys, err := h.s.StageMedia(c.Context(), userID, form.File["files"])
	if err != nil {
		return errorJSON(c, err, "Unable to upload media")
	}

	return c.Status(fiber.StatusCreated).JSON(transfer.MediaStaged{Keys: keys})
}
