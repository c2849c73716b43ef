package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/service"
)

func GetUserID(c *fiber.Ctx) int64 {
	raw, _ := c.Locals("user_id").(string)
	userID, _ := strconv.ParseInt(raw, 10, 64)
	return userID
}

// errorStatus maps service errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrAccountNotFound), errors.Is(err, service.ErrNotificationNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, repository.ErrAccountExists):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func errorJSON(c *fiber.Ctx, err error, fallback string) error {
	status := errorStatus(err)
	msg := fallback
	if status != fiber.StatusInternalServerError {
		msg = err.Error()
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
