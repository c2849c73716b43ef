package handlers

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/service"
)

type PlatformHandler struct {
	ps  service.PlatformService
	as  service.AccountService
	cfg config.Config
}

func NewPlatformHandler(ps service.PlatformService, as service.AccountService, cfg config.Config) *PlatformHandler {
	return &PlatformHandler{
		ps:  ps,
		as:  as,
		cfg: cfg,
	}
}

func (h *PlatformHandler) AddSocialAccount(c *fiber.Ctx) error {
	p, err := models.ParseProvider(c.Params("platform"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}

	authURL, err := h.ps.GetAuthURL(c.Context(), p, GetUserID(c))
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Unable to start authorization",
		})
	}
	return c.Redirect(authURL, fiber.StatusTemporaryRedirect)
}

func (h *PlatformHandler) CallbackHandler(c *fiber.Ctx) error {
	p, err := models.ParseProvider(c.Params("platform"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}

	params := url.Values{}
	for k, v := range c.Queries() {
		params.Set(k, v)
	}

	redirectURL := fmt.Sprintf("%s/dashboard/accounts", h.cfg.FrontendURL)
	if _, err := h.ps.Callback(c.Context(), p, params); err != nil {
		slog.Warn("account connect failed", "platform", p, "error", err)
		reason := "connect_failed"
		if errorStatus(err) == fiber.StatusConflict {
			reason = "already_connected"
		}
		return c.Redirect(redirectURL+"?error="+reason+"&platform="+string(p), fiber.StatusTemporaryRedirect)
	}

	return c.Redirect(redirectURL+"?connected="+string(p), fiber.StatusTemporaryRedirect)
}

func (h *PlatformHandler) ListSocialAccounts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accountList, err := h.as.List(c.Context(), userID)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch social accounts",
		})
	}
	if accountList == nil {
		accountList = []*models.SocialAccount{}
	}

	return c.Status(fiber.StatusOK).JSON(accountList)
}

func (h *PlatformHandler) DeleteSocialAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)
	p, err := models.ParseProvider(c.Params("platform"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.as.Disconnect(c.Context(), userID, p); err != nil {
		return errorJSON(c, err, "Unable to delete social account")
	}

	return c.SendStatus(fiber.StatusNoContent)
}
