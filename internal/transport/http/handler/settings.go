package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/internal/domain"
	"github.com/arnaudmaillet/core-platform-sub000/internal/service"
)

type SettingsHandler struct {
	settings *service.SettingsService
	logger   *zap.Logger
}

func NewSettingsHandler(settings *service.SettingsService, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, logger: logger}
}

func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	settings, err := h.settings.GetSettings(c.UserContext(), c.Params("id"), regionOf(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(settings)
}

type timezoneRequest struct {
	Timezone string `json:"timezone"`
}

func (h *SettingsHandler) UpdateTimezone(c *fiber.Ctx) error {
	input := new(timezoneRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	settings, err := h.settings.UpdateTimezone(c.UserContext(), c.Params("id"), regionOf(c), input.Timezone)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(settings)
}

// preferencesRequest carries the three preference blocks; nil blocks are
// left untouched.
type preferencesRequest struct {
	Privacy       *domain.PrivacySettings      `json:"privacy"`
	Notifications *domain.NotificationSettings `json:"notifications"`
	Appearance    *domain.AppearanceSettings   `json:"appearance"`
}

func (h *SettingsHandler) UpdatePreferences(c *fiber.Ctx) error {
	input := new(preferencesRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	settings, err := h.settings.UpdatePreferences(
		c.UserContext(),
		c.Params("id"),
		regionOf(c),
		input.Privacy,
		input.Notifications,
		input.Appearance,
	)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(settings)
}

type pushTokenRequest struct {
	Token string `json:"token"`
}

func (h *SettingsHandler) AddPushToken(c *fiber.Ctx) error {
	input := new(pushTokenRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	settings, err := h.settings.AddPushToken(c.UserContext(), c.Params("id"), regionOf(c), input.Token)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(settings)
}

func (h *SettingsHandler) RemovePushToken(c *fiber.Ctx) error {
	input := new(pushTokenRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	settings, err := h.settings.RemovePushToken(c.UserContext(), c.Params("id"), regionOf(c), input.Token)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(settings)
}
