package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/internal/service"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/mylogger"
)

type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *zap.Logger
}

func NewProfileHandler(profiles *service.ProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

type createProfileRequest struct {
	Region      string `json:"region"`
	DisplayName string `json:"display_name"`
	Handle      string `json:"handle"`
}

func (h *ProfileHandler) Create(c *fiber.Ctx) error {
	input := new(createProfileRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	ctx := c.UserContext()
	profile, err := h.profiles.CreateProfile(ctx, c.Params("id"), input.Region, input.DisplayName, input.Handle)
	if err != nil {
		mylogger.Warn(ctx, h.logger, "create profile failed", zap.Error(err))
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(profile)
}

func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	profile, err := h.profiles.GetProfile(c.UserContext(), c.Params("id"), regionOf(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(profile)
}

func (h *ProfileHandler) GetByHandle(c *fiber.Ctx) error {
	profile, err := h.profiles.GetProfileByHandle(c.UserContext(), c.Params("handle"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(profile)
}

type handleRequest struct {
	Handle string `json:"handle"`
}

func (h *ProfileHandler) UpdateHandle(c *fiber.Ctx) error {
	input := new(handleRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	profile, err := h.profiles.UpdateHandle(c.UserContext(), c.Params("id"), regionOf(c), input.Handle)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(profile)
}

type displayNameRequest struct {
	DisplayName string `json:"display_name"`
}

func (h *ProfileHandler) UpdateDisplayName(c *fiber.Ctx) error {
	input := new(displayNameRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	profile, err := h.profiles.UpdateDisplayName(c.UserContext(), c.Params("id"), regionOf(c), input.DisplayName)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(profile)
}

type bioRequest struct {
	Bio string `json:"bio"`
}

func (h *ProfileHandler) UpdateBio(c *fiber.Ctx) error {
	input := new(bioRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	profile, err := h.profiles.UpdateBio(c.UserContext(), c.Params("id"), regionOf(c), input.Bio)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(profile)
}

type privacyRequest struct {
	Private bool `json:"private"`
}

func (h *ProfileHandler) UpdatePrivacy(c *fiber.Ctx) error {
	input := new(privacyRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	profile, err := h.profiles.UpdatePrivacy(c.UserContext(), c.Params("id"), regionOf(c), input.Private)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(profile)
}

type followerDeltaRequest struct {
	Delta int64 `json:"delta"`
}

func (h *ProfileHandler) AdjustFollowers(c *fiber.Ctx) error {
	input := new(followerDeltaRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	count, err := h.profiles.AdjustFollowers(c.UserContext(), c.Params("id"), regionOf(c), input.Delta)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"follower_count": count})
}

func (h *ProfileHandler) AdjustFollowing(c *fiber.Ctx) error {
	input := new(followerDeltaRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	count, err := h.profiles.AdjustFollowing(c.UserContext(), c.Params("id"), regionOf(c), input.Delta)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"following_count": count})
}

type postCountRequest struct {
	PostID string `json:"post_id"`
}

func (h *ProfileHandler) IncrementPostCount(c *fiber.Ctx) error {
	input := new(postCountRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	profile, err := h.profiles.IncrementPostCount(c.UserContext(), c.Params("id"), regionOf(c), input.PostID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(profile)
}

func (h *ProfileHandler) DecrementPostCount(c *fiber.Ctx) error {
	input := new(postCountRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	profile, err := h.profiles.DecrementPostCount(c.UserContext(), c.Params("id"), regionOf(c), input.PostID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(profile)
}

func (h *ProfileHandler) RefreshStats(c *fiber.Ctx) error {
	profile, err := h.profiles.RefreshStats(c.UserContext(), c.Params("id"), regionOf(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(profile)
}
