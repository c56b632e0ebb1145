package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/internal/domain"
	"github.com/arnaudmaillet/core-platform-sub000/internal/service"
)

// ModerationHandler exposes the trust score and shadowban surface of the
// account metadata aggregate.
type ModerationHandler struct {
	metadata *service.MetadataService
	logger   *zap.Logger
}

func NewModerationHandler(metadata *service.MetadataService, logger *zap.Logger) *ModerationHandler {
	return &ModerationHandler{metadata: metadata, logger: logger}
}

func (h *ModerationHandler) Get(c *fiber.Ctx) error {
	meta, err := h.metadata.GetMetadata(c.UserContext(), c.Params("id"), regionOf(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(meta)
}

type trustAdjustmentRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

func (h *ModerationHandler) AdjustTrustScore(c *fiber.Ctx) error {
	input := new(trustAdjustmentRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	ctx := c.UserContext()
	accountID, region := c.Params("id"), regionOf(c)

	var (
		meta *domain.AccountMetadata
		err  error
	)
	switch {
	case input.Delta > 0:
		meta, err = h.metadata.IncreaseTrustScore(ctx, accountID, region, input.Delta, input.Reason)
	case input.Delta < 0:
		meta, err = h.metadata.DecreaseTrustScore(ctx, accountID, region, -input.Delta, input.Reason)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "delta must be non-zero"})
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(meta)
}

func (h *ModerationHandler) Shadowban(c *fiber.Ctx) error {
	input := new(moderationRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	meta, err := h.metadata.Shadowban(c.UserContext(), c.Params("id"), regionOf(c), input.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(meta)
}

func (h *ModerationHandler) LiftShadowban(c *fiber.Ctx) error {
	input := new(moderationRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	meta, err := h.metadata.LiftShadowban(c.UserContext(), c.Params("id"), regionOf(c), input.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(meta)
}

type roleChangeRequest struct {
	Role   string `json:"role"`
	Reason string `json:"reason"`
}

func (h *ModerationHandler) UpgradeRole(c *fiber.Ctx) error {
	input := new(roleChangeRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	meta, err := h.metadata.UpgradeRole(
		c.UserContext(),
		c.Params("id"),
		regionOf(c),
		domain.AccountRole(input.Role),
		input.Reason,
	)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(meta)
}

type betaStatusRequest struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason"`
}

func (h *ModerationHandler) SetBetaStatus(c *fiber.Ctx) error {
	input := new(betaStatusRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	meta, err := h.metadata.SetBetaStatus(c.UserContext(), c.Params("id"), regionOf(c), input.Enabled, input.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(meta)
}
