package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/internal/service"
	"github.com/arnaudmaillet/core-platform-sub000/pkg/mylogger"
)

type AccountHandler struct {
	accounts  *service.AccountService
	metadata  *service.MetadataService
	settings  *service.SettingsService
	deletion  *service.DeletionService
	migration *service.RegionMigrationService
	logger    *zap.Logger
}

func NewAccountHandler(
	accounts *service.AccountService,
	metadata *service.MetadataService,
	settings *service.SettingsService,
	deletion *service.DeletionService,
	migration *service.RegionMigrationService,
	logger *zap.Logger,
) *AccountHandler {
	return &AccountHandler{
		accounts:  accounts,
		metadata:  metadata,
		settings:  settings,
		deletion:  deletion,
		migration: migration,
		logger:    logger,
	}
}

type createAccountRequest struct {
	AccountID  string `json:"account_id"`
	Region     string `json:"region"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	ExternalID string `json:"external_id"`
}

// Create provisions the account row plus its metadata and settings
// companions. Each aggregate is written in its own transaction, so a
// half-provisioned account is possible and repaired by retrying the call.
func (h *AccountHandler) Create(c *fiber.Ctx) error {
	input := new(createAccountRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	ctx := c.UserContext()

	account, err := h.accounts.CreateAccount(ctx, service.CreateAccountParams{
		AccountID:  input.AccountID,
		Region:     input.Region,
		Username:   input.Username,
		Email:      input.Email,
		ExternalID: input.ExternalID,
	})
	if err != nil {
		mylogger.Warn(ctx, h.logger, "create account failed", zap.Error(err))
		return writeError(c, err)
	}

	if _, err := h.metadata.CreateMetadata(ctx, account.ID, account.Region, 0); err != nil {
		mylogger.Warn(ctx, h.logger, "create account metadata failed", zap.Error(err))
		return writeError(c, err)
	}
	if _, err := h.settings.CreateSettings(ctx, account.ID, account.Region); err != nil {
		mylogger.Warn(ctx, h.logger, "create account settings failed", zap.Error(err))
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(account)
}

func (h *AccountHandler) Get(c *fiber.Ctx) error {
	account, err := h.accounts.GetAccount(c.UserContext(), c.Params("id"), regionOf(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(account)
}

func (h *AccountHandler) ResolveUsername(c *fiber.Ctx) error {
	account, err := h.accounts.ResolveByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(account)
}

type changeUsernameRequest struct {
	Username string `json:"username"`
}

func (h *AccountHandler) ChangeUsername(c *fiber.Ctx) error {
	input := new(changeUsernameRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	account, err := h.accounts.ChangeUsername(c.UserContext(), c.Params("id"), regionOf(c), input.Username)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(account)
}

type changeEmailRequest struct {
	Email string `json:"email"`
}

func (h *AccountHandler) ChangeEmail(c *fiber.Ctx) error {
	input := new(changeEmailRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	account, err := h.accounts.ChangeEmail(c.UserContext(), c.Params("id"), regionOf(c), input.Email)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(account)
}

func (h *AccountHandler) VerifyEmail(c *fiber.Ctx) error {
	account, err := h.accounts.VerifyEmail(c.UserContext(), c.Params("id"), regionOf(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(account)
}

type moderationRequest struct {
	Reason string `json:"reason"`
}

func (h *AccountHandler) Suspend(c *fiber.Ctx) error {
	input := new(moderationRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	account, err := h.accounts.Suspend(c.UserContext(), c.Params("id"), regionOf(c), input.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(account)
}

func (h *AccountHandler) Unsuspend(c *fiber.Ctx) error {
	account, err := h.accounts.Unsuspend(c.UserContext(), c.Params("id"), regionOf(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(account)
}

func (h *AccountHandler) Ban(c *fiber.Ctx) error {
	input := new(moderationRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	account, err := h.accounts.Ban(c.UserContext(), c.Params("id"), regionOf(c), input.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(account)
}

func (h *AccountHandler) Deactivate(c *fiber.Ctx) error {
	account, err := h.accounts.Deactivate(c.UserContext(), c.Params("id"), regionOf(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(account)
}

func (h *AccountHandler) Reactivate(c *fiber.Ctx) error {
	account, err := h.accounts.Reactivate(c.UserContext(), c.Params("id"), regionOf(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(account)
}

func (h *AccountHandler) RecordActivity(c *fiber.Ctx) error {
	if err := h.accounts.RecordActivity(c.UserContext(), c.Params("id"), regionOf(c)); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type migrateRequest struct {
	ToRegion string `json:"to_region"`
}

func (h *AccountHandler) Migrate(c *fiber.Ctx) error {
	input := new(migrateRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	ctx := c.UserContext()
	if err := h.migration.MigrateAccount(ctx, c.Params("id"), regionOf(c), input.ToRegion); err != nil {
		mylogger.Warn(ctx, h.logger, "region migration failed", zap.Error(err))
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AccountHandler) Delete(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if err := h.deletion.DeleteAccount(ctx, c.Params("id"), regionOf(c)); err != nil {
		mylogger.Warn(ctx, h.logger, "account deletion failed", zap.Error(err))
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
