package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/arnaudmaillet/core-platform-sub000/internal/domain"
)

func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrConcurrencyConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func writeError(c *fiber.Ctx, err error) error {
	return c.Status(statusFromError(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// region is carried as a query parameter on every aggregate route so the
// region guard fires before any row is touched.
func regionOf(c *fiber.Ctx) string {
	return c.Query("region")
}
