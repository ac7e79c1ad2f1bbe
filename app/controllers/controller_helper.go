package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fundilink/FundiLink/internal/pkg/mpesa"
)

// parsePagination reads page/per_page query params with sane bounds.
func parsePagination(c *fiber.Ctx) (page, perPage int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	perPage = c.QueryInt("per_page", 20)
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

// respondPaymentError maps the payment pipeline's error kinds to HTTP.
func respondPaymentError(c *fiber.Ctx, err error) error {
	if rej, ok := mpesa.IsRejected(err); ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "provider_rejected",
			"message": rej.Description,
		})
	}

	switch {
	case errors.Is(err, mpesa.ErrInvalidAmount), errors.Is(err, mpesa.ErrInvalidPhone):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	case errors.Is(err, mpesa.ErrInvoiceNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Invoice not found"})
	case errors.Is(err, mpesa.ErrTransactionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Transaction not found"})
	case errors.Is(err, mpesa.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "You may not act on this resource"})
	case errors.Is(err, mpesa.ErrAuthUnavailable), errors.Is(err, mpesa.ErrProviderUnavailable):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_unavailable", "message": "Payment provider is unavailable, try again shortly"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Something went wrong"})
	}
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
