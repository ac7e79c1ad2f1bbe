package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/fundilink/FundiLink/app/repository"
	"github.com/fundilink/FundiLink/internal/pkg/usercontext"
)

// HandleListInvoices returns the caller's invoices; admins see everything.
func HandleListInvoices(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	page, perPage := parsePagination(c)
	offset := (page - 1) * perPage

	repo := repository.GetGlobalFactory().GetInvoiceRepository()

	if userCtx.IsAdmin {
		invoices, err := repo.List(offset, perPage)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load invoices"})
		}
		return c.JSON(fiber.Map{"success": true, "data": invoices, "meta": fiber.Map{"page": page, "per_page": perPage}})
	}

	invoices, err := repo.ListByClient(userCtx.UserID, offset, perPage)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load invoices"})
	}
	total, err := repo.CountByClient(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load invoices"})
	}
	return c.JSON(fiber.Map{"success": true, "data": invoices, "meta": fiber.Map{"page": page, "per_page": perPage, "total": total}})
}

// HandleGetInvoice returns one invoice the caller owns (or any, for admins).
func HandleGetInvoice(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid invoice id"})
	}

	repo := repository.GetGlobalFactory().GetInvoiceRepository()

	invoice, err := repo.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Invoice not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load invoice"})
	}
	if !userCtx.IsAdmin && invoice.ClientID != userCtx.UserID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "You may not view this invoice"})
	}
	return c.JSON(fiber.Map{"success": true, "data": invoice})
}

// HandleListInvoicePayments lists every payment recorded against an invoice.
func HandleListInvoicePayments(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid invoice id"})
	}

	factory := repository.GetGlobalFactory()
	invoice, err := factory.GetInvoiceRepository().GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Invoice not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load invoice"})
	}
	if !userCtx.IsAdmin && invoice.ClientID != userCtx.UserID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "You may not view this invoice"})
	}

	payments, err := factory.GetPaymentRepository().ListByInvoice(invoice.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load payments"})
	}
	return c.JSON(fiber.Map{"success": true, "data": payments})
}
