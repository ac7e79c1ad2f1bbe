package controllers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/fundilink/FundiLink/app/models"
	"github.com/fundilink/FundiLink/app/repository"
	"github.com/fundilink/FundiLink/internal/pkg/statistics"
)

// Manual payment recording for the non-STK methods. These endpoints are
// admin-only: a staff member reconciles money that arrived out of band and
// books it against an invoice.

type manualPaymentRequest struct {
	InvoiceID   uint   `json:"invoice_id"`
	Amount      int    `json:"amount"`
	PaymentDate string `json:"payment_date"`
	ReceivedBy  string `json:"received_by"`
	Notes       string `json:"notes"`
	CardLast4   string `json:"card_last4"`
	Processor   string `json:"processor"`
	BankName    string `json:"bank_name"`
	PhoneNumber string `json:"phone_number"`
	Reference   string `json:"reference"`
}

func (r *manualPaymentRequest) paymentDate() (time.Time, error) {
	if r.PaymentDate == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, r.PaymentDate); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", r.PaymentDate)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func parseManualPayment(c *fiber.Ctx) (*manualPaymentRequest, time.Time, *models.Invoice, error) {
	var req manualPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, time.Time{}, nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if req.InvoiceID == 0 || req.Amount <= 0 {
		return nil, time.Time{}, nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invoice_id and a positive amount are required"})
	}
	when, err := req.paymentDate()
	if err != nil {
		return nil, time.Time{}, nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "payment_date must be RFC3339 or YYYY-MM-DD"})
	}

	invoice, err := repository.GetGlobalFactory().GetInvoiceRepository().GetByID(req.InvoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, time.Time{}, nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Invoice not found"})
		}
		return nil, time.Time{}, nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load invoice"})
	}
	return &req, when, invoice, nil
}

func respondManualPayment(c *fiber.Ctx, invoice *models.Invoice, payment *models.Payment, err error) error {
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "A payment with this reference already exists"})
		}
		log.Printf("manual payment recording failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to record payment"})
	}

	// Money movement and invoice settlement are separate concerns; we flip
	// pending/overdue invoices to paid here, after the payment is committed.
	if invoice.IsPayable() {
		if uerr := repository.GetGlobalFactory().GetInvoiceRepository().UpdateStatus(invoice.ID, models.InvoiceStatusPaid); uerr != nil {
			log.Printf("failed to mark invoice %d paid after manual payment %d: %v", invoice.ID, payment.ID, uerr)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": payment})
}

// HandleRecordCashPayment books a cash receipt against an invoice.
func HandleRecordCashPayment(c *fiber.Ctx) error {
	req, when, invoice, ferr := parseManualPayment(c)
	if req == nil {
		return ferr
	}

	payment, err := repository.GetGlobalFactory().GetPaymentRepository().RecordCash(invoice.ID, &models.CashPayment{
		Amount:      req.Amount,
		ReceivedBy:  req.ReceivedBy,
		Notes:       req.Notes,
		PaymentDate: when,
	})
	return respondManualPayment(c, invoice, payment, err)
}

// HandleRecordCardPayment books a card settlement against an invoice.
func HandleRecordCardPayment(c *fiber.Ctx) error {
	req, when, invoice, ferr := parseManualPayment(c)
	if req == nil {
		return ferr
	}
	if req.Reference == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "reference is required"})
	}

	payment, err := repository.GetGlobalFactory().GetPaymentRepository().RecordCard(invoice.ID, &models.CardPayment{
		Amount:      req.Amount,
		CardLast4:   req.CardLast4,
		Processor:   req.Processor,
		Reference:   req.Reference,
		PaymentDate: when,
	})
	return respondManualPayment(c, invoice, payment, err)
}

// HandleRecordBankTransferPayment books a bank transfer against an invoice.
func HandleRecordBankTransferPayment(c *fiber.Ctx) error {
	req, when, invoice, ferr := parseManualPayment(c)
	if req == nil {
		return ferr
	}
	if req.Reference == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "reference is required"})
	}

	payment, err := repository.GetGlobalFactory().GetPaymentRepository().RecordBankTransfer(invoice.ID, &models.BankTransferPayment{
		Amount:      req.Amount,
		BankName:    req.BankName,
		Reference:   req.Reference,
		PaymentDate: when,
	})
	return respondManualPayment(c, invoice, payment, err)
}

// HandlePaymentStatistics reports cached collection figures.
func HandlePaymentStatistics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "data": statistics.GetStatistics()})
}

// HandleRecordPaybillPayment books a manually reconciled paybill deposit.
func HandleRecordPaybillPayment(c *fiber.Ctx) error {
	req, when, invoice, ferr := parseManualPayment(c)
	if req == nil {
		return ferr
	}
	if req.Reference == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "reference is required"})
	}

	payment, err := repository.GetGlobalFactory().GetPaymentRepository().RecordPaybill(invoice.ID, &models.PaybillPayment{
		Amount:      req.Amount,
		PhoneNumber: req.PhoneNumber,
		Reference:   req.Reference,
		PaymentDate: when,
	})
	return respondManualPayment(c, invoice, payment, err)
}
