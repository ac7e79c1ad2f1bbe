package controllers

import (
	"errors"
	"log"
	"math"

	"github.com/gofiber/fiber/v2"

	"github.com/fundilink/FundiLink/internal/pkg/mpesa"
	"github.com/fundilink/FundiLink/internal/pkg/usercontext"
)

var mpesaService *mpesa.Service

// InitializeMpesaController wires the controller with a payment service.
func InitializeMpesaController(svc *mpesa.Service) {
	mpesaService = svc
}

type stkPushRequest struct {
	Amount      float64 `json:"amount"`
	PhoneNumber string  `json:"phone_number"`
	InvoiceID   *uint   `json:"invoice_id"`
	Description string  `json:"description"`
}

// HandleStkPush initiates a handset prompt for the authenticated caller.
func HandleStkPush(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var req stkPushRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	// The provider only deals in whole KES.
	if req.Amount <= 0 || req.Amount != math.Trunc(req.Amount) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": mpesa.ErrInvalidAmount.Error()})
	}

	result, err := mpesaService.InitiateStkPush(c.Context(), mpesa.StkPushInput{
		UserID:      userCtx.UserID,
		IsAdmin:     userCtx.IsAdmin,
		Amount:      int(req.Amount),
		PhoneNumber: req.PhoneNumber,
		InvoiceID:   req.InvoiceID,
		Description: req.Description,
	})
	if err != nil {
		return respondPaymentError(c, err)
	}

	resp := fiber.Map{
		"success":             true,
		"transaction_id":      result.TransactionID,
		"checkout_request_id": result.CheckoutRequestID,
		"customer_message":    result.CustomerMessage,
	}
	if result.PaymentID != nil {
		resp["payment_id"] = *result.PaymentID
	}
	return c.JSON(resp)
}

// HandleMpesaCallback accepts the provider's asynchronous result. The
// response envelope is always 200; a non-zero ResultCode tells the provider
// to retry, which we only want for payloads we could not process at all.
func HandleMpesaCallback(c *fiber.Ctx) error {
	raw := make([]byte, len(c.Body()))
	copy(raw, c.Body())

	outcome, err := mpesaService.HandleCallback(raw)
	if err != nil {
		switch {
		case errors.Is(err, mpesa.ErrTransactionNotFound):
			log.Printf("mpesa callback for unknown checkout request: %v", err)
			return c.JSON(fiber.Map{"ResultCode": 1, "ResultDesc": "Transaction not found"})
		case errors.Is(err, mpesa.ErrCallbackMalformed):
			log.Printf("malformed mpesa callback: %v", err)
			return c.JSON(fiber.Map{"ResultCode": 1, "ResultDesc": "Malformed payload"})
		default:
			log.Printf("mpesa callback processing failed: %v", err)
			return c.JSON(fiber.Map{"ResultCode": 1, "ResultDesc": "Processing failed"})
		}
	}

	if outcome == mpesa.CallbackAlreadyApplied {
		log.Printf("duplicate mpesa callback ignored")
	}
	return c.JSON(fiber.Map{"ResultCode": 0, "ResultDesc": "Success"})
}

// HandleListMpesaTransactions returns a paginated, caller-scoped listing.
func HandleListMpesaTransactions(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	page, perPage := parsePagination(c)

	rows, total, err := mpesaService.ListTransactions(mpesa.ListFilter{
		Status:  c.Query("status"),
		Page:    page,
		PerPage: perPage,
	}, userCtx.UserID, userCtx.IsAdmin)
	if err != nil {
		return respondPaymentError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    rows,
		"meta": fiber.Map{
			"page":     page,
			"per_page": perPage,
			"total":    total,
		},
	})
}

// HandleGetMpesaTransaction returns a single transaction by ID.
func HandleGetMpesaTransaction(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid transaction id"})
	}

	mm, err := mpesaService.GetTransaction(uint(id), userCtx.UserID, userCtx.IsAdmin)
	if err != nil {
		return respondPaymentError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": mm})
}

// HandleMpesaTransactionStatus probes the provider when no callback has
// landed yet and reports the transaction's current state.
func HandleMpesaTransactionStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	checkoutRequestID := c.Params("checkout_request_id")
	if checkoutRequestID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "checkout_request_id missing"})
	}

	mm, err := mpesaService.TransactionStatus(c.Context(), checkoutRequestID, userCtx.UserID, userCtx.IsAdmin)
	if err != nil {
		return respondPaymentError(c, err)
	}

	resp := fiber.Map{
		"status":      mm.Status,
		"result_code": mm.ResultCode,
		"result_desc": mm.ResultDesc,
	}
	if mm.MpesaReceiptNumber != nil {
		resp["mpesa_receipt_number"] = *mm.MpesaReceiptNumber
	}
	return c.JSON(resp)
}
