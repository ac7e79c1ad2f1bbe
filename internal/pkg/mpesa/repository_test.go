package mpesa

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fundilink/FundiLink/app/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Invoice{},
		&models.MpesaTransaction{},
		&models.CashPayment{},
		&models.CardPayment{},
		&models.BankTransferPayment{},
		&models.PaybillPayment{},
		&models.Payment{},
	))
	return db
}

func seedInvoice(t *testing.T, db *gorm.DB, clientID uint, amount int) *models.Invoice {
	t.Helper()
	now := time.Now().UTC()
	invoice := &models.Invoice{
		ClientID:  clientID,
		Amount:    amount,
		Status:    models.InvoiceStatusPending,
		CreatedOn: now,
		DueOn:     now.Add(14 * 24 * time.Hour),
	}
	require.NoError(t, db.Create(invoice).Error)
	return invoice
}

func acceptedResponse(checkoutRequestID string) *StkPushResponse {
	return &StkPushResponse{
		MerchantRequestID:   "mr-" + checkoutRequestID,
		CheckoutRequestID:   checkoutRequestID,
		ResponseCode:        "0",
		ResponseDescription: "Success. Request accepted for processing",
		CustomerMessage:     "Success. Request accepted for processing",
	}
}

func TestCreatePendingDefaults(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)

	invoiceID := uint(7)
	mm, err := store.CreatePending(3, 1500, "254712345678", &invoiceID)
	require.NoError(t, err)

	require.Equal(t, models.MpesaStatusPending, mm.Status)
	require.Equal(t, "KES", mm.Currency)
	require.NotEmpty(t, mm.InternalRef)
	require.Nil(t, mm.CheckoutRequestID)
	require.False(t, mm.CallbackReceived)
	require.Equal(t, time.UTC, mm.CreatedAt.Location())
}

func TestAttachInitiationAcceptedCreatesPayment(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	invoice := seedInvoice(t, db, 3, 1500)

	mm, err := store.CreatePending(3, 1500, "254712345678", &invoice.ID)
	require.NoError(t, err)

	mm, payment, err := store.AttachInitiation(mm.ID, acceptedResponse("ws_CO_1"), true)
	require.NoError(t, err)

	require.NotNil(t, mm.CheckoutRequestID)
	require.Equal(t, "ws_CO_1", *mm.CheckoutRequestID)
	require.Equal(t, models.MpesaStatusPending, mm.Status)

	require.NotNil(t, payment)
	require.Equal(t, invoice.ID, payment.InvoiceID)
	require.Equal(t, models.PaymentMethodMpesa, payment.Method)
	require.Equal(t, mm.ID, *payment.MpesaTransactionID)

	// Initiation must never settle the invoice.
	var fresh models.Invoice
	require.NoError(t, db.First(&fresh, invoice.ID).Error)
	require.Equal(t, models.InvoiceStatusPending, fresh.Status)
}

func TestAttachInitiationRejectedMarksFailed(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)

	mm, err := store.CreatePending(3, 1500, "254712345678", nil)
	require.NoError(t, err)

	resp := &StkPushResponse{
		ResponseCode:        "1",
		ResponseDescription: "Unable to lock subscriber",
	}
	mm, payment, err := store.AttachInitiation(mm.ID, resp, false)
	require.NoError(t, err)
	require.Nil(t, payment)
	require.Equal(t, models.MpesaStatusFailed, mm.Status)
	require.Equal(t, "Unable to lock subscriber", mm.ResultDesc)
}

func TestApplyCallbackSuccessSettlesInvoice(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	invoice := seedInvoice(t, db, 3, 1500)

	mm, err := store.CreatePending(3, 1500, "254712345678", &invoice.ID)
	require.NoError(t, err)
	_, _, err = store.AttachInitiation(mm.ID, acceptedResponse("ws_CO_2"), true)
	require.NoError(t, err)

	when := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	res := &CallbackResult{
		CheckoutRequestID: "ws_CO_2",
		ResultCode:        0,
		ResultDesc:        "The service request is processed successfully.",
		ReceiptNumber:     "NLJ7RT61SV",
		Amount:            1500,
		TransactionDate:   &when,
	}
	outcome, updated, err := store.ApplyCallback(res, []byte(`{"raw":true}`))
	require.NoError(t, err)
	require.Equal(t, CallbackApplied, outcome)

	require.Equal(t, models.MpesaStatusCompleted, updated.Status)
	require.True(t, updated.CallbackReceived)
	require.Equal(t, "NLJ7RT61SV", *updated.MpesaReceiptNumber)
	require.NotNil(t, updated.PaymentDate)
	require.NotEmpty(t, updated.RawCallbackJSON)

	var fresh models.Invoice
	require.NoError(t, db.First(&fresh, invoice.ID).Error)
	require.Equal(t, models.InvoiceStatusPaid, fresh.Status)

	var payments int64
	require.NoError(t, db.Model(&models.Payment{}).Where("mpesa_transaction_id = ?", updated.ID).Count(&payments).Error)
	require.EqualValues(t, 1, payments)
}

func TestApplyCallbackIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	invoice := seedInvoice(t, db, 3, 1500)

	mm, err := store.CreatePending(3, 1500, "254712345678", &invoice.ID)
	require.NoError(t, err)
	_, _, err = store.AttachInitiation(mm.ID, acceptedResponse("ws_CO_3"), true)
	require.NoError(t, err)

	res := &CallbackResult{CheckoutRequestID: "ws_CO_3", ResultCode: 0, ReceiptNumber: "RCPT1"}

	outcome, _, err := store.ApplyCallback(res, []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, CallbackApplied, outcome)

	// Replay with a different verdict must change nothing.
	replay := &CallbackResult{CheckoutRequestID: "ws_CO_3", ResultCode: 1032, ResultDesc: "Request cancelled by user"}
	outcome, updated, err := store.ApplyCallback(replay, []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, CallbackAlreadyApplied, outcome)
	require.Equal(t, models.MpesaStatusCompleted, updated.Status)
	require.Equal(t, "RCPT1", *updated.MpesaReceiptNumber)

	var payments int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&payments).Error)
	require.EqualValues(t, 1, payments)
}

func TestApplyCallbackFailureLeavesInvoiceOpen(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	invoice := seedInvoice(t, db, 3, 1500)

	mm, err := store.CreatePending(3, 1500, "254712345678", &invoice.ID)
	require.NoError(t, err)
	_, _, err = store.AttachInitiation(mm.ID, acceptedResponse("ws_CO_4"), true)
	require.NoError(t, err)

	res := &CallbackResult{CheckoutRequestID: "ws_CO_4", ResultCode: 1032, ResultDesc: "Request cancelled by user"}
	_, updated, err := store.ApplyCallback(res, []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, models.MpesaStatusFailed, updated.Status)

	var fresh models.Invoice
	require.NoError(t, db.First(&fresh, invoice.ID).Error)
	require.Equal(t, models.InvoiceStatusPending, fresh.Status)
}

func TestApplyCallbackBackfillsMissingPayment(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	invoice := seedInvoice(t, db, 3, 1500)

	mm, err := store.CreatePending(3, 1500, "254712345678", &invoice.ID)
	require.NoError(t, err)
	// Correlation IDs attached without the Payment row.
	_, _, err = store.AttachInitiation(mm.ID, acceptedResponse("ws_CO_5"), false)
	require.NoError(t, err)

	res := &CallbackResult{CheckoutRequestID: "ws_CO_5", ResultCode: 0, ReceiptNumber: "RCPT5"}
	_, updated, err := store.ApplyCallback(res, []byte(`{}`))
	require.NoError(t, err)

	var payments int64
	require.NoError(t, db.Model(&models.Payment{}).Where("mpesa_transaction_id = ?", updated.ID).Count(&payments).Error)
	require.EqualValues(t, 1, payments)
}

func TestApplyCallbackUnknownCheckoutRequest(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)

	res := &CallbackResult{CheckoutRequestID: "ws_CO_unknown", ResultCode: 0}
	_, _, err := store.ApplyCallback(res, []byte(`{}`))
	require.True(t, errors.Is(err, ErrTransactionNotFound))
}

func TestProbeUpdateNeverTouchesInvoice(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	invoice := seedInvoice(t, db, 3, 1500)

	mm, err := store.CreatePending(3, 1500, "254712345678", &invoice.ID)
	require.NoError(t, err)
	_, _, err = store.AttachInitiation(mm.ID, acceptedResponse("ws_CO_6"), true)
	require.NoError(t, err)

	updated, err := store.ProbeUpdate("ws_CO_6", &QueryResult{ResultCode: 0, ResultDesc: "processed"})
	require.NoError(t, err)
	require.Equal(t, models.MpesaStatusCompleted, updated.Status)
	require.False(t, updated.CallbackReceived)

	// Settlement is the callback's job alone.
	var fresh models.Invoice
	require.NoError(t, db.First(&fresh, invoice.ID).Error)
	require.Equal(t, models.InvoiceStatusPending, fresh.Status)
}

func TestProbeUpdateIgnoredAfterCallback(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)

	mm, err := store.CreatePending(3, 1500, "254712345678", nil)
	require.NoError(t, err)
	_, _, err = store.AttachInitiation(mm.ID, acceptedResponse("ws_CO_7"), false)
	require.NoError(t, err)

	res := &CallbackResult{CheckoutRequestID: "ws_CO_7", ResultCode: 0, ReceiptNumber: "RCPT7"}
	_, _, err = store.ApplyCallback(res, []byte(`{}`))
	require.NoError(t, err)

	updated, err := store.ProbeUpdate("ws_CO_7", &QueryResult{ResultCode: 1037, ResultDesc: "DS timeout"})
	require.NoError(t, err)
	require.Equal(t, models.MpesaStatusCompleted, updated.Status)
	require.Equal(t, "RCPT7", *updated.MpesaReceiptNumber)
}

func TestListScopesAndPaginates(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)

	for i := 0; i < 5; i++ {
		_, err := store.CreatePending(1, 100+i, "254712345678", nil)
		require.NoError(t, err)
	}
	_, err := store.CreatePending(2, 900, "254798765432", nil)
	require.NoError(t, err)

	rows, total, err := store.List(ListFilter{UserID: 1, Page: 1, PerPage: 3})
	require.NoError(t, err)
	require.EqualValues(t, 5, total)
	require.Len(t, rows, 3)
	// Newest first.
	require.Greater(t, rows[0].ID, rows[1].ID)

	rows, total, err = store.List(ListFilter{Status: models.MpesaStatusPending, Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.EqualValues(t, 6, total)
	require.Len(t, rows, 6)
}

func TestListStalePending(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)

	mm, err := store.CreatePending(1, 100, "254712345678", nil)
	require.NoError(t, err)
	_, _, err = store.AttachInitiation(mm.ID, acceptedResponse("ws_CO_stale"), false)
	require.NoError(t, err)

	// Still within the grace window.
	rows, err := store.ListStalePending(time.Now().UTC().Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Empty(t, rows)

	rows, err = store.ListStalePending(time.Now().UTC().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "ws_CO_stale", *rows[0].CheckoutRequestID)

	// A row that never reached the provider has nothing to probe.
	_, err = store.CreatePending(1, 100, "254712345678", nil)
	require.NoError(t, err)
	rows, err = store.ListStalePending(time.Now().UTC().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
