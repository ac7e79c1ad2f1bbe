package repository

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

func seedInvoice(t *testing.T, db *gorm.DB, clientID uint, status string) *models.Invoice {
	t.Helper()
	now := time.Now().UTC()
	invoice := &models.Invoice{
		ClientID:  clientID,
		Amount:    1000,
		Status:    status,
		CreatedOn: now,
		DueOn:     now.Add(7 * 24 * time.Hour),
	}
	require.NoError(t, db.Create(invoice).Error)
	return invoice
}

func TestInvoiceUpdateStatusEnforcesTransitions(t *testing.T) {
	db := newTestDB(t)
	repo := NewInvoiceRepository(db)
	invoice := seedInvoice(t, db, 1, models.InvoiceStatusPending)

	require.NoError(t, repo.UpdateStatus(invoice.ID, models.InvoiceStatusPaid))

	// paid -> pending is not a legal move.
	err := repo.UpdateStatus(invoice.ID, models.InvoiceStatusPending)
	require.ErrorIs(t, err, gorm.ErrInvalidData)

	var fresh models.Invoice
	require.NoError(t, db.First(&fresh, invoice.ID).Error)
	require.Equal(t, models.InvoiceStatusPaid, fresh.Status)
}

func TestInvoiceMarkOverdue(t *testing.T) {
	db := newTestDB(t)
	repo := NewInvoiceRepository(db)

	now := time.Now().UTC()
	due := &models.Invoice{ClientID: 1, Amount: 100, Status: models.InvoiceStatusPending, CreatedOn: now.Add(-30 * 24 * time.Hour), DueOn: now.Add(-24 * time.Hour)}
	notDue := &models.Invoice{ClientID: 1, Amount: 100, Status: models.InvoiceStatusPending, CreatedOn: now, DueOn: now.Add(24 * time.Hour)}
	alreadyPaid := &models.Invoice{ClientID: 1, Amount: 100, Status: models.InvoiceStatusPaid, CreatedOn: now.Add(-30 * 24 * time.Hour), DueOn: now.Add(-24 * time.Hour)}
	require.NoError(t, db.Create(due).Error)
	require.NoError(t, db.Create(notDue).Error)
	require.NoError(t, db.Create(alreadyPaid).Error)

	n, err := repo.MarkOverdue(now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	var fresh models.Invoice
	require.NoError(t, db.First(&fresh, due.ID).Error)
	require.Equal(t, models.InvoiceStatusOverdue, fresh.Status)
	fresh = models.Invoice{}
	require.NoError(t, db.First(&fresh, notDue.ID).Error)
	require.Equal(t, models.InvoiceStatusPending, fresh.Status)
	fresh = models.Invoice{}
	require.NoError(t, db.First(&fresh, alreadyPaid.ID).Error)
	require.Equal(t, models.InvoiceStatusPaid, fresh.Status)
}

func TestInvoiceListScoping(t *testing.T) {
	db := newTestDB(t)
	repo := NewInvoiceRepository(db)

	seedInvoice(t, db, 1, models.InvoiceStatusPending)
	seedInvoice(t, db, 1, models.InvoiceStatusPaid)
	seedInvoice(t, db, 1, models.InvoiceStatusDeleted)
	seedInvoice(t, db, 2, models.InvoiceStatusPending)

	rows, err := repo.ListByClient(1, 0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2) // deleted rows are hidden

	total, err := repo.CountByClient(1)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)

	all, err := repo.List(0, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestRecordCashCreatesPaymentJoin(t *testing.T) {
	db := newTestDB(t)
	repo := NewPaymentRepository(db)
	invoice := seedInvoice(t, db, 1, models.InvoiceStatusPending)

	payment, err := repo.RecordCash(invoice.ID, &models.CashPayment{
		Amount:      500,
		ReceivedBy:  "front desk",
		PaymentDate: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.Equal(t, models.PaymentMethodCash, payment.Method)
	require.NotNil(t, payment.CashPaymentID)
	require.Equal(t, invoice.ID, payment.InvoiceID)

	payments, err := repo.ListByInvoice(invoice.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
}

func TestRecordAgainstMissingInvoiceFails(t *testing.T) {
	db := newTestDB(t)
	repo := NewPaymentRepository(db)

	_, err := repo.RecordCash(999, &models.CashPayment{Amount: 500, PaymentDate: time.Now().UTC()})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// The aborted transaction must not leave a method record behind.
	var count int64
	require.NoError(t, db.Model(&models.CashPayment{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRecordCardDuplicateReference(t *testing.T) {
	db := newTestDB(t)
	repo := NewPaymentRepository(db)
	invoice := seedInvoice(t, db, 1, models.InvoiceStatusPending)

	_, err := repo.RecordCard(invoice.ID, &models.CardPayment{
		Amount:      500,
		Reference:   "CARD-REF-1",
		PaymentDate: time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = repo.RecordCard(invoice.ID, &models.CardPayment{
		Amount:      500,
		Reference:   "CARD-REF-1",
		PaymentDate: time.Now().UTC(),
	})
	require.Error(t, err)

	payments, err := repo.ListByInvoice(invoice.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
}

func TestUserGetByAPIKeyHash(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)

	user := &models.User{Name: "Wanjiku", Email: "wanjiku@example.com", Password: "hashed", Role: models.ROLE_CLIENT, Status: models.STATUS_ACTIVE}
	raw, err := user.IssueAPIKey()
	require.NoError(t, err)
	require.NoError(t, repo.Create(user))

	found, err := repo.GetByAPIKeyHash(models.HashAPIKey(raw))
	require.NoError(t, err)
	require.Equal(t, user.ID, found.ID)

	_, err = repo.GetByAPIKeyHash(models.HashAPIKey("fdl_wrong"))
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	// An empty hash must never match users without keys.
	_, err = repo.GetByAPIKeyHash("")
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestTouchAPIKeyUsage(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)

	user := &models.User{Name: "Njoroge", Email: "njoroge@example.com", Password: "hashed", Status: models.STATUS_ACTIVE}
	require.NoError(t, repo.Create(user))
	require.Nil(t, user.APIKeyLastUsedAt)

	require.NoError(t, repo.TouchAPIKeyUsage(user.ID))

	fresh, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, fresh.APIKeyLastUsedAt)
}
