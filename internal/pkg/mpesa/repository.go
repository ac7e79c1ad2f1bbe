package mpesa

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fundilink/FundiLink/app/models"
)

// Store is the transactional persistence surface shared by the orchestrator,
// the callback handler and the status probe. Every mutation runs in a single
// DB transaction and serializes on the MpesaTransaction row it touches.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CreatePending writes the transaction row that must exist before any
// external call is made. Correlation IDs are still null at this point.
func (s *Store) CreatePending(userID uint, amount int, msisdn string, invoiceID *uint) (*models.MpesaTransaction, error) {
	mm := &models.MpesaTransaction{
		UserID:      userID,
		InvoiceID:   invoiceID,
		Amount:      amount,
		PhoneNumber: msisdn,
		Status:      models.MpesaStatusPending,
	}
	if err := s.db.Create(mm).Error; err != nil {
		return nil, err
	}
	return mm, nil
}

// MarkFailed records a local failure reason (auth or transport) on a pending
// transaction that never reached the provider.
func (s *Store) MarkFailed(mmID uint, reason string) error {
	return s.db.Model(&models.MpesaTransaction{}).
		Where("id = ?", mmID).
		Updates(map[string]interface{}{
			"status":      models.MpesaStatusFailed,
			"result_desc": reason,
		}).Error
}

// AttachInitiation applies the provider's synchronous response in one
// transaction: correlation IDs always; a Payment row only when the provider
// accepted and an invoice is attached. A rejection flips the row to failed.
func (s *Store) AttachInitiation(mmID uint, resp *StkPushResponse, createPayment bool) (*models.MpesaTransaction, *models.Payment, error) {
	var mm models.MpesaTransaction
	var payment *models.Payment

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&mm, mmID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTransactionNotFound
			}
			return err
		}

		if resp.MerchantRequestID != "" {
			mm.MerchantRequestID = &resp.MerchantRequestID
		}
		if resp.CheckoutRequestID != "" {
			mm.CheckoutRequestID = &resp.CheckoutRequestID
		}

		if !resp.Accepted() {
			mm.Status = models.MpesaStatusFailed
			mm.ResultDesc = resp.Description()
			return tx.Save(&mm).Error
		}

		if err := tx.Save(&mm).Error; err != nil {
			return err
		}

		if createPayment && mm.InvoiceID != nil {
			payment = &models.Payment{
				InvoiceID:          *mm.InvoiceID,
				Method:             models.PaymentMethodMpesa,
				MpesaTransactionID: &mm.ID,
			}
			if err := tx.Create(payment).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &mm, payment, nil
}

// CallbackOutcome distinguishes a first application from an idempotent replay.
type CallbackOutcome int

const (
	CallbackApplied CallbackOutcome = iota
	CallbackAlreadyApplied
)

// ApplyCallback reconciles the provider's asynchronous result exactly once
// per checkout request. On success it records the receipt, completes the
// transaction, flips a payable invoice to paid and guarantees a Payment row;
// on failure it marks the transaction failed. Replays are no-ops.
func (s *Store) ApplyCallback(res *CallbackResult, raw []byte) (CallbackOutcome, *models.MpesaTransaction, error) {
	var mm models.MpesaTransaction
	outcome := CallbackApplied

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).
			Where("checkout_request_id = ?", res.CheckoutRequestID).
			First(&mm).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTransactionNotFound
			}
			return err
		}

		if mm.CallbackReceived {
			outcome = CallbackAlreadyApplied
			return nil
		}

		now := time.Now().UTC()
		mm.CallbackReceived = true
		mm.CallbackReceivedAt = &now
		mm.ResultCode = &res.ResultCode
		mm.ResultDesc = res.ResultDesc
		mm.RawCallbackJSON = compactJSON(raw)

		if res.ResultCode != 0 {
			mm.Status = models.MpesaStatusFailed
			return tx.Save(&mm).Error
		}

		mm.Status = models.MpesaStatusCompleted
		if res.ReceiptNumber != "" {
			mm.MpesaReceiptNumber = &res.ReceiptNumber
		}
		mm.TransactionDate = res.TransactionDate
		mm.PaymentDate = res.TransactionDate
		if mm.PaymentDate == nil {
			mm.PaymentDate = &now
		}
		if err := tx.Save(&mm).Error; err != nil {
			return err
		}

		if mm.InvoiceID == nil {
			return nil
		}

		// The orchestrator normally created the Payment at initiation; cover
		// the case where that insert failed.
		var count int64
		if err := tx.Model(&models.Payment{}).
			Where("mpesa_transaction_id = ?", mm.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			payment := &models.Payment{
				InvoiceID:          *mm.InvoiceID,
				Method:             models.PaymentMethodMpesa,
				MpesaTransactionID: &mm.ID,
			}
			if err := tx.Create(payment).Error; err != nil {
				return err
			}
		}

		var invoice models.Invoice
		if err := lockForUpdate(tx).First(&invoice, *mm.InvoiceID).Error; err != nil {
			return err
		}
		if invoice.IsPayable() {
			if err := tx.Model(&invoice).Update("status", models.InvoiceStatusPaid).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return outcome, nil, err
	}
	return outcome, &mm, nil
}

// ProbeUpdate converges local state from an stk-query verdict, but only while
// no callback has landed, and never touches the invoice: the callback stays
// the single writer for money movement.
func (s *Store) ProbeUpdate(checkoutRequestID string, res *QueryResult) (*models.MpesaTransaction, error) {
	var mm models.MpesaTransaction

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).
			Where("checkout_request_id = ?", checkoutRequestID).
			First(&mm).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTransactionNotFound
			}
			return err
		}

		if mm.CallbackReceived {
			return nil
		}

		mm.ResultCode = &res.ResultCode
		mm.ResultDesc = res.ResultDesc
		if res.ResultCode == 0 {
			mm.Status = models.MpesaStatusCompleted
		} else {
			mm.Status = models.MpesaStatusFailed
		}
		return tx.Save(&mm).Error
	})
	if err != nil {
		return nil, err
	}
	return &mm, nil
}

// GetByCheckoutRequestID loads a transaction by its provider correlation ID.
func (s *Store) GetByCheckoutRequestID(checkoutRequestID string) (*models.MpesaTransaction, error) {
	var mm models.MpesaTransaction
	err := s.db.Where("checkout_request_id = ?", checkoutRequestID).First(&mm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &mm, nil
}

// GetByID loads a transaction by primary key.
func (s *Store) GetByID(id uint) (*models.MpesaTransaction, error) {
	var mm models.MpesaTransaction
	err := s.db.First(&mm, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &mm, nil
}

// ListFilter scopes and paginates transaction listings.
type ListFilter struct {
	Status  string
	UserID  uint // 0 = all users (admin)
	Page    int
	PerPage int
}

// List returns one page of transactions, newest first, plus the total count.
func (s *Store) List(f ListFilter) ([]models.MpesaTransaction, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}

	q := s.db.Model(&models.MpesaTransaction{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.MpesaTransaction
	err := q.Order("id DESC").
		Offset((f.Page - 1) * f.PerPage).
		Limit(f.PerPage).
		Find(&rows).Error
	return rows, total, err
}

// ListStalePending returns pending transactions that reached the provider but
// have not seen a callback since before the cutoff. The reconciler probes
// these to converge rows whose callback was lost.
func (s *Store) ListStalePending(cutoff time.Time, limit int) ([]models.MpesaTransaction, error) {
	if limit < 1 {
		limit = 50
	}
	var rows []models.MpesaTransaction
	err := s.db.
		Where("status = ?", models.MpesaStatusPending).
		Where("callback_received = ?", false).
		Where("checkout_request_id IS NOT NULL").
		Where("created_at < ?", cutoff).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// lockForUpdate adds a row lock on dialects that support it. SQLite (used by
// the tests) serializes writers on its own and rejects FOR UPDATE.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func compactJSON(raw []byte) string {
	var buf json.RawMessage
	if err := json.Unmarshal(raw, &buf); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(buf)
	if err != nil {
		return string(raw)
	}
	return string(out)
}
