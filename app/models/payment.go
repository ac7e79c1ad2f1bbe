package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	PaymentMethodMpesa        = "mpesa"
	PaymentMethodCash         = "cash"
	PaymentMethodCard         = "card"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodPaybill      = "paybill"
)

// Payment joins an invoice to exactly one method-specific transaction record.
// The method column names which of the five references must be set.
type Payment struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	InvoiceID             uint      `gorm:"not null;index" json:"invoice_id"`
	Method                string    `gorm:"type:varchar(20);not null;index" json:"method"`
	MpesaTransactionID    *uint     `gorm:"uniqueIndex" json:"mpesa_transaction_id,omitempty"`
	CashPaymentID         *uint     `gorm:"uniqueIndex" json:"cash_payment_id,omitempty"`
	CardPaymentID         *uint     `gorm:"uniqueIndex" json:"card_payment_id,omitempty"`
	BankTransferPaymentID *uint     `gorm:"uniqueIndex" json:"bank_transfer_payment_id,omitempty"`
	PaybillPaymentID      *uint     `gorm:"uniqueIndex" json:"paybill_payment_id,omitempty"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
}

var ErrPaymentMethodMismatch = errors.New("payment must reference exactly one transaction record matching its method")

// BeforeSave enforces the exactly-one-reference invariant at the model layer;
// MySQL deployments additionally carry a CHECK constraint from migrations.
func (p *Payment) BeforeSave(tx *gorm.DB) error {
	refs := map[string]bool{
		PaymentMethodMpesa:        p.MpesaTransactionID != nil,
		PaymentMethodCash:         p.CashPaymentID != nil,
		PaymentMethodCard:         p.CardPaymentID != nil,
		PaymentMethodBankTransfer: p.BankTransferPaymentID != nil,
		PaymentMethodPaybill:      p.PaybillPaymentID != nil,
	}

	matched, known := refs[p.Method]
	if !known || !matched {
		return ErrPaymentMethodMismatch
	}
	set := 0
	for _, ok := range refs {
		if ok {
			set++
		}
	}
	if set != 1 {
		return ErrPaymentMethodMismatch
	}
	return nil
}
