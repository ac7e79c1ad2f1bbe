package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MpesaStatusPending   = "pending"
	MpesaStatusCompleted = "completed"
	MpesaStatusFailed    = "failed"
	MpesaStatusCancelled = "cancelled"
)

// MpesaTransaction records one STK push attempt from initiation through the
// provider's asynchronous result. Rows are never deleted.
type MpesaTransaction struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	InternalRef string `gorm:"type:char(36);uniqueIndex" json:"internal_ref"`
	UserID      uint   `gorm:"not null;index" json:"user_id"`
	InvoiceID   *uint  `gorm:"index" json:"invoice_id,omitempty"`
	Amount      int    `gorm:"not null" json:"amount"`
	Currency    string `gorm:"type:varchar(3);not null;default:'KES'" json:"currency"`
	// Provider form: country code + subscriber, 12 digits, no plus sign.
	PhoneNumber string `gorm:"type:varchar(12);not null" json:"phone_number"`

	MerchantRequestID *string `gorm:"type:varchar(100)" json:"merchant_request_id,omitempty"`
	CheckoutRequestID *string `gorm:"type:varchar(100);uniqueIndex" json:"checkout_request_id,omitempty"`

	ResultCode         *int       `json:"result_code,omitempty"`
	ResultDesc         string     `gorm:"type:varchar(255)" json:"result_desc"`
	MpesaReceiptNumber *string    `gorm:"type:varchar(50);uniqueIndex" json:"mpesa_receipt_number,omitempty"`
	TransactionDate    *time.Time `gorm:"type:timestamp;default:null" json:"transaction_date,omitempty"`

	Status             string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CallbackReceived   bool       `gorm:"not null;default:false" json:"callback_received"`
	CallbackReceivedAt *time.Time `gorm:"type:timestamp;default:null" json:"callback_received_at,omitempty"`
	RawCallbackJSON    string     `gorm:"type:longtext" json:"-"`

	PaymentDate *time.Time `gorm:"type:timestamp;default:null" json:"payment_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate fixes CreatedAt to UTC at row insert and assigns the internal
// reference used as AccountReference fallback towards the provider.
func (m *MpesaTransaction) BeforeCreate(tx *gorm.DB) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.InternalRef == "" {
		m.InternalRef = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = MpesaStatusPending
	}
	if m.Currency == "" {
		m.Currency = "KES"
	}
	return nil
}

// IsTerminal reports whether the transaction reached a final state.
func (m *MpesaTransaction) IsTerminal() bool {
	return m.Status == MpesaStatusCompleted || m.Status == MpesaStatusFailed || m.Status == MpesaStatusCancelled
}
