package models

import "time"

// Method-specific transaction records. These stay deliberately thin: each is
// a receipt of how money arrived, while Payment carries the invoice linkage.

type CashPayment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Amount      int       `gorm:"not null" json:"amount" validate:"gt=0"`
	ReceivedBy  string    `gorm:"type:varchar(150)" json:"received_by"`
	Notes       string    `gorm:"type:text" json:"notes"`
	PaymentDate time.Time `gorm:"not null" json:"payment_date"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type CardPayment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Amount      int       `gorm:"not null" json:"amount" validate:"gt=0"`
	CardLast4   string    `gorm:"type:char(4)" json:"card_last4" validate:"omitempty,len=4,numeric"`
	Processor   string    `gorm:"type:varchar(50)" json:"processor"`
	Reference   string    `gorm:"type:varchar(100);uniqueIndex" json:"reference" validate:"required"`
	PaymentDate time.Time `gorm:"not null" json:"payment_date"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type BankTransferPayment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Amount      int       `gorm:"not null" json:"amount" validate:"gt=0"`
	BankName    string    `gorm:"type:varchar(100)" json:"bank_name"`
	Reference   string    `gorm:"type:varchar(100);uniqueIndex" json:"reference" validate:"required"`
	PaymentDate time.Time `gorm:"not null" json:"payment_date"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// PaybillPayment records a customer-initiated paybill deposit reconciled
// manually, as opposed to the STK-push flow tracked by MpesaTransaction.
type PaybillPayment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Amount      int       `gorm:"not null" json:"amount" validate:"gt=0"`
	PhoneNumber string    `gorm:"type:varchar(12)" json:"phone_number"`
	Reference   string    `gorm:"type:varchar(100);uniqueIndex" json:"reference" validate:"required"`
	PaymentDate time.Time `gorm:"not null" json:"payment_date"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
