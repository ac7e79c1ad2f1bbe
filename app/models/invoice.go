package models

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	InvoiceStatusPending   = "pending"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusOverdue   = "overdue"
	InvoiceStatusCancelled = "cancelled"
	InvoiceStatusDeleted   = "deleted"
)

// Invoice is billed in whole KES; Amount carries no fractional part.
type Invoice struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ClientID  uint      `gorm:"not null;index" json:"client_id"`
	Amount    int       `gorm:"not null" json:"amount" validate:"gt=0"`
	Status    string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status" validate:"oneof=pending paid overdue cancelled deleted"`
	CreatedOn time.Time `gorm:"not null" json:"created_on"`
	DueOn     time.Time `gorm:"not null" json:"due_on"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

var invoiceTransitions = map[string][]string{
	InvoiceStatusPending: {InvoiceStatusPaid, InvoiceStatusCancelled, InvoiceStatusOverdue, InvoiceStatusDeleted},
	InvoiceStatusOverdue: {InvoiceStatusPaid, InvoiceStatusDeleted},
	// paid/cancelled can still be soft-removed
	InvoiceStatusPaid:      {InvoiceStatusDeleted},
	InvoiceStatusCancelled: {InvoiceStatusDeleted},
	InvoiceStatusDeleted:   {},
}

// CanTransition reports whether the invoice may move to the given status.
func (i *Invoice) CanTransition(to string) bool {
	for _, allowed := range invoiceTransitions[i.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsPayable reports whether a payment may still settle this invoice.
func (i *Invoice) IsPayable() bool {
	return i.Status == InvoiceStatusPending || i.Status == InvoiceStatusOverdue
}

func (i *Invoice) Validate() error {
	if i.DueOn.Before(i.CreatedOn) {
		return errors.New("invoice due date precedes its creation date")
	}
	v := validator.New()
	return v.Struct(i)
}
