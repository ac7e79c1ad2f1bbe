package repository

import (
	"time"

	"github.com/fundilink/FundiLink/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	TouchAPIKeyUsage(userID uint) error
}

// InvoiceRepository defines the interface for invoice-related database operations
type InvoiceRepository interface {
	Create(invoice *models.Invoice) error
	GetByID(id uint) (*models.Invoice, error)
	GetByIDForClient(id, clientID uint) (*models.Invoice, error)
	ListByClient(clientID uint, offset, limit int) ([]models.Invoice, error)
	List(offset, limit int) ([]models.Invoice, error)
	CountByClient(clientID uint) (int64, error)
	UpdateStatus(id uint, status string) error
	MarkOverdue(before time.Time) (int64, error)
}

// PaymentRepository records method-specific payments against invoices.
type PaymentRepository interface {
	RecordCash(invoiceID uint, cash *models.CashPayment) (*models.Payment, error)
	RecordCard(invoiceID uint, card *models.CardPayment) (*models.Payment, error)
	RecordBankTransfer(invoiceID uint, bt *models.BankTransferPayment) (*models.Payment, error)
	RecordPaybill(invoiceID uint, pb *models.PaybillPayment) (*models.Payment, error)
	ListByInvoice(invoiceID uint) ([]models.Payment, error)
}

// Repositories bundles all repository instances
type Repositories struct {
	User    UserRepository
	Invoice InvoiceRepository
	Payment PaymentRepository
}

// NewRepositories creates all repositories backed by the same DB handle
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:    NewUserRepository(db),
		Invoice: NewInvoiceRepository(db),
		Payment: NewPaymentRepository(db),
	}
}
