package repository

import (
	"time"

	"github.com/fundilink/FundiLink/app/models"
	"gorm.io/gorm"
)

// invoiceRepository implements the InvoiceRepository interface
type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository instance
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(invoice *models.Invoice) error {
	if err := invoice.Validate(); err != nil {
		return err
	}
	return r.db.Create(invoice).Error
}

func (r *invoiceRepository) GetByID(id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.First(&invoice, id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetByIDForClient loads an invoice only when it belongs to the given client.
func (r *invoiceRepository) GetByIDForClient(id, clientID uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.Where("id = ? AND client_id = ?", id, clientID).First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) ListByClient(clientID uint, offset, limit int) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.Where("client_id = ? AND status <> ?", clientID, models.InvoiceStatusDeleted).
		Order("id DESC").Offset(offset).Limit(limit).Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepository) List(offset, limit int) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.Where("status <> ?", models.InvoiceStatusDeleted).
		Order("id DESC").Offset(offset).Limit(limit).Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepository) CountByClient(clientID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Invoice{}).
		Where("client_id = ? AND status <> ?", clientID, models.InvoiceStatusDeleted).
		Count(&count).Error
	return count, err
}

// MarkOverdue flips pending invoices whose due date has passed. Returns the
// number of invoices moved.
func (r *invoiceRepository) MarkOverdue(before time.Time) (int64, error) {
	res := r.db.Model(&models.Invoice{}).
		Where("status = ? AND due_on < ?", models.InvoiceStatusPending, before).
		Update("status", models.InvoiceStatusOverdue)
	return res.RowsAffected, res.Error
}

// UpdateStatus applies a status transition after checking it is legal.
func (r *invoiceRepository) UpdateStatus(id uint, status string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var invoice models.Invoice
		if err := tx.First(&invoice, id).Error; err != nil {
			return err
		}
		if !invoice.CanTransition(status) {
			return gorm.ErrInvalidData
		}
		return tx.Model(&invoice).Update("status", status).Error
	})
}
