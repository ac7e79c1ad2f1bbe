package repository

import (
	"github.com/fundilink/FundiLink/app/models"
	"gorm.io/gorm"
)

// paymentRepository implements the PaymentRepository interface. Each Record*
// call writes the method record and its Payment join in one transaction.
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) RecordCash(invoiceID uint, cash *models.CashPayment) (*models.Payment, error) {
	return r.record(invoiceID, func(tx *gorm.DB, p *models.Payment) error {
		if err := tx.Create(cash).Error; err != nil {
			return err
		}
		p.Method = models.PaymentMethodCash
		p.CashPaymentID = &cash.ID
		return nil
	})
}

func (r *paymentRepository) RecordCard(invoiceID uint, card *models.CardPayment) (*models.Payment, error) {
	return r.record(invoiceID, func(tx *gorm.DB, p *models.Payment) error {
		if err := tx.Create(card).Error; err != nil {
			return err
		}
		p.Method = models.PaymentMethodCard
		p.CardPaymentID = &card.ID
		return nil
	})
}

func (r *paymentRepository) RecordBankTransfer(invoiceID uint, bt *models.BankTransferPayment) (*models.Payment, error) {
	return r.record(invoiceID, func(tx *gorm.DB, p *models.Payment) error {
		if err := tx.Create(bt).Error; err != nil {
			return err
		}
		p.Method = models.PaymentMethodBankTransfer
		p.BankTransferPaymentID = &bt.ID
		return nil
	})
}

func (r *paymentRepository) RecordPaybill(invoiceID uint, pb *models.PaybillPayment) (*models.Payment, error) {
	return r.record(invoiceID, func(tx *gorm.DB, p *models.Payment) error {
		if err := tx.Create(pb).Error; err != nil {
			return err
		}
		p.Method = models.PaymentMethodPaybill
		p.PaybillPaymentID = &pb.ID
		return nil
	})
}

func (r *paymentRepository) ListByInvoice(invoiceID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where("invoice_id = ?", invoiceID).Order("id ASC").Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) record(invoiceID uint, fill func(tx *gorm.DB, p *models.Payment) error) (*models.Payment, error) {
	payment := &models.Payment{InvoiceID: invoiceID}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var invoice models.Invoice
		if err := tx.First(&invoice, invoiceID).Error; err != nil {
			return err
		}
		if err := fill(tx, payment); err != nil {
			return err
		}
		return tx.Create(payment).Error
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}
