package mpesa

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/fundilink/FundiLink/app/models"
	"github.com/fundilink/FundiLink/app/repository"
	"github.com/fundilink/FundiLink/internal/pkg/mail"
)

// The whole initiation (two commits with one network call in between) must
// finish inside this deadline.
const initiateDeadline = 45 * time.Second

// Service is the entry point for authenticated callers: it owns the STK
// initiation sequence and the on-demand status probe.
type Service struct {
	cfg      Config
	store    *Store
	client   *Client
	tokens   *TokenCache
	invoices repository.InvoiceRepository
	users    repository.UserRepository
}

func NewService(cfg Config, store *Store, client *Client, tokens *TokenCache, invoices repository.InvoiceRepository, users repository.UserRepository) *Service {
	return &Service{
		cfg:      cfg,
		store:    store,
		client:   client,
		tokens:   tokens,
		invoices: invoices,
		users:    users,
	}
}

// NewServiceFromDB wires the service with live provider clients.
func NewServiceFromDB(db *gorm.DB) *Service {
	cfg := NewConfigFromEnv()
	return NewService(
		cfg,
		NewStore(db),
		NewClient(cfg),
		NewTokenCache(cfg, true),
		repository.NewInvoiceRepository(db),
		repository.NewUserRepository(db),
	)
}

// StkPushInput carries a caller's payment request after authentication.
type StkPushInput struct {
	UserID      uint
	IsAdmin     bool
	Amount      int
	PhoneNumber string
	InvoiceID   *uint
	Description string
}

// StkPushResult is what the HTTP layer returns on a successful initiation.
type StkPushResult struct {
	TransactionID     uint
	PaymentID         *uint
	CheckoutRequestID string
	CustomerMessage   string
}

// InitiateStkPush validates the request, persists a pending transaction,
// pushes the prompt to the subscriber's handset and records the provider's
// synchronous verdict. The pending row always exists before any external
// call; a Payment row is created only when the provider accepted.
func (s *Service) InitiateStkPush(ctx context.Context, in StkPushInput) (*StkPushResult, error) {
	ctx, cancel := context.WithTimeout(ctx, initiateDeadline)
	defer cancel()

	if in.Amount < MinAmount || in.Amount > MaxAmount {
		return nil, ErrInvalidAmount
	}

	msisdn, err := NormalizePhone(in.PhoneNumber)
	if err != nil {
		return nil, err
	}

	accountRef := ""
	if in.InvoiceID != nil {
		invoice, err := s.invoices.GetByID(*in.InvoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrInvoiceNotFound
			}
			return nil, err
		}
		if !in.IsAdmin && invoice.ClientID != in.UserID {
			return nil, ErrForbidden
		}
		accountRef = fmt.Sprintf("INV-%d", invoice.ID)
	}

	// Commit boundary A: the pending row exists before any provider call.
	mm, err := s.store.CreatePending(in.UserID, in.Amount, msisdn, in.InvoiceID)
	if err != nil {
		return nil, err
	}
	if accountRef == "" {
		accountRef = mm.InternalRef
	}

	token, err := s.tokens.Get(ctx)
	if err != nil {
		if ferr := s.store.MarkFailed(mm.ID, "auth token acquisition failed"); ferr != nil {
			log.Printf("mpesa: mark failed after auth error on tx %d: %v", mm.ID, ferr)
		}
		return nil, err
	}

	timestamp, password := Sign(s.cfg.BusinessShortcode, s.cfg.Passkey, time.Now())

	description := in.Description
	if description == "" {
		description = "FundiLink"
	}

	resp, err := s.client.StkPush(ctx, token, in.Amount, msisdn, accountRef, description, timestamp, password)
	if err != nil {
		if ferr := s.store.MarkFailed(mm.ID, "provider unreachable"); ferr != nil {
			log.Printf("mpesa: mark failed after transport error on tx %d: %v", mm.ID, ferr)
		}
		return nil, err
	}

	// Commit boundary B: correlation IDs, and the Payment row when accepted.
	mm, payment, err := s.store.AttachInitiation(mm.ID, resp, in.InvoiceID != nil)
	if err != nil {
		return nil, err
	}

	if !resp.Accepted() {
		return nil, &RejectedError{Code: resp.ResponseCode, Description: resp.Description()}
	}

	result := &StkPushResult{
		TransactionID:     mm.ID,
		CheckoutRequestID: resp.CheckoutRequestID,
		CustomerMessage:   resp.CustomerMessage,
	}
	if payment != nil {
		result.PaymentID = &payment.ID
	}
	return result, nil
}

// TransactionStatus implements the probe: it returns the stored state when
// the callback already landed, otherwise it asks the provider and converges
// the local row. Invoices are never promoted from a probe.
func (s *Service) TransactionStatus(ctx context.Context, checkoutRequestID string, userID uint, isAdmin bool) (*models.MpesaTransaction, error) {
	mm, err := s.store.GetByCheckoutRequestID(checkoutRequestID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(mm, userID, isAdmin); err != nil {
		return nil, err
	}

	if mm.CallbackReceived {
		return mm, nil
	}

	token, err := s.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}
	timestamp, password := Sign(s.cfg.BusinessShortcode, s.cfg.Passkey, time.Now())

	res, err := s.client.StkQuery(ctx, token, checkoutRequestID, timestamp, password)
	if err != nil {
		if errors.Is(err, ErrResultPending) {
			// Prompt still outstanding; report what we have.
			return mm, nil
		}
		return nil, err
	}

	return s.store.ProbeUpdate(checkoutRequestID, res)
}

// StaleCheckoutRequestIDs lists checkout requests that reached the provider
// but saw no callback since before the cutoff. Used by the reconciler.
func (s *Service) StaleCheckoutRequestIDs(cutoff time.Time, limit int) ([]string, error) {
	rows, err := s.store.ListStalePending(cutoff, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, mm := range rows {
		if mm.CheckoutRequestID != nil {
			ids = append(ids, *mm.CheckoutRequestID)
		}
	}
	return ids, nil
}

// ProbeTransaction runs the status probe on behalf of the reconciler.
func (s *Service) ProbeTransaction(ctx context.Context, checkoutRequestID string) error {
	_, err := s.TransactionStatus(ctx, checkoutRequestID, 0, true)
	return err
}

// GetTransaction returns a single transaction the caller may see.
func (s *Service) GetTransaction(id uint, userID uint, isAdmin bool) (*models.MpesaTransaction, error) {
	mm, err := s.store.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(mm, userID, isAdmin); err != nil {
		return nil, err
	}
	return mm, nil
}

// ListTransactions returns a page of transactions scoped to the caller
// unless they are an admin.
func (s *Service) ListTransactions(f ListFilter, userID uint, isAdmin bool) ([]models.MpesaTransaction, int64, error) {
	if !isAdmin {
		f.UserID = userID
	}
	return s.store.List(f)
}

// HandleCallback applies a provider callback envelope idempotently. A first
// successful application triggers a best-effort receipt mail.
func (s *Service) HandleCallback(raw []byte) (CallbackOutcome, error) {
	res, err := ParseCallback(raw)
	if err != nil {
		return CallbackApplied, err
	}
	outcome, mm, err := s.store.ApplyCallback(res, raw)
	if err != nil {
		return outcome, err
	}
	if outcome == CallbackApplied && mm.Status == models.MpesaStatusCompleted {
		go s.sendReceipt(mm)
	}
	return outcome, nil
}

func (s *Service) sendReceipt(mm *models.MpesaTransaction) {
	user, err := s.users.GetByID(mm.UserID)
	if err != nil {
		log.Printf("mpesa: receipt mail skipped, user %d lookup failed: %v", mm.UserID, err)
		return
	}
	receipt := ""
	if mm.MpesaReceiptNumber != nil {
		receipt = *mm.MpesaReceiptNumber
	}
	if err := mail.SendPaymentReceipt(user.Email, user.Name, mm.Amount, receipt, mm.InvoiceID); err != nil {
		log.Printf("mpesa: receipt mail to user %d failed: %v", user.ID, err)
	}
}

func (s *Service) authorize(mm *models.MpesaTransaction, userID uint, isAdmin bool) error {
	if isAdmin || mm.UserID == userID {
		return nil
	}
	if mm.InvoiceID != nil {
		invoice, err := s.invoices.GetByID(*mm.InvoiceID)
		if err == nil && invoice.ClientID == userID {
			return nil
		}
	}
	return ErrForbidden
}
