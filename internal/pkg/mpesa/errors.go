package mpesa

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount       = errors.New("amount must be a whole number between 1 and 150000")
	ErrInvalidPhone        = errors.New("phone number is not a valid Kenyan MSISDN")
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrForbidden           = errors.New("caller may not act on this invoice")
	ErrAuthUnavailable     = errors.New("provider auth endpoint unavailable")
	ErrProviderUnavailable = errors.New("provider unreachable")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrCallbackMalformed   = errors.New("callback payload malformed")
)

// RejectedError carries the provider's synchronous refusal of an STK push.
// The description is meant to be shown to the paying customer verbatim.
type RejectedError struct {
	Code        string
	Description string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("provider rejected stk push: code=%s desc=%s", e.Code, e.Description)
}

// IsRejected unwraps a RejectedError from an error chain.
func IsRejected(err error) (*RejectedError, bool) {
	var re *RejectedError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
