package models

import (
	"testing"
	"time"
)

func TestInvoiceTransitions(t *testing.T) {
	tests := []struct {
		from string
		to   string
		ok   bool
	}{
		{from: InvoiceStatusPending, to: InvoiceStatusPaid, ok: true},
		{from: InvoiceStatusPending, to: InvoiceStatusOverdue, ok: true},
		{from: InvoiceStatusPending, to: InvoiceStatusCancelled, ok: true},
		{from: InvoiceStatusPending, to: InvoiceStatusDeleted, ok: true},
		{from: InvoiceStatusOverdue, to: InvoiceStatusPaid, ok: true},
		{from: InvoiceStatusOverdue, to: InvoiceStatusDeleted, ok: true},
		{from: InvoiceStatusOverdue, to: InvoiceStatusCancelled, ok: false},
		{from: InvoiceStatusPaid, to: InvoiceStatusDeleted, ok: true},
		{from: InvoiceStatusPaid, to: InvoiceStatusPending, ok: false},
		{from: InvoiceStatusPaid, to: InvoiceStatusCancelled, ok: false},
		{from: InvoiceStatusCancelled, to: InvoiceStatusPaid, ok: false},
		{from: InvoiceStatusCancelled, to: InvoiceStatusDeleted, ok: true},
		{from: InvoiceStatusDeleted, to: InvoiceStatusPending, ok: false},
		{from: InvoiceStatusDeleted, to: InvoiceStatusPaid, ok: false},
	}

	for _, tt := range tests {
		inv := &Invoice{Status: tt.from}
		if got := inv.CanTransition(tt.to); got != tt.ok {
			t.Fatalf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestInvoiceIsPayable(t *testing.T) {
	for status, want := range map[string]bool{
		InvoiceStatusPending:   true,
		InvoiceStatusOverdue:   true,
		InvoiceStatusPaid:      false,
		InvoiceStatusCancelled: false,
		InvoiceStatusDeleted:   false,
	} {
		inv := &Invoice{Status: status}
		if got := inv.IsPayable(); got != want {
			t.Fatalf("IsPayable(%s) = %v, want %v", status, got, want)
		}
	}
}

func TestInvoiceValidate(t *testing.T) {
	now := time.Now().UTC()
	inv := &Invoice{
		ClientID:  1,
		Amount:    500,
		Status:    InvoiceStatusPending,
		CreatedOn: now,
		DueOn:     now.Add(24 * time.Hour),
	}
	if err := inv.Validate(); err != nil {
		t.Fatalf("valid invoice rejected: %v", err)
	}

	inv.DueOn = now.Add(-time.Hour)
	if err := inv.Validate(); err == nil {
		t.Fatal("due date before creation date accepted")
	}

	inv.DueOn = now.Add(24 * time.Hour)
	inv.Amount = 0
	if err := inv.Validate(); err == nil {
		t.Fatal("zero amount accepted")
	}

	inv.Amount = 500
	inv.Status = "bogus"
	if err := inv.Validate(); err == nil {
		t.Fatal("unknown status accepted")
	}
}
