package jobqueue

import (
	"time"

	"github.com/google/uuid"
)

// JobType identifies what a background job does
type JobType string

const (
	// JobTypeProbeStkTransaction asks the provider for the verdict on a
	// transaction whose callback never arrived.
	JobTypeProbeStkTransaction JobType = "probe_stk_transaction"
	// JobTypeSweepOverdueInvoices flips pending invoices past their due date.
	JobTypeSweepOverdueInvoices JobType = "sweep_overdue_invoices"
)

// JobStatus represents the lifecycle state of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is the unit of work carried through Redis
type Job struct {
	ID                string    `json:"id"`
	Type              JobType   `json:"type"`
	Status            JobStatus `json:"status"`
	CheckoutRequestID string    `json:"checkout_request_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	Attempts          int       `json:"attempts"`
	MaxRetries        int       `json:"max_retries"`
	LastError         string    `json:"last_error,omitempty"`
}

// NewProbeJob creates a job that probes one checkout request
func NewProbeJob(checkoutRequestID string) *Job {
	return &Job{
		ID:                uuid.New().String(),
		Type:              JobTypeProbeStkTransaction,
		Status:            JobStatusPending,
		CheckoutRequestID: checkoutRequestID,
		CreatedAt:         time.Now().UTC(),
		MaxRetries:        DefaultMaxRetries,
	}
}

// NewOverdueSweepJob creates a job that marks overdue invoices
func NewOverdueSweepJob() *Job {
	return &Job{
		ID:         uuid.New().String(),
		Type:       JobTypeSweepOverdueInvoices,
		Status:     JobStatusPending,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: DefaultMaxRetries,
	}
}
