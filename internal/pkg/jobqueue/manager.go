package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fundilink/FundiLink/app/repository"
	"github.com/fundilink/FundiLink/internal/pkg/mpesa"
)

const (
	// A handset prompt that got no callback within this window is worth
	// asking the provider about.
	probeAfter    = 2 * time.Minute
	probeInterval = 1 * time.Minute
	probeBatch    = 50

	overdueSweepInterval = 10 * time.Minute
)

// Manager schedules and processes the reconciliation jobs: probing stuck
// STK transactions and sweeping overdue invoices.
type Manager struct {
	queue    *Queue
	payments *mpesa.Service
	invoices repository.InvoiceRepository
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewManager creates a reconciliation manager
func NewManager(payments *mpesa.Service, invoices repository.InvoiceRepository, workers int) *Manager {
	m := &Manager{
		payments: payments,
		invoices: invoices,
		stopCh:   make(chan struct{}),
	}
	m.queue = NewQueue(workers, m.process)
	return m
}

// Start launches the workers and the periodic schedulers
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true

	m.queue.Start()
	m.wg.Add(2)
	go m.scheduleProbes()
	go m.scheduleOverdueSweeps()
	log.Info("[JobQueue] Reconciliation manager started")
}

// Stop halts the schedulers and drains the workers
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stopCh)
	m.wg.Wait()
	m.queue.Stop()
}

func (m *Manager) scheduleProbes() {
	defer m.wg.Done()
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-probeAfter)
			ids, err := m.payments.StaleCheckoutRequestIDs(cutoff, probeBatch)
			if err != nil {
				log.Errorf("[JobQueue] Stale transaction scan failed: %v", err)
				continue
			}
			for _, id := range ids {
				if err := m.queue.Enqueue(NewProbeJob(id)); err != nil {
					log.Errorf("[JobQueue] Enqueue probe for %s failed: %v", id, err)
				}
			}
		}
	}
}

func (m *Manager) scheduleOverdueSweeps() {
	defer m.wg.Done()
	ticker := time.NewTicker(overdueSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			if err := m.queue.Enqueue(NewOverdueSweepJob()); err != nil {
				log.Errorf("[JobQueue] Enqueue overdue sweep failed: %v", err)
			}
		}
	}
}

func (m *Manager) process(ctx context.Context, job *Job) error {
	switch job.Type {
	case JobTypeProbeStkTransaction:
		return m.payments.ProbeTransaction(ctx, job.CheckoutRequestID)
	case JobTypeSweepOverdueInvoices:
		n, err := m.invoices.MarkOverdue(time.Now().UTC())
		if err != nil {
			return err
		}
		if n > 0 {
			log.Infof("[JobQueue] Marked %d invoices overdue", n)
		}
		return nil
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}
