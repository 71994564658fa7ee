package usecases

import (
	"context"
	"fmt"
	"sync"

	"payguard/internal/domain/verification"
	"payguard/internal/shared/goroutine"
	"payguard/internal/shared/logger"
)

// VerificationQueue feeds payments to a fixed pool of verification workers.
// A payment already queued or being verified is not enqueued twice; the
// per-payment lock inside VerifyPaymentUseCase serializes any stragglers.
type VerificationQueue struct {
	verify *VerifyPaymentUseCase
	store  verification.Store
	logger logger.Interface

	workers   int
	pumpLimit int

	tasks chan string

	mu       sync.Mutex
	inFlight map[string]struct{}

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewVerificationQueue creates a queue with the given worker pool size and
// channel capacity.
func NewVerificationQueue(
	verify *VerifyPaymentUseCase,
	store verification.Store,
	workers, queueSize int,
	log logger.Interface,
) *VerificationQueue {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}
	return &VerificationQueue{
		verify:    verify,
		store:     store,
		logger:    log,
		workers:   workers,
		pumpLimit: queueSize / 2,
		tasks:     make(chan string, queueSize),
		inFlight:  make(map[string]struct{}),
		stopChan:  make(chan struct{}),
	}
}

// Start launches the worker pool.
func (q *VerificationQueue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		name := fmt.Sprintf("verification-worker-%d", i)
		goroutine.SafeGo(q.logger, name, func() {
			defer q.wg.Done()
			q.runWorker()
		})
	}
	q.logger.Infow("verification queue started", "workers", q.workers, "capacity", cap(q.tasks))
}

// Stop drains in-flight work and shuts the pool down. Safe to call twice.
func (q *VerificationQueue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopChan)
	})
	q.wg.Wait()
	q.logger.Infow("verification queue stopped")
}

// Enqueue schedules a verification pass for the payment. Returns false when
// the payment is already in flight or the queue is full; either way the
// background pump will retry it while it stays pending.
func (q *VerificationQueue) Enqueue(paymentID string) bool {
	q.mu.Lock()
	if _, dup := q.inFlight[paymentID]; dup {
		q.mu.Unlock()
		return true
	}
	q.inFlight[paymentID] = struct{}{}
	q.mu.Unlock()

	select {
	case q.tasks <- paymentID:
		return true
	default:
		q.release(paymentID)
		return false
	}
}

// Pump enqueues payments still awaiting an on-chain result, picking up
// submissions dropped on a full queue and candidates waiting out their
// confirmation count.
func (q *VerificationQueue) Pump(ctx context.Context) error {
	records, err := q.store.ListAwaitingChainCheck(ctx, q.pumpLimit)
	if err != nil {
		return err
	}

	enqueued := 0
	for _, rec := range records {
		if q.Enqueue(rec.Payment.PaymentID()) {
			enqueued++
		}
	}

	if enqueued > 0 {
		q.logger.Debugw("pending verification pump", "candidates", len(records), "enqueued", enqueued)
	}
	return nil
}

func (q *VerificationQueue) release(paymentID string) {
	q.mu.Lock()
	delete(q.inFlight, paymentID)
	q.mu.Unlock()
}

func (q *VerificationQueue) runWorker() {
	for {
		select {
		case <-q.stopChan:
			return
		case paymentID := <-q.tasks:
			q.process(paymentID)
		}
	}
}

func (q *VerificationQueue) process(paymentID string) {
	defer q.release(paymentID)

	ctx, cancel := context.WithTimeout(context.Background(), workerPassTimeout)
	defer cancel()

	if _, err := q.verify.Execute(ctx, paymentID); err != nil {
		q.logger.Errorw("verification pass failed",
			"payment_id", paymentID,
			"error", err,
		)
	}
}
