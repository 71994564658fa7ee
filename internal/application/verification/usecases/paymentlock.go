package usecases

import "sync"

// PaymentLocks serializes work per payment_id so that status transitions
// for one payment never interleave. Different payments proceed concurrently.
// One instance is shared by every use case that mutates verification state.
type PaymentLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewPaymentLocks creates an empty lock registry.
func NewPaymentLocks() *PaymentLocks {
	return &PaymentLocks{locks: make(map[string]*lockEntry)}
}

// Lock acquires the per-payment lock and returns its unlock function.
func (l *PaymentLocks) Lock(paymentID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[paymentID]
	if !ok {
		entry = &lockEntry{}
		l.locks[paymentID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, paymentID)
		}
		l.mu.Unlock()
	}
}
