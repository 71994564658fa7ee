// Package testutil provides in-memory fakes for verification use case tests.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"payguard/internal/domain/verification"
	vo "payguard/internal/domain/verification/valueobjects"
)

type verificationRow struct {
	status             vo.Status
	blockchainVerified bool
	confidence         int
	checks             *vo.CheckSet
	errors             []string
	blockchainData     []byte
	version            int
	createdAt          time.Time
	updatedAt          time.Time
}

// FakeStore is an in-memory verification.Store and verification.AuditLog.
// Get returns fresh aggregate copies; Save enforces the same conditional
// write a SQL store does (status and version must match the loaded row).
type FakeStore struct {
	mu       sync.Mutex
	payments map[string]*verification.ManualPayment
	order    []string
	rows     map[string]*verificationRow
	events   map[string][]verification.AuditEvent

	// SaveErr, when set, is returned by the next Save call and cleared.
	SaveErr error
}

// InlineTx runs the function directly; FakeStore writes are atomic per call,
// so tests need no real transaction semantics.
type InlineTx struct{}

func (InlineTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// NewFakeStore creates an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		payments: make(map[string]*verification.ManualPayment),
		rows:     make(map[string]*verificationRow),
		events:   make(map[string][]verification.AuditEvent),
	}
}

func (s *FakeStore) CreatePayment(_ context.Context, payment *verification.ManualPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.payments[payment.PaymentID()]; !seen {
		s.order = append(s.order, payment.PaymentID())
	}
	s.payments[payment.PaymentID()] = payment
	return nil
}

func (s *FakeStore) CreateVerification(_ context.Context, v *verification.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[v.PaymentID()] = &verificationRow{
		status:    v.Status(),
		version:   v.Version(),
		createdAt: v.CreatedAt(),
		updatedAt: v.UpdatedAt(),
	}
	s.events[v.PaymentID()] = append(s.events[v.PaymentID()], v.PullEvents()...)
	return nil
}

func (s *FakeStore) Get(_ context.Context, paymentID string) (*verification.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(paymentID)
}

func (s *FakeStore) getLocked(paymentID string) (*verification.Record, error) {
	payment, ok := s.payments[paymentID]
	if !ok {
		return nil, verification.ErrNotFound
	}
	row := s.rows[paymentID]

	var checks *vo.CheckSet
	if row.checks != nil {
		c := *row.checks
		checks = &c
	}

	v := verification.ReconstructVerification(
		paymentID,
		row.status,
		row.blockchainVerified,
		row.confidence,
		checks,
		append([]string(nil), row.errors...),
		append([]byte(nil), row.blockchainData...),
		row.version,
		row.createdAt,
		row.updatedAt,
	)
	return &verification.Record{Payment: payment, Verification: v}, nil
}

func (s *FakeStore) Save(_ context.Context, v *verification.Verification, expectedPriorStatus vo.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SaveErr != nil {
		err := s.SaveErr
		s.SaveErr = nil
		return err
	}

	row, ok := s.rows[v.PaymentID()]
	if !ok {
		return verification.ErrNotFound
	}
	if row.status != expectedPriorStatus || row.version != v.Version() {
		return verification.ErrConcurrentModification
	}

	var checks *vo.CheckSet
	if c := v.Checks(); c != nil {
		cc := *c
		checks = &cc
	}

	row.status = v.Status()
	row.blockchainVerified = v.BlockchainVerified()
	row.confidence = v.Confidence()
	row.checks = checks
	row.errors = append([]string(nil), v.VerificationErrors()...)
	row.blockchainData = append([]byte(nil), v.BlockchainData()...)
	row.version++
	row.updatedAt = v.UpdatedAt()

	s.events[v.PaymentID()] = append(s.events[v.PaymentID()], v.PullEvents()...)
	return nil
}

// HashOwner attributes a contested hash to the earliest submission, matching
// the SQL store's created_at ordering via insertion order.
func (s *FakeStore) HashOwner(_ context.Context, chain vo.Chain, hash string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		p := s.payments[id]
		if p.Chain() != chain || p.TxHash() == nil {
			continue
		}
		if strings.EqualFold(*p.TxHash(), hash) {
			return id, nil
		}
	}
	return "", nil
}

func (s *FakeStore) ListByStatus(_ context.Context, statuses []vo.Status, page, pageSize int) ([]*verification.Record, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[vo.Status]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}

	var matched []*verification.Record
	for id, row := range s.rows {
		if len(wanted) > 0 && !wanted[row.status] {
			continue
		}
		rec, err := s.getLocked(id)
		if err != nil {
			return nil, 0, err
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Payment.CreatedAt().After(matched[j].Payment.CreatedAt())
	})

	total := int64(len(matched))
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *FakeStore) ListExpiryCandidates(_ context.Context, now time.Time, includeBlockchainFailed bool) ([]*verification.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*verification.Record
	for id, row := range s.rows {
		if !row.status.CanExpire(includeBlockchainFailed) {
			continue
		}
		if !s.payments[id].IsExpired(now) {
			continue
		}
		rec, err := s.getLocked(id)
		if err != nil {
			return nil, err
		}
		matched = append(matched, rec)
	}
	return matched, nil
}

func (s *FakeStore) ListAwaitingChainCheck(_ context.Context, limit int) ([]*verification.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*verification.Record
	for id, row := range s.rows {
		if row.status != vo.StatusPending {
			continue
		}
		rec, err := s.getLocked(id)
		if err != nil {
			return nil, err
		}
		matched = append(matched, rec)
		if len(matched) == limit {
			break
		}
	}
	return matched, nil
}

func (s *FakeStore) CountByStatus(_ context.Context) (map[vo.Status]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[vo.Status]int64)
	for _, row := range s.rows {
		counts[row.status]++
	}
	return counts, nil
}

func (s *FakeStore) ListByPayment(_ context.Context, paymentID string) ([]verification.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]verification.AuditEvent(nil), s.events[paymentID]...), nil
}

// Status returns the persisted status of a payment, for assertions.
func (s *FakeStore) Status(paymentID string) vo.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[paymentID]
	if !ok {
		return ""
	}
	return row.status
}

// Version returns the persisted version of a payment row, for assertions.
func (s *FakeStore) Version(paymentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[paymentID]
	if !ok {
		return -1
	}
	return row.version
}

// Events returns the recorded audit events for a payment, for assertions.
func (s *FakeStore) Events(paymentID string) []verification.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]verification.AuditEvent(nil), s.events[paymentID]...)
}
