package verification

import (
	"context"
	"time"

	vo "payguard/internal/domain/verification/valueobjects"
)

// Record pairs a payment snapshot with its current verification result.
type Record struct {
	Payment      *ManualPayment
	Verification *Verification
}

// Store is the persistence boundary of the verification engine. The engine
// is the only writer of verification results; all writes are conditional on
// the last known status and version to prevent lost updates.
type Store interface {
	// CreatePayment persists a newly submitted payment snapshot.
	CreatePayment(ctx context.Context, payment *ManualPayment) error

	// CreateVerification persists the initial result for a payment.
	CreateVerification(ctx context.Context, v *Verification) error

	// Get returns the payment and its current verification result.
	Get(ctx context.Context, paymentID string) (*Record, error)

	// Save writes the result with optimistic concurrency: the row must still
	// carry expectedPriorStatus and the aggregate's pre-mutation version,
	// otherwise ErrConcurrentModification is returned. Audit events pulled
	// from the aggregate are appended in the same transaction.
	Save(ctx context.Context, v *Verification, expectedPriorStatus vo.Status) error

	// HashOwner returns the payment_id a transaction hash is attributed to
	// on the given chain, or "" when the hash is unclaimed. A contested hash
	// belongs to its earliest-created claim; later claims fail the
	// duplicate check, the original keeps passing it on re-checks.
	HashOwner(ctx context.Context, chain vo.Chain, hash string) (string, error)

	// ListByStatus returns records filtered by status (all when empty),
	// newest first, paginated.
	ListByStatus(ctx context.Context, statuses []vo.Status, page, pageSize int) ([]*Record, int64, error)

	// ListExpiryCandidates returns records whose review window elapsed at
	// now and whose status the expiry sweep may reap.
	ListExpiryCandidates(ctx context.Context, now time.Time, includeBlockchainFailed bool) ([]*Record, error)

	// ListAwaitingChainCheck returns pending records for the background
	// re-verification pump, oldest first.
	ListAwaitingChainCheck(ctx context.Context, limit int) ([]*Record, error)

	// CountByStatus returns record counts grouped by verification status.
	CountByStatus(ctx context.Context) (map[vo.Status]int64, error)
}

// AuditLog reads the append-only transition trail.
type AuditLog interface {
	ListByPayment(ctx context.Context, paymentID string) ([]AuditEvent, error)
}
