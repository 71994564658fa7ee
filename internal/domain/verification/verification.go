package verification

import (
	"fmt"
	"time"

	vo "payguard/internal/domain/verification/valueobjects"
	"payguard/internal/shared/biztime"
)

// Verification is the engine-owned verification result for one manual payment.
// There is exactly one current result per payment_id; it is recomputed on
// re-evaluation while status transitions are emitted as append-only audit events.
type Verification struct {
	paymentID string

	status             vo.Status
	blockchainVerified bool
	confidence         int
	checks             *vo.CheckSet
	verificationErrors []string
	blockchainData     []byte

	version   int
	createdAt time.Time
	updatedAt time.Time

	events []AuditEvent
}

// NewVerification creates the initial result for a freshly submitted payment.
func NewVerification(paymentID string) (*Verification, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("payment ID is required")
	}

	now := biztime.NowUTC()
	v := &Verification{
		paymentID: paymentID,
		status:    vo.StatusPending,
		createdAt: now,
		updatedAt: now,
	}
	v.record(EventSubmitted, vo.StatusPending, vo.StatusPending, SystemActor, "payment submitted")
	return v, nil
}

// touch refreshes updatedAt. The version field is the optimistic-concurrency
// token: it reflects the persisted row and is only advanced by the store on a
// successful conditional write, not by in-memory mutations.
func (v *Verification) touch() {
	v.updatedAt = biztime.NowUTC()
}

func (v *Verification) record(eventType string, from, to vo.Status, actor, notes string) {
	v.events = append(v.events, newAuditEvent(v.paymentID, eventType, from, to, actor, notes))
}

// ApplyScore records the heuristic confidence score. Below-threshold payments
// move straight to manual review; candidates stay pending until the chain
// cross-check settles them. Reasons replace the previous failure list since
// the result is recomputed, not historized.
func (v *Verification) ApplyScore(score int, reasons []string, threshold int) (candidate bool, err error) {
	if v.status == vo.StatusExpired {
		return false, ErrExpiredPayment
	}
	if v.status.IsTerminal() {
		return false, fmt.Errorf("cannot re-score payment with status %s", v.status)
	}

	v.confidence = score
	v.verificationErrors = append([]string(nil), reasons...)
	candidate = score >= threshold

	from := v.status
	v.record(EventScored, from, v.status, SystemActor, fmt.Sprintf("confidence score %d", score))

	if !candidate && v.status == vo.StatusPending {
		v.status = vo.StatusManualReviewRequired
		v.record(EventManualReview, from, v.status, SystemActor,
			fmt.Sprintf("score %d below auto-approval threshold %d", score, threshold))
	}

	v.touch()
	return candidate, nil
}

// definitiveFailure reports whether a failed check is a terminal negative
// finding rather than a not-yet-confirmed state. Insufficient confirmation
// depth is the only soft failure: the transaction may still settle.
func definitiveFailure(checks vo.CheckSet) bool {
	return !checks.NoDuplicates ||
		!checks.TransactionExists ||
		!checks.SenderVerified ||
		!checks.RecipientVerified ||
		!checks.AmountVerified ||
		!checks.TimeValid
}

// ApplyChainChecks folds a completed chain adapter pass into the result.
// A fully passing check set promotes auto-approval candidates; a definitive
// contradiction downgrades to blockchain_failed even from auto_approved.
func (v *Verification) ApplyChainChecks(checks vo.CheckSet, raw []byte, reasons []string, candidate bool) error {
	if v.status == vo.StatusExpired {
		return ErrExpiredPayment
	}
	if v.status.IsTerminal() {
		return fmt.Errorf("cannot apply chain checks to payment with status %s", v.status)
	}

	v.checks = &checks
	v.blockchainData = raw
	v.verificationErrors = append(v.verificationErrors, reasons...)

	from := v.status

	switch {
	case checks.AllPassed():
		v.blockchainVerified = true
		v.confidence = 100
		if candidate {
			v.status = vo.StatusAutoApproved
			v.record(EventAutoApproved, from, v.status, SystemActor, "all blockchain checks passed")
		} else {
			if v.status == vo.StatusPending {
				v.status = vo.StatusManualReviewRequired
			}
			v.record(EventChainVerified, from, v.status, SystemActor, "all blockchain checks passed, score below threshold")
		}

	case definitiveFailure(checks):
		v.blockchainVerified = false
		v.status = vo.StatusBlockchainFailed
		v.record(EventChainFailed, from, v.status, SystemActor,
			fmt.Sprintf("failed checks: %v", checks.FailedNames()))

	default:
		// Only confirmation depth is outstanding. Candidates stay pending so
		// the background pump re-checks; everything else goes to a human.
		v.blockchainVerified = false
		if !candidate && v.status == vo.StatusPending {
			v.status = vo.StatusManualReviewRequired
			v.record(EventManualReview, from, v.status, SystemActor, "awaiting confirmations, score below threshold")
		}
	}

	v.touch()
	return nil
}

// MarkChainUnavailable records a transient verification failure. The payment
// falls back to manual review with its scoring confidence retained; it is
// never auto-approved on unverifiable chain data.
func (v *Verification) MarkChainUnavailable(reason string) error {
	if v.status == vo.StatusExpired {
		return ErrExpiredPayment
	}
	if v.status.IsTerminal() {
		return fmt.Errorf("cannot mark payment with status %s as unverifiable", v.status)
	}

	v.verificationErrors = append(v.verificationErrors, reason)

	from := v.status
	if v.status == vo.StatusPending {
		v.status = vo.StatusManualReviewRequired
	}
	v.record(EventChainUnreached, from, v.status, SystemActor, reason)

	v.touch()
	return nil
}

// Approve records a terminal admin approval. Re-issuing the same decision is
// a no-op; contradicting a recorded rejection is an error.
func (v *Verification) Approve(admin, notes string) error {
	switch {
	case v.status == vo.StatusApproved:
		return nil
	case v.status == vo.StatusRejected:
		return ErrDecisionConflict
	case v.status == vo.StatusExpired:
		return ErrExpiredPayment
	case !v.status.IsDecidable():
		return fmt.Errorf("cannot approve payment with status %s", v.status)
	}

	from := v.status
	v.status = vo.StatusApproved
	v.record(EventAdminApproved, from, v.status, admin, notes)
	v.touch()
	return nil
}

// Reject records a terminal admin rejection, symmetric to Approve.
func (v *Verification) Reject(admin, notes string) error {
	switch {
	case v.status == vo.StatusRejected:
		return nil
	case v.status == vo.StatusApproved:
		return ErrDecisionConflict
	case v.status == vo.StatusExpired:
		return ErrExpiredPayment
	case !v.status.IsDecidable():
		return fmt.Errorf("cannot reject payment with status %s", v.status)
	}

	from := v.status
	v.status = vo.StatusRejected
	v.record(EventAdminRejected, from, v.status, admin, notes)
	v.touch()
	return nil
}

// Expire reaps a record past its review window. Returns true when a
// transition happened; reaping an already-expired record is a no-op.
func (v *Verification) Expire(expireBlockchainFailed bool) (bool, error) {
	if v.status == vo.StatusExpired {
		return false, nil
	}
	if !v.status.CanExpire(expireBlockchainFailed) {
		return false, nil
	}

	from := v.status
	v.status = vo.StatusExpired
	v.record(EventExpired, from, v.status, SystemActor, "review window elapsed")
	v.touch()
	return true, nil
}

// PullEvents drains the audit events accumulated by transitions since the
// last pull. The store appends them atomically with the Save.
func (v *Verification) PullEvents() []AuditEvent {
	events := v.events
	v.events = nil
	return events
}

func (v *Verification) PaymentID() string {
	return v.paymentID
}

func (v *Verification) Status() vo.Status {
	return v.status
}

func (v *Verification) BlockchainVerified() bool {
	return v.blockchainVerified
}

func (v *Verification) Confidence() int {
	return v.confidence
}

// Checks returns the latest chain check set, nil before the first chain pass.
func (v *Verification) Checks() *vo.CheckSet {
	return v.checks
}

func (v *Verification) VerificationErrors() []string {
	return v.verificationErrors
}

// BlockchainData returns the opaque raw adapter payload, nil when absent.
func (v *Verification) BlockchainData() []byte {
	return v.blockchainData
}

func (v *Verification) Version() int {
	return v.version
}

func (v *Verification) CreatedAt() time.Time {
	return v.createdAt
}

func (v *Verification) UpdatedAt() time.Time {
	return v.updatedAt
}

// ReconstructVerification creates a Verification instance from persistence.
func ReconstructVerification(
	paymentID string,
	status vo.Status,
	blockchainVerified bool,
	confidence int,
	checks *vo.CheckSet,
	verificationErrors []string,
	blockchainData []byte,
	version int,
	createdAt, updatedAt time.Time,
) *Verification {
	return &Verification{
		paymentID:          paymentID,
		status:             status,
		blockchainVerified: blockchainVerified,
		confidence:         confidence,
		checks:             checks,
		verificationErrors: verificationErrors,
		blockchainData:     blockchainData,
		version:            version,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
	}
}
