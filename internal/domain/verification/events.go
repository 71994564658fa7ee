package verification

import (
	"time"

	"github.com/google/uuid"

	vo "payguard/internal/domain/verification/valueobjects"
	"payguard/internal/shared/biztime"
)

// Audit event types. Status transitions are append-only audit events; the
// latest VerificationResult values are not historized beyond them.
const (
	EventSubmitted      = "submitted"
	EventScored         = "scored"
	EventChainVerified  = "chain_verified"
	EventChainFailed    = "chain_failed"
	EventChainUnreached = "chain_unreachable"
	EventAutoApproved   = "auto_approved"
	EventManualReview   = "manual_review_required"
	EventAdminApproved  = "admin_approved"
	EventAdminRejected  = "admin_rejected"
	EventExpired        = "expired"
)

// AuditEvent records one status transition or verification finding.
type AuditEvent struct {
	ID         string
	PaymentID  string
	EventType  string
	FromStatus vo.Status
	ToStatus   vo.Status
	Actor      string // "system" or the acting admin identifier
	Notes      string
	CreatedAt  time.Time
}

// SystemActor is the actor recorded for engine-initiated transitions.
const SystemActor = "system"

func newAuditEvent(paymentID, eventType string, from, to vo.Status, actor, notes string) AuditEvent {
	return AuditEvent{
		ID:         uuid.NewString(),
		PaymentID:  paymentID,
		EventType:  eventType,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Notes:      notes,
		CreatedAt:  biztime.NowUTC(),
	}
}
