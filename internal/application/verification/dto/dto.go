package dto

import (
	"encoding/json"
	"time"

	"payguard/internal/domain/verification"
	vo "payguard/internal/domain/verification/valueobjects"
)

// VerificationListItemDTO is the row shape consumed by the statistics view.
type VerificationListItemDTO struct {
	PaymentID    string    `json:"payment_id"`
	AmountUSD    string    `json:"amount_usd"`
	Chain        string    `json:"chain"`
	Status       string    `json:"status"`
	AutoApproved bool      `json:"auto_approved"`
	Confidence   int       `json:"confidence"`
	CreatedAt    time.Time `json:"created_at"`
	Reason       string    `json:"reason"`
}

// VerificationDetailDTO is the full result shape consumed by the
// verification detail view.
type VerificationDetailDTO struct {
	PaymentID          string          `json:"payment_id"`
	UserID             uint            `json:"user_id"`
	AmountUSD          string          `json:"amount_usd"`
	Chain              string          `json:"chain"`
	SenderAddress      *string         `json:"sender_wallet_address,omitempty"`
	TxHash             *string         `json:"transaction_hash,omitempty"`
	SenderName         string          `json:"sender_name,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	Status             string          `json:"verification_status"`
	BlockchainVerified bool            `json:"blockchain_verified"`
	Confidence         int             `json:"verification_confidence"`
	Checks             map[string]bool `json:"verification_checks,omitempty"`
	Errors             []string        `json:"verification_errors,omitempty"`
	BlockchainData     json.RawMessage `json:"blockchain_data,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	ExpiresAt          time.Time       `json:"expires_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	AuditTrail         []AuditEventDTO `json:"audit_trail,omitempty"`
}

// VerificationStatsDTO summarizes the engine's output for the dashboard.
type VerificationStatsDTO struct {
	Total          int64            `json:"total"`
	ByStatus       map[string]int64 `json:"by_status"`
	AutoApproved   int64            `json:"auto_approved"`
	AwaitingReview int64            `json:"awaiting_review"`
}

// AuditEventDTO is one entry of the append-only transition trail.
type AuditEventDTO struct {
	ID         string    `json:"id"`
	EventType  string    `json:"event_type"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Actor      string    `json:"actor"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListItemFromRecord maps a store record to the listing row shape.
func ListItemFromRecord(rec *verification.Record) VerificationListItemDTO {
	v := rec.Verification
	p := rec.Payment

	reason := ""
	if errs := v.VerificationErrors(); len(errs) > 0 {
		reason = errs[0]
	}

	return VerificationListItemDTO{
		PaymentID:    p.PaymentID(),
		AmountUSD:    p.AmountUSD().StringFixed(2),
		Chain:        p.Chain().String(),
		Status:       v.Status().String(),
		AutoApproved: v.Status() == vo.StatusAutoApproved,
		Confidence:   v.Confidence(),
		CreatedAt:    p.CreatedAt(),
		Reason:       reason,
	}
}

// DetailFromRecord maps a store record to the detail shape.
func DetailFromRecord(rec *verification.Record) VerificationDetailDTO {
	v := rec.Verification
	p := rec.Payment

	var checks map[string]bool
	if c := v.Checks(); c != nil {
		checks = c.Map()
	}

	var raw json.RawMessage
	if data := v.BlockchainData(); len(data) > 0 {
		raw = json.RawMessage(data)
	}

	return VerificationDetailDTO{
		PaymentID:          p.PaymentID(),
		UserID:             p.UserID(),
		AmountUSD:          p.AmountUSD().StringFixed(2),
		Chain:              p.Chain().String(),
		SenderAddress:      p.SenderAddress(),
		TxHash:             p.TxHash(),
		SenderName:         p.SenderName(),
		Notes:              p.Notes(),
		Status:             v.Status().String(),
		BlockchainVerified: v.BlockchainVerified(),
		Confidence:         v.Confidence(),
		Checks:             checks,
		Errors:             v.VerificationErrors(),
		BlockchainData:     raw,
		CreatedAt:          p.CreatedAt(),
		ExpiresAt:          p.ExpiresAt(),
		UpdatedAt:          v.UpdatedAt(),
	}
}

// EventDTO maps a domain audit event.
func EventDTO(e verification.AuditEvent) AuditEventDTO {
	return AuditEventDTO{
		ID:         e.ID,
		EventType:  e.EventType,
		FromStatus: e.FromStatus.String(),
		ToStatus:   e.ToStatus.String(),
		Actor:      e.Actor,
		Notes:      e.Notes,
		CreatedAt:  e.CreatedAt,
	}
}
