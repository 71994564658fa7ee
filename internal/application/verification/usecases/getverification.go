package usecases

import (
	"context"

	"payguard/internal/application/verification/dto"
	"payguard/internal/domain/verification"
)

// GetVerificationUseCase returns the full verification state of one payment
// together with its audit trail.
type GetVerificationUseCase struct {
	store verification.Store
	audit verification.AuditLog
}

// NewGetVerificationUseCase creates a new GetVerificationUseCase.
func NewGetVerificationUseCase(store verification.Store, audit verification.AuditLog) *GetVerificationUseCase {
	return &GetVerificationUseCase{store: store, audit: audit}
}

// Execute loads the record and its audit events.
func (uc *GetVerificationUseCase) Execute(ctx context.Context, paymentID string) (*dto.VerificationDetailDTO, error) {
	rec, err := uc.store.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	events, err := uc.audit.ListByPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	detail := dto.DetailFromRecord(rec)
	detail.AuditTrail = make([]dto.AuditEventDTO, 0, len(events))
	for _, e := range events {
		detail.AuditTrail = append(detail.AuditTrail, dto.EventDTO(e))
	}

	return &detail, nil
}
