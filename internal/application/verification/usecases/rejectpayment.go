package usecases

import (
	"context"

	"payguard/internal/application/verification/dto"
	"payguard/internal/domain/verification"
	"payguard/internal/shared/logger"
)

// RejectPaymentCommand carries an admin rejection decision.
type RejectPaymentCommand struct {
	PaymentID string
	AdminID   string
	Notes     string
}

// RejectPaymentUseCase applies an admin rejection to a payment awaiting a
// decision, with the same idempotency rules as approval.
type RejectPaymentUseCase struct {
	store  verification.Store
	locks  *PaymentLocks
	logger logger.Interface
}

// NewRejectPaymentUseCase creates a new RejectPaymentUseCase.
func NewRejectPaymentUseCase(store verification.Store, locks *PaymentLocks, log logger.Interface) *RejectPaymentUseCase {
	return &RejectPaymentUseCase{
		store:  store,
		locks:  locks,
		logger: log,
	}
}

// Execute applies the rejection and returns the resulting record state.
func (uc *RejectPaymentUseCase) Execute(ctx context.Context, cmd RejectPaymentCommand) (*dto.VerificationDetailDTO, error) {
	unlock := uc.locks.Lock(cmd.PaymentID)
	defer unlock()

	rec, err := uc.store.Get(ctx, cmd.PaymentID)
	if err != nil {
		return nil, err
	}

	v := rec.Verification
	loadedStatus := v.Status()

	if err := v.Reject(cmd.AdminID, cmd.Notes); err != nil {
		return nil, err
	}

	if v.Status() == loadedStatus {
		detail := dto.DetailFromRecord(rec)
		return &detail, nil
	}

	if err := uc.store.Save(ctx, v, loadedStatus); err != nil {
		return nil, err
	}

	uc.logger.Infow("payment rejected by admin",
		"payment_id", cmd.PaymentID,
		"admin_id", cmd.AdminID,
		"from_status", loadedStatus,
	)

	detail := dto.DetailFromRecord(rec)
	return &detail, nil
}
