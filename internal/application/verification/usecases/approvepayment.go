package usecases

import (
	"context"

	"payguard/internal/application/verification/dto"
	"payguard/internal/domain/verification"
	"payguard/internal/shared/logger"
)

// ApprovePaymentCommand carries an admin approval decision.
type ApprovePaymentCommand struct {
	PaymentID string
	AdminID   string
	Notes     string
}

// ApprovePaymentUseCase applies an admin approval to a payment awaiting a
// decision. Repeating the same decision is a no-op; a contradicting decision
// on an already-decided payment is rejected.
type ApprovePaymentUseCase struct {
	store  verification.Store
	locks  *PaymentLocks
	logger logger.Interface
}

// NewApprovePaymentUseCase creates a new ApprovePaymentUseCase.
func NewApprovePaymentUseCase(store verification.Store, locks *PaymentLocks, log logger.Interface) *ApprovePaymentUseCase {
	return &ApprovePaymentUseCase{
		store:  store,
		locks:  locks,
		logger: log,
	}
}

// Execute applies the approval and returns the resulting record state.
func (uc *ApprovePaymentUseCase) Execute(ctx context.Context, cmd ApprovePaymentCommand) (*dto.VerificationDetailDTO, error) {
	unlock := uc.locks.Lock(cmd.PaymentID)
	defer unlock()

	rec, err := uc.store.Get(ctx, cmd.PaymentID)
	if err != nil {
		return nil, err
	}

	v := rec.Verification
	loadedStatus := v.Status()

	if err := v.Approve(cmd.AdminID, cmd.Notes); err != nil {
		return nil, err
	}

	if v.Status() == loadedStatus {
		// Same decision repeated: nothing to persist.
		detail := dto.DetailFromRecord(rec)
		return &detail, nil
	}

	if err := uc.store.Save(ctx, v, loadedStatus); err != nil {
		return nil, err
	}

	uc.logger.Infow("payment approved by admin",
		"payment_id", cmd.PaymentID,
		"admin_id", cmd.AdminID,
		"from_status", loadedStatus,
	)

	detail := dto.DetailFromRecord(rec)
	return &detail, nil
}
