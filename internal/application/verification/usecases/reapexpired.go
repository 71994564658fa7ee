package usecases

import (
	"context"
	"errors"

	"payguard/internal/domain/verification"
	"payguard/internal/shared/biztime"
	"payguard/internal/shared/logger"
)

// ReapExpiredUseCase sweeps payments whose review window has lapsed and
// transitions them to expired. The sweep is idempotent: a payment decided
// or already expired between listing and locking is skipped.
type ReapExpiredUseCase struct {
	store                  verification.Store
	locks                  *PaymentLocks
	expireBlockchainFailed bool
	logger                 logger.Interface
}

// NewReapExpiredUseCase creates a new ReapExpiredUseCase.
func NewReapExpiredUseCase(
	store verification.Store,
	locks *PaymentLocks,
	expireBlockchainFailed bool,
	log logger.Interface,
) *ReapExpiredUseCase {
	return &ReapExpiredUseCase{
		store:                  store,
		locks:                  locks,
		expireBlockchainFailed: expireBlockchainFailed,
		logger:                 log,
	}
}

// Execute runs one sweep and returns the number of payments expired.
func (uc *ReapExpiredUseCase) Execute(ctx context.Context) (int, error) {
	candidates, err := uc.store.ListExpiryCandidates(ctx, biztime.NowUTC(), uc.expireBlockchainFailed)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range candidates {
		paymentID := candidate.Payment.PaymentID()
		transitioned, err := uc.expireOne(ctx, paymentID)
		if err != nil {
			if errors.Is(err, verification.ErrConcurrentModification) {
				// Re-verified since listing; next sweep settles it.
				continue
			}
			uc.logger.Errorw("failed to expire payment",
				"payment_id", paymentID,
				"error", err,
			)
			continue
		}
		if transitioned {
			expired++
		}
	}

	if expired > 0 {
		uc.logger.Infow("expiry sweep completed",
			"candidates", len(candidates),
			"expired", expired,
		)
	}

	return expired, nil
}

func (uc *ReapExpiredUseCase) expireOne(ctx context.Context, paymentID string) (bool, error) {
	unlock := uc.locks.Lock(paymentID)
	defer unlock()

	rec, err := uc.store.Get(ctx, paymentID)
	if err != nil {
		return false, err
	}

	v := rec.Verification
	loadedStatus := v.Status()

	// Re-check against the fresh read; the listing may be stale.
	if !rec.Payment.IsExpired(biztime.NowUTC()) {
		return false, nil
	}

	transitioned, err := v.Expire(uc.expireBlockchainFailed)
	if err != nil || !transitioned {
		return false, err
	}

	if err := uc.store.Save(ctx, v, loadedStatus); err != nil {
		return false, err
	}
	return true, nil
}
