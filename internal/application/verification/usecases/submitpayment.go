package usecases

import (
	"context"

	"github.com/shopspring/decimal"

	"payguard/internal/application/verification/dto"
	"payguard/internal/domain/verification"
	vo "payguard/internal/domain/verification/valueobjects"
	sharedConfig "payguard/internal/shared/config"
	"payguard/internal/shared/errors"
	"payguard/internal/shared/logger"
)

// Enqueuer hands a payment to the background verification workers.
type Enqueuer interface {
	// Enqueue schedules a verification pass. It returns false when the
	// payment was dropped (queue full); the background pump will pick the
	// payment up on its next sweep.
	Enqueue(paymentID string) bool
}

// Transactor runs a function with every store write inside it committed or
// rolled back as one unit.
type Transactor interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SubmitPaymentCommand carries a user's manual payment submission.
type SubmitPaymentCommand struct {
	UserID        uint
	AmountUSD     decimal.Decimal
	Chain         string
	SenderAddress *string
	TxHash        *string
	SenderName    string
	Notes         string
}

// SubmitPaymentUseCase records a manual payment submission and schedules
// its first verification pass. Malformed addresses and hashes are accepted
// here; they cost points during scoring rather than rejecting the submission.
type SubmitPaymentUseCase struct {
	store  verification.Store
	tx     Transactor
	queue  Enqueuer
	config *sharedConfig.VerificationConfig
	logger logger.Interface
}

// NewSubmitPaymentUseCase creates a new SubmitPaymentUseCase.
func NewSubmitPaymentUseCase(
	store verification.Store,
	tx Transactor,
	queue Enqueuer,
	config *sharedConfig.VerificationConfig,
	log logger.Interface,
) *SubmitPaymentUseCase {
	return &SubmitPaymentUseCase{
		store:  store,
		tx:     tx,
		queue:  queue,
		config: config,
		logger: log,
	}
}

// Execute validates and persists the submission, then enqueues it for
// verification. The payment starts in pending status.
func (uc *SubmitPaymentUseCase) Execute(ctx context.Context, cmd SubmitPaymentCommand) (*dto.VerificationDetailDTO, error) {
	chain, err := vo.NewChain(cmd.Chain)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	payment, err := verification.NewManualPayment(
		cmd.UserID,
		cmd.AmountUSD,
		chain,
		cmd.SenderAddress,
		cmd.TxHash,
		cmd.SenderName,
		cmd.Notes,
		uc.config.ReviewWindow(),
	)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	v, err := verification.NewVerification(payment.PaymentID())
	if err != nil {
		return nil, errors.NewInternalError("failed to create verification record")
	}

	// The payment and its verification row must land together; a payment
	// without a result row would be invisible to the background pump.
	err = uc.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.store.CreatePayment(txCtx, payment); err != nil {
			return err
		}
		return uc.store.CreateVerification(txCtx, v)
	})
	if err != nil {
		uc.logger.Errorw("failed to persist submission",
			"payment_id", payment.PaymentID(),
			"error", err,
		)
		return nil, errors.NewInternalError("failed to persist submission")
	}

	if !uc.queue.Enqueue(payment.PaymentID()) {
		uc.logger.Warnw("verification queue full, deferring to background sweep",
			"payment_id", payment.PaymentID(),
		)
	}

	uc.logger.Infow("payment submitted",
		"payment_id", payment.PaymentID(),
		"user_id", cmd.UserID,
		"chain", chain,
		"amount_usd", cmd.AmountUSD,
	)

	detail := dto.DetailFromRecord(&verification.Record{Payment: payment, Verification: v})
	return &detail, nil
}
