package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"payguard/internal/application/verification/chain"
	"payguard/internal/application/verification/dto"
	"payguard/internal/application/verification/scoring"
	"payguard/internal/domain/verification"
	vo "payguard/internal/domain/verification/valueobjects"
	sharedConfig "payguard/internal/shared/config"
	"payguard/internal/shared/logger"
)

const (
	// Grace period after the review window during which an on-chain
	// transaction timestamp is still accepted, accounting for confirmation
	// delays on the chain.
	expiryGracePeriod = time.Hour

	// Base delay for the retry backoff after a transient chain failure.
	retryBackoffBase = time.Second

	// defaultAdapterTimeout bounds one adapter call when not configured.
	defaultAdapterTimeout = 10 * time.Second

	// workerPassTimeout bounds one whole background verification pass,
	// including adapter retries and the store round trips.
	workerPassTimeout = time.Minute
)

// VerifyConfig holds the tunable parameters of a verification pass.
type VerifyConfig struct {
	AutoApproveThreshold int
	AdapterTimeout       time.Duration
	AdapterRetries       int
	ToleranceUSD         decimal.Decimal
	TolerancePercent     decimal.Decimal
	ReceivingAddresses   map[vo.Chain]string
	MinConfirmations     map[vo.Chain]int
}

// VerifyConfigFromShared builds a VerifyConfig from the loaded configuration,
// applying per-chain defaults for anything left unset.
func VerifyConfigFromShared(cfg *sharedConfig.VerificationConfig) VerifyConfig {
	vc := VerifyConfig{
		AutoApproveThreshold: cfg.AutoApproveThreshold,
		AdapterTimeout:       cfg.AdapterTimeout(),
		AdapterRetries:       cfg.AdapterRetries,
		ToleranceUSD:         decimal.NewFromFloat(cfg.AmountToleranceUSD),
		TolerancePercent:     decimal.NewFromFloat(cfg.AmountTolerancePercent),
		ReceivingAddresses:   make(map[vo.Chain]string),
		MinConfirmations:     make(map[vo.Chain]int),
	}

	for _, c := range vo.AllChains() {
		vc.MinConfirmations[c] = c.DefaultMinConfirmations()
	}
	for name, chainCfg := range cfg.Chains {
		c, err := vo.NewChain(name)
		if err != nil {
			continue
		}
		if chainCfg.ReceivingAddress != "" {
			vc.ReceivingAddresses[c] = chainCfg.ReceivingAddress
		}
		if chainCfg.MinConfirmations > 0 {
			vc.MinConfirmations[c] = chainCfg.MinConfirmations
		}
	}

	if vc.AutoApproveThreshold <= 0 {
		vc.AutoApproveThreshold = 80
	}
	if vc.AdapterTimeout <= 0 {
		vc.AdapterTimeout = defaultAdapterTimeout
	}

	return vc
}

// VerifyPaymentUseCase runs one full verification pass for a payment:
// scoring, duplicate-hash check, chain adapter cross-check, and the
// resulting status transition. Passes for the same payment are strictly
// serialized; the store write is conditional on the loaded status.
type VerifyPaymentUseCase struct {
	store    verification.Store
	registry *chain.Registry
	locks    *PaymentLocks
	logger   logger.Interface

	config   VerifyConfig
	configMu sync.RWMutex
}

// NewVerifyPaymentUseCase creates a new VerifyPaymentUseCase. The lock
// registry must be the same instance shared with the decision use cases.
func NewVerifyPaymentUseCase(
	store verification.Store,
	registry *chain.Registry,
	locks *PaymentLocks,
	config VerifyConfig,
	log logger.Interface,
) *VerifyPaymentUseCase {
	return &VerifyPaymentUseCase{
		store:    store,
		registry: registry,
		locks:    locks,
		logger:   log,
		config:   config,
	}
}

// UpdateConfig replaces the tunable parameters without restarting workers.
func (uc *VerifyPaymentUseCase) UpdateConfig(config VerifyConfig) {
	uc.configMu.Lock()
	defer uc.configMu.Unlock()
	uc.config = config
}

func (uc *VerifyPaymentUseCase) snapshot() VerifyConfig {
	uc.configMu.RLock()
	defer uc.configMu.RUnlock()
	return uc.config
}

// Execute runs a verification pass and returns the resulting record state.
// A pass against a terminal record is a no-op returning the current state.
func (uc *VerifyPaymentUseCase) Execute(ctx context.Context, paymentID string) (*dto.VerificationDetailDTO, error) {
	unlock := uc.locks.Lock(paymentID)
	defer unlock()

	result, err := uc.executeLocked(ctx, paymentID)
	if errors.Is(err, verification.ErrConcurrentModification) {
		// Another writer (a competing process) won the race; retry once
		// against a fresh read before surfacing the conflict.
		uc.logger.Warnw("verification write lost the race, retrying with fresh read", "payment_id", paymentID)
		result, err = uc.executeLocked(ctx, paymentID)
	}
	return result, err
}

func (uc *VerifyPaymentUseCase) executeLocked(ctx context.Context, paymentID string) (*dto.VerificationDetailDTO, error) {
	rec, err := uc.store.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	v := rec.Verification
	payment := rec.Payment
	loadedStatus := v.Status()

	if !loadedStatus.AllowsChainCheck() {
		detail := dto.DetailFromRecord(rec)
		return &detail, nil
	}

	cfg := uc.snapshot()

	score, scoreReasons := scoring.Score(payment)
	candidate, err := v.ApplyScore(score, scoreReasons, cfg.AutoApproveThreshold)
	if err != nil {
		return nil, err
	}

	if payment.TxHash() == nil {
		// Nothing to resolve on-chain without a hash; the scoring pass above
		// already routed the payment to manual review.
		uc.logger.Debugw("skipping chain check, no transaction hash",
			"payment_id", paymentID,
			"status", v.Status(),
		)
		return uc.save(ctx, rec, loadedStatus)
	}

	checks, raw, reasons, chainErr := uc.runChainCheck(ctx, payment, cfg)
	if chainErr != nil {
		if err := v.MarkChainUnavailable(chainErr.Error()); err != nil {
			return nil, err
		}
		uc.logger.Warnw("chain verification unavailable, falling back to manual review",
			"payment_id", paymentID,
			"chain", payment.Chain(),
			"error", chainErr,
		)
		return uc.save(ctx, rec, loadedStatus)
	}

	if err := v.ApplyChainChecks(checks, raw, reasons, candidate); err != nil {
		return nil, err
	}

	uc.logger.Infow("verification pass completed",
		"payment_id", paymentID,
		"chain", payment.Chain(),
		"status", v.Status(),
		"confidence", v.Confidence(),
		"blockchain_verified", v.BlockchainVerified(),
	)

	return uc.save(ctx, rec, loadedStatus)
}

func (uc *VerifyPaymentUseCase) save(ctx context.Context, rec *verification.Record, expectedPriorStatus vo.Status) (*dto.VerificationDetailDTO, error) {
	if err := uc.store.Save(ctx, rec.Verification, expectedPriorStatus); err != nil {
		return nil, err
	}
	detail := dto.DetailFromRecord(rec)
	return &detail, nil
}

// runChainCheck resolves the duplicate-hash check against the store, then
// calls the chain adapter with a bounded timeout and a small retry budget.
// A non-nil error means the chain could not be consulted at all.
func (uc *VerifyPaymentUseCase) runChainCheck(
	ctx context.Context,
	payment *verification.ManualPayment,
	cfg VerifyConfig,
) (vo.CheckSet, []byte, []string, error) {
	var reasons []string

	hash := *payment.TxHash()
	chainID := payment.Chain()

	owner, err := uc.store.HashOwner(ctx, chainID, hash)
	if err != nil {
		return vo.CheckSet{}, nil, nil, fmt.Errorf("duplicate check failed: %w", err)
	}
	if owner != "" && owner != payment.PaymentID() {
		// A hash already attributed to another payment is a definitive
		// finding. No adapter response can rehabilitate it, so the chain is
		// not consulted and the failure cannot be masked by an outage.
		reasons = append(reasons, fmt.Sprintf("transaction hash already attributed to payment %s", owner))
		return vo.CheckSet{}, nil, reasons, nil
	}

	adapter, err := uc.registry.Adapter(chainID)
	if err != nil {
		return vo.CheckSet{}, nil, nil, err
	}

	recipient := cfg.ReceivingAddresses[chainID]
	sender := ""
	if s := payment.SenderAddress(); s != nil {
		sender = *s
	}

	req := chain.VerifyRequest{
		TxHash:           hash,
		AmountUSD:        payment.AmountUSD(),
		SenderAddress:    sender,
		RecipientAddress: recipient,
		MinConfirmations: cfg.MinConfirmations[chainID],
		SubmittedAt:      payment.CreatedAt(),
		ExpiresAt:        payment.ExpiresAt().Add(expiryGracePeriod),
		ToleranceUSD:     cfg.ToleranceUSD,
		TolerancePercent: cfg.TolerancePercent,
	}

	result, err := uc.callWithRetry(ctx, adapter, req, cfg)
	if err != nil {
		return vo.CheckSet{}, nil, nil, err
	}

	checks := result.Checks
	checks.NoDuplicates = true
	reasons = append(reasons, result.Reasons...)

	return checks, result.RawData, reasons, nil
}

func (uc *VerifyPaymentUseCase) callWithRetry(
	ctx context.Context,
	adapter chain.Adapter,
	req chain.VerifyRequest,
	cfg VerifyConfig,
) (*chain.VerifyResult, error) {
	var lastErr error

	for attempt := 0; attempt <= cfg.AdapterRetries; attempt++ {
		if attempt > 0 {
			backoff := retryBackoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", verification.ErrChainUnavailable, ctx.Err())
			case <-time.After(backoff):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, cfg.AdapterTimeout)
		result, err := adapter.Verify(callCtx, req)
		cancel()

		if err == nil {
			return result, nil
		}
		lastErr = err

		if !errors.Is(err, verification.ErrChainUnavailable) {
			return nil, err
		}

		uc.logger.Warnw("chain adapter call failed",
			"chain", adapter.Chain(),
			"attempt", attempt+1,
			"error", err,
		)
	}

	return nil, lastErr
}
