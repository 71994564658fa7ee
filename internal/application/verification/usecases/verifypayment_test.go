package usecases_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payguard/internal/application/verification/chain"
	"payguard/internal/application/verification/testutil"
	"payguard/internal/application/verification/usecases"
	"payguard/internal/domain/verification"
	vo "payguard/internal/domain/verification/valueobjects"
	"payguard/internal/shared/logger"
)

func strPtr(s string) *string {
	return &s
}

func repeat64(s string) string {
	return "0x" + strings.Repeat(s, 64)
}

func testConfig() usecases.VerifyConfig {
	return usecases.VerifyConfig{
		AutoApproveThreshold: 80,
		AdapterTimeout:       time.Second,
		AdapterRetries:       2,
		ToleranceUSD:         decimal.NewFromInt(1),
		TolerancePercent:     decimal.NewFromFloat(1.5),
		ReceivingAddresses: map[vo.Chain]string{
			vo.ChainBSC: "0x" + strings.Repeat("ab", 20),
		},
		MinConfirmations: map[vo.Chain]int{
			vo.ChainBSC: 15,
		},
	}
}

// seedPayment creates a payment plus its pending verification row.
func seedPayment(t *testing.T, store *testutil.FakeStore, sender, hash *string) string {
	t.Helper()

	payment, err := verification.NewManualPayment(
		42,
		decimal.NewFromInt(100),
		vo.ChainBSC,
		sender,
		hash,
		"Alice",
		"",
		72*time.Hour,
	)
	require.NoError(t, err)

	v, err := verification.NewVerification(payment.PaymentID())
	require.NoError(t, err)

	require.NoError(t, store.CreatePayment(context.Background(), payment))
	require.NoError(t, store.CreateVerification(context.Background(), v))
	return payment.PaymentID()
}

func newVerifyUseCase(store *testutil.FakeStore, adapter *testutil.FakeAdapter) *usecases.VerifyPaymentUseCase {
	return usecases.NewVerifyPaymentUseCase(
		store,
		chain.NewRegistry(adapter),
		usecases.NewPaymentLocks(),
		testConfig(),
		logger.NewNop(),
	)
}

func TestVerifyPayment_PerfectSubmissionAutoApproves(t *testing.T) {
	store := testutil.NewFakeStore()
	adapter := &testutil.FakeAdapter{
		ChainID: vo.ChainBSC,
		Results: []*chain.VerifyResult{testutil.PassingResult()},
	}
	id := seedPayment(t, store, strPtr("0x"+strings.Repeat("cd", 20)), strPtr(repeat64("a")))

	uc := newVerifyUseCase(store, adapter)
	detail, err := uc.Execute(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, "auto_approved", detail.Status)
	assert.True(t, detail.BlockchainVerified)
	assert.Equal(t, 100, detail.Confidence)
	assert.Equal(t, 1, adapter.Calls)

	assert.Equal(t, vo.StatusAutoApproved, store.Status(id))
	assert.Equal(t, 1, store.Version(id))
}

func TestVerifyPayment_LowScoreWithCleanChainStaysManual(t *testing.T) {
	store := testutil.NewFakeStore()
	adapter := &testutil.FakeAdapter{
		ChainID: vo.ChainBSC,
		Results: []*chain.VerifyResult{testutil.PassingResult()},
	}
	// No sender address: the score cannot reach the threshold, so even a
	// fully verified transaction must not auto-approve.
	id := seedPayment(t, store, nil, strPtr(repeat64("a")))

	uc := newVerifyUseCase(store, adapter)
	detail, err := uc.Execute(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, "manual_review_required", detail.Status)
	assert.True(t, detail.BlockchainVerified)
	assert.Equal(t, 100, detail.Confidence)
}

func TestVerifyPayment_NoHashSkipsChainCall(t *testing.T) {
	store := testutil.NewFakeStore()
	adapter := &testutil.FakeAdapter{ChainID: vo.ChainBSC}
	id := seedPayment(t, store, strPtr("0x"+strings.Repeat("cd", 20)), nil)

	uc := newVerifyUseCase(store, adapter)
	detail, err := uc.Execute(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, "manual_review_required", detail.Status)
	assert.False(t, detail.BlockchainVerified)
	assert.Zero(t, adapter.Calls)
	assert.Contains(t, detail.Errors, "transaction hash not provided")
}

func TestVerifyPayment_DuplicateHashFailsDefinitively(t *testing.T) {
	store := testutil.NewFakeStore()
	adapter := &testutil.FakeAdapter{
		ChainID: vo.ChainBSC,
		Results: []*chain.VerifyResult{testutil.PassingResult()},
	}
	hash := repeat64("b")
	first := seedPayment(t, store, strPtr("0x"+strings.Repeat("cd", 20)), strPtr(hash))
	second := seedPayment(t, store, strPtr("0x"+strings.Repeat("ef", 20)), strPtr(hash))

	uc := newVerifyUseCase(store, adapter)
	detail, err := uc.Execute(context.Background(), second)

	require.NoError(t, err)
	assert.Equal(t, "blockchain_failed", detail.Status)
	assert.False(t, detail.BlockchainVerified)
	assert.False(t, detail.Checks[vo.CheckNoDuplicates])
	require.NotEmpty(t, detail.Errors)
	assert.Contains(t, detail.Errors[len(detail.Errors)-1], first)
	// A known duplicate never reaches the scan API.
	assert.Zero(t, adapter.Calls)
}

func TestVerifyPayment_EarliestClaimantKeepsHashOnRecheck(t *testing.T) {
	store := testutil.NewFakeStore()
	adapter := &testutil.FakeAdapter{
		ChainID: vo.ChainBSC,
		Results: []*chain.VerifyResult{testutil.PassingResult()},
	}
	hash := repeat64("b")
	first := seedPayment(t, store, strPtr("0x"+strings.Repeat("cd", 20)), strPtr(hash))
	seedPayment(t, store, strPtr("0x"+strings.Repeat("ef", 20)), strPtr(hash))

	// A copycat submission must not poison the original claim's re-check.
	uc := newVerifyUseCase(store, adapter)
	detail, err := uc.Execute(context.Background(), first)

	require.NoError(t, err)
	assert.Equal(t, "auto_approved", detail.Status)
	assert.True(t, detail.Checks[vo.CheckNoDuplicates])
}

func TestVerifyPayment_DuplicateHashFailsEvenWhenChainUnavailable(t *testing.T) {
	store := testutil.NewFakeStore()
	adapter := &testutil.FakeAdapter{
		ChainID: vo.ChainBSC,
		Errs:    []error{verification.ErrChainUnavailable},
	}
	hash := repeat64("b")
	first := seedPayment(t, store, strPtr("0x"+strings.Repeat("cd", 20)), strPtr(hash))
	second := seedPayment(t, store, strPtr("0x"+strings.Repeat("ef", 20)), strPtr(hash))

	uc := newVerifyUseCase(store, adapter)
	detail, err := uc.Execute(context.Background(), second)

	// The duplicate finding is definitive and must not degrade to the
	// manual-review fallback that an unreachable chain would produce.
	require.NoError(t, err)
	assert.Equal(t, "blockchain_failed", detail.Status)
	assert.False(t, detail.BlockchainVerified)
	assert.False(t, detail.Checks[vo.CheckNoDuplicates])
	require.NotEmpty(t, detail.Errors)
	assert.Contains(t, detail.Errors[len(detail.Errors)-1], first)
	assert.Zero(t, adapter.Calls)

	assert.Equal(t, vo.StatusBlockchainFailed, store.Status(second))
}

func TestVerifyPayment_ChainUnavailableFallsBackToManualReview(t *testing.T) {
	store := testutil.NewFakeStore()
	adapter := &testutil.FakeAdapter{
		ChainID: vo.ChainBSC,
		Errs:    []error{verification.ErrChainUnavailable},
	}
	id := seedPayment(t, store, strPtr("0x"+strings.Repeat("cd", 20)), strPtr(repeat64("a")))

	uc := newVerifyUseCase(store, adapter)
	detail, err := uc.Execute(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, "manual_review_required", detail.Status)
	assert.False(t, detail.BlockchainVerified)
	// 100 from scoring is retained even though the chain was unreachable.
	assert.Equal(t, 100, detail.Confidence)
	// Initial attempt plus the configured retries.
	assert.Equal(t, 3, adapter.Calls)
}

func TestVerifyPayment_TransientFailureThenSuccess(t *testing.T) {
	store := testutil.NewFakeStore()
	adapter := &testutil.FakeAdapter{
		ChainID: vo.ChainBSC,
		Errs:    []error{verification.ErrChainUnavailable, nil},
		Results: []*chain.VerifyResult{testutil.PassingResult()},
	}
	id := seedPayment(t, store, strPtr("0x"+strings.Repeat("cd", 20)), strPtr(repeat64("a")))

	uc := newVerifyUseCase(store, adapter)
	detail, err := uc.Execute(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, "auto_approved", detail.Status)
	assert.Equal(t, 2, adapter.Calls)
}

func TestVerifyPayment_AwaitingConfirmationsStaysPending(t *testing.T) {
	store := testutil.NewFakeStore()
	result := testutil.PassingResult()
	result.Checks.Confirmed = false
	result.Reasons = []string{"confirmations 3 below required 15"}
	adapter := &testutil.FakeAdapter{
		ChainID: vo.ChainBSC,
		Results: []*chain.VerifyResult{result},
	}
	id := seedPayment(t, store, strPtr("0x"+strings.Repeat("cd", 20)), strPtr(repeat64("a")))

	uc := newVerifyUseCase(store, adapter)
	detail, err := uc.Execute(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, "pending", detail.Status)
	assert.False(t, detail.BlockchainVerified)
}

func TestVerifyPayment_AmountMismatchFailsDefinitively(t *testing.T) {
	store := testutil.NewFakeStore()
	result := testutil.PassingResult()
	result.Checks.AmountVerified = false
	result.Reasons = []string{"on-chain amount 50.00 USD outside tolerance of claimed 100.00 USD"}
	adapter := &testutil.FakeAdapter{
		ChainID: vo.ChainBSC,
		Results: []*chain.VerifyResult{result},
	}
	id := seedPayment(t, store, strPtr("0x"+strings.Repeat("cd", 20)), strPtr(repeat64("a")))

	uc := newVerifyUseCase(store, adapter)
	detail, err := uc.Execute(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, "blockchain_failed", detail.Status)
	assert.False(t, detail.BlockchainVerified)
	assert.Equal(t, vo.StatusBlockchainFailed, store.Status(id))
}

func TestVerifyPayment_TerminalRecordIsNoOp(t *testing.T) {
	store := testutil.NewFakeStore()
	adapter := &testutil.FakeAdapter{ChainID: vo.ChainBSC}
	id := seedPayment(t, store, strPtr("0x"+strings.Repeat("cd", 20)), strPtr(repeat64("a")))

	locks := usecases.NewPaymentLocks()
	approve := usecases.NewApprovePaymentUseCase(store, locks, logger.NewNop())
	_, err := approve.Execute(context.Background(), usecases.ApprovePaymentCommand{
		PaymentID: id,
		AdminID:   "admin-1",
	})
	require.Error(t, err)

	// Pending is decidable, so approve it through manual review first.
	uc := usecases.NewVerifyPaymentUseCase(store, chain.NewRegistry(adapter), locks, testConfig(), logger.NewNop())

	adapter.Errs = []error{verification.ErrChainUnavailable}
	_, err = uc.Execute(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, vo.StatusManualReviewRequired, store.Status(id))

	_, err = approve.Execute(context.Background(), usecases.ApprovePaymentCommand{
		PaymentID: id,
		AdminID:   "admin-1",
	})
	require.NoError(t, err)
	require.Equal(t, vo.StatusApproved, store.Status(id))

	versionBefore := store.Version(id)
	detail, err := uc.Execute(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "approved", detail.Status)
	assert.Equal(t, versionBefore, store.Version(id))
}

func TestVerifyPayment_RetriesOnceOnWriteConflict(t *testing.T) {
	store := testutil.NewFakeStore()
	adapter := &testutil.FakeAdapter{
		ChainID: vo.ChainBSC,
		Results: []*chain.VerifyResult{testutil.PassingResult()},
	}
	id := seedPayment(t, store, strPtr("0x"+strings.Repeat("cd", 20)), strPtr(repeat64("a")))
	store.SaveErr = verification.ErrConcurrentModification

	uc := newVerifyUseCase(store, adapter)
	detail, err := uc.Execute(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, "auto_approved", detail.Status)
	assert.Equal(t, vo.StatusAutoApproved, store.Status(id))
}

func TestVerifyPayment_NotFound(t *testing.T) {
	store := testutil.NewFakeStore()
	adapter := &testutil.FakeAdapter{ChainID: vo.ChainBSC}

	uc := newVerifyUseCase(store, adapter)
	_, err := uc.Execute(context.Background(), "mp_missing")

	assert.ErrorIs(t, err, verification.ErrNotFound)
}
