package verification

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vo "payguard/internal/domain/verification/valueobjects"
)

// --- helpers ---

func strPtr(s string) *string {
	return &s
}

func validBSCPayment(t *testing.T) *ManualPayment {
	t.Helper()
	p, err := NewManualPayment(
		1,
		decimal.NewFromInt(1000),
		vo.ChainBSC,
		strPtr("0x742d35Cc6634C0532925a3b844Bc454e4438f44e"),
		strPtr("0x"+repeat64("a")),
		"Alice",
		"",
		72*time.Hour,
	)
	require.NoError(t, err)
	return p
}

func repeat64(s string) string {
	out := ""
	for i := 0; i < 64; i++ {
		out += s
	}
	return out
}

func pendingVerification(t *testing.T) *Verification {
	t.Helper()
	v, err := NewVerification("mp_test00000001")
	require.NoError(t, err)
	return v
}

func allPassed() vo.CheckSet {
	return vo.CheckSet{
		NoDuplicates:      true,
		TransactionExists: true,
		SenderVerified:    true,
		RecipientVerified: true,
		AmountVerified:    true,
		Confirmed:         true,
		TimeValid:         true,
	}
}

// =============================================================================
// ManualPayment
// =============================================================================

func TestNewManualPayment(t *testing.T) {
	p := validBSCPayment(t)

	assert.NotEmpty(t, p.PaymentID())
	assert.True(t, p.ExpiresAt().After(p.CreatedAt()), "expires_at must be after created_at")
	assert.Equal(t, 72*time.Hour, p.ExpiresAt().Sub(p.CreatedAt()))
	assert.False(t, p.IsExpired(p.CreatedAt().Add(time.Hour)))
	assert.True(t, p.IsExpired(p.CreatedAt().Add(73*time.Hour)))
}

func TestNewManualPayment_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		userID uint
		amount decimal.Decimal
		chain  vo.Chain
		window time.Duration
	}{
		{"zero user", 0, decimal.NewFromInt(10), vo.ChainTron, time.Hour},
		{"zero amount", 1, decimal.Zero, vo.ChainTron, time.Hour},
		{"negative amount", 1, decimal.NewFromInt(-5), vo.ChainTron, time.Hour},
		{"invalid chain", 1, decimal.NewFromInt(10), vo.Chain("bitcoin"), time.Hour},
		{"zero window", 1, decimal.NewFromInt(10), vo.ChainTron, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewManualPayment(tc.userID, tc.amount, tc.chain, nil, nil, "", "", tc.window)
			assert.Error(t, err)
		})
	}
}

func TestNewManualPayment_EmptyOptionalFieldsBecomeNil(t *testing.T) {
	p, err := NewManualPayment(1, decimal.NewFromInt(10), vo.ChainTron, strPtr(""), nil, "", "", time.Hour)
	require.NoError(t, err)
	assert.Nil(t, p.SenderAddress())
	assert.Nil(t, p.TxHash())
}

// =============================================================================
// Scoring transitions
// =============================================================================

func TestApplyScore_BelowThresholdGoesToManualReview(t *testing.T) {
	v := pendingVerification(t)

	candidate, err := v.ApplyScore(55, []string{"transaction hash missing"}, 80)
	require.NoError(t, err)

	assert.False(t, candidate)
	assert.Equal(t, vo.StatusManualReviewRequired, v.Status())
	assert.Equal(t, 55, v.Confidence())
	assert.Contains(t, v.VerificationErrors(), "transaction hash missing")
}

func TestApplyScore_ThresholdIsInclusive(t *testing.T) {
	v := pendingVerification(t)

	candidate, err := v.ApplyScore(80, nil, 80)
	require.NoError(t, err)

	assert.True(t, candidate)
	assert.Equal(t, vo.StatusPending, v.Status(), "candidate stays pending until the chain check settles it")
}

func TestApplyScore_OnExpiredRecord(t *testing.T) {
	v := pendingVerification(t)
	transitioned, err := v.Expire(false)
	require.NoError(t, err)
	require.True(t, transitioned)

	_, err = v.ApplyScore(100, nil, 80)
	assert.ErrorIs(t, err, ErrExpiredPayment)
}

// =============================================================================
// Chain check transitions
// =============================================================================

func TestApplyChainChecks_AllPassedAutoApproves(t *testing.T) {
	v := pendingVerification(t)
	_, err := v.ApplyScore(100, nil, 80)
	require.NoError(t, err)

	err = v.ApplyChainChecks(allPassed(), []byte(`{"tx":"raw"}`), nil, true)
	require.NoError(t, err)

	assert.Equal(t, vo.StatusAutoApproved, v.Status())
	assert.True(t, v.BlockchainVerified())
	assert.Equal(t, 100, v.Confidence())
	require.NotNil(t, v.Checks())
	assert.True(t, v.Checks().AllPassed())
}

func TestApplyChainChecks_AllPassedNonCandidateStaysManual(t *testing.T) {
	v := pendingVerification(t)
	_, err := v.ApplyScore(55, []string{"sender wallet address missing"}, 80)
	require.NoError(t, err)

	err = v.ApplyChainChecks(allPassed(), nil, nil, false)
	require.NoError(t, err)

	assert.Equal(t, vo.StatusManualReviewRequired, v.Status(),
		"low score never promotes to auto_approved, even with perfect chain data")
	assert.True(t, v.BlockchainVerified())
}

func TestApplyChainChecks_DefinitiveFailure(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*vo.CheckSet)
	}{
		{"duplicate hash", func(c *vo.CheckSet) { c.NoDuplicates = false }},
		{"transaction not found", func(c *vo.CheckSet) { c.TransactionExists = false }},
		{"sender mismatch", func(c *vo.CheckSet) { c.SenderVerified = false }},
		{"recipient mismatch", func(c *vo.CheckSet) { c.RecipientVerified = false }},
		{"amount mismatch", func(c *vo.CheckSet) { c.AmountVerified = false }},
		{"timestamp outside window", func(c *vo.CheckSet) { c.TimeValid = false }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := pendingVerification(t)
			_, err := v.ApplyScore(100, nil, 80)
			require.NoError(t, err)

			checks := allPassed()
			tc.mutate(&checks)

			err = v.ApplyChainChecks(checks, nil, []string{tc.name}, true)
			require.NoError(t, err)

			assert.Equal(t, vo.StatusBlockchainFailed, v.Status())
			assert.False(t, v.BlockchainVerified())
			assert.Contains(t, v.VerificationErrors(), tc.name)
		})
	}
}

func TestApplyChainChecks_DowngradesAutoApproved(t *testing.T) {
	v := pendingVerification(t)
	_, err := v.ApplyScore(100, nil, 80)
	require.NoError(t, err)
	require.NoError(t, v.ApplyChainChecks(allPassed(), nil, nil, true))
	require.Equal(t, vo.StatusAutoApproved, v.Status())

	// Re-verification later discovers the hash was reused.
	checks := allPassed()
	checks.NoDuplicates = false
	err = v.ApplyChainChecks(checks, nil, []string{"transaction hash already attributed to mp_other"}, true)
	require.NoError(t, err)

	assert.Equal(t, vo.StatusBlockchainFailed, v.Status(),
		"contradicting evidence must never leave a payment auto_approved")
	assert.False(t, v.BlockchainVerified())
}

func TestApplyChainChecks_AwaitingConfirmationsKeepsCandidatePending(t *testing.T) {
	v := pendingVerification(t)
	_, err := v.ApplyScore(100, nil, 80)
	require.NoError(t, err)

	checks := allPassed()
	checks.Confirmed = false
	require.NoError(t, v.ApplyChainChecks(checks, nil, nil, true))

	assert.Equal(t, vo.StatusPending, v.Status(), "insufficient depth is not a terminal finding")
	assert.False(t, v.BlockchainVerified())
}

func TestMarkChainUnavailable(t *testing.T) {
	v := pendingVerification(t)
	_, err := v.ApplyScore(100, nil, 80)
	require.NoError(t, err)

	require.NoError(t, v.MarkChainUnavailable("bsc scan API unreachable"))

	assert.Equal(t, vo.StatusManualReviewRequired, v.Status())
	assert.False(t, v.BlockchainVerified())
	assert.Equal(t, 100, v.Confidence(), "scoring confidence is retained")
	assert.Contains(t, v.VerificationErrors(), "bsc scan API unreachable")
}

// =============================================================================
// Admin decisions
// =============================================================================

func TestApprove_IdempotentAndAudited(t *testing.T) {
	v := pendingVerification(t)
	_, err := v.ApplyScore(40, nil, 80)
	require.NoError(t, err)
	require.Equal(t, vo.StatusManualReviewRequired, v.Status())
	v.PullEvents()

	require.NoError(t, v.Approve("admin@example.com", "verified out of band"))
	assert.Equal(t, vo.StatusApproved, v.Status())
	firstEvents := v.PullEvents()
	require.Len(t, firstEvents, 1)
	assert.Equal(t, EventAdminApproved, firstEvents[0].EventType)
	assert.Equal(t, "admin@example.com", firstEvents[0].Actor)

	// Re-issuing the same decision is a no-op and emits no new audit event.
	require.NoError(t, v.Approve("admin@example.com", "verified out of band"))
	assert.Empty(t, v.PullEvents())
}

func TestReject_ConflictsWithApproval(t *testing.T) {
	v := pendingVerification(t)
	_, err := v.ApplyScore(40, nil, 80)
	require.NoError(t, err)
	require.NoError(t, v.Approve("admin", ""))

	err = v.Reject("other-admin", "changed my mind")
	assert.ErrorIs(t, err, ErrDecisionConflict)
	assert.Equal(t, vo.StatusApproved, v.Status())
}

func TestDecide_OnExpired(t *testing.T) {
	v := pendingVerification(t)
	transitioned, err := v.Expire(false)
	require.NoError(t, err)
	require.True(t, transitioned)

	assert.ErrorIs(t, v.Approve("admin", ""), ErrExpiredPayment)
	assert.ErrorIs(t, v.Reject("admin", ""), ErrExpiredPayment)
}

func TestDecide_OnPending(t *testing.T) {
	v := pendingVerification(t)
	assert.Error(t, v.Approve("admin", ""), "pending payments are not decidable")
}

// =============================================================================
// Expiry
// =============================================================================

func TestExpire(t *testing.T) {
	t.Run("pending expires", func(t *testing.T) {
		v := pendingVerification(t)
		transitioned, err := v.Expire(false)
		require.NoError(t, err)
		assert.True(t, transitioned)
		assert.Equal(t, vo.StatusExpired, v.Status())
	})

	t.Run("already expired is a no-op", func(t *testing.T) {
		v := pendingVerification(t)
		_, err := v.Expire(false)
		require.NoError(t, err)
		v.PullEvents()

		transitioned, err := v.Expire(false)
		require.NoError(t, err)
		assert.False(t, transitioned)
		assert.Empty(t, v.PullEvents(), "no duplicate audit event")
	})

	t.Run("approved never expires", func(t *testing.T) {
		v := pendingVerification(t)
		_, err := v.ApplyScore(40, nil, 80)
		require.NoError(t, err)
		require.NoError(t, v.Approve("admin", ""))

		transitioned, err := v.Expire(true)
		require.NoError(t, err)
		assert.False(t, transitioned)
		assert.Equal(t, vo.StatusApproved, v.Status())
	})

	t.Run("blockchain_failed expiry follows policy", func(t *testing.T) {
		build := func(t *testing.T) *Verification {
			v := pendingVerification(t)
			_, err := v.ApplyScore(100, nil, 80)
			require.NoError(t, err)
			checks := allPassed()
			checks.AmountVerified = false
			require.NoError(t, v.ApplyChainChecks(checks, nil, nil, true))
			return v
		}

		v := build(t)
		transitioned, err := v.Expire(false)
		require.NoError(t, err)
		assert.False(t, transitioned, "policy off keeps failed payments actionable")

		v = build(t)
		transitioned, err = v.Expire(true)
		require.NoError(t, err)
		assert.True(t, transitioned)
	})
}

// =============================================================================
// Value objects
// =============================================================================

func TestChainValidation(t *testing.T) {
	evmAddr := "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	tronAddr := "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	evmHash := "0x" + repeat64("b")
	tronHash := repeat64("c")

	assert.True(t, vo.ChainEthereum.IsValidAddress(evmAddr))
	assert.True(t, vo.ChainBSC.IsValidAddress(evmAddr))
	assert.True(t, vo.ChainPolygon.IsValidAddress(evmAddr))
	assert.False(t, vo.ChainTron.IsValidAddress(evmAddr))
	assert.True(t, vo.ChainTron.IsValidAddress(tronAddr))
	assert.False(t, vo.ChainEthereum.IsValidAddress(tronAddr))

	assert.True(t, vo.ChainBSC.IsValidTxHash(evmHash))
	assert.False(t, vo.ChainBSC.IsValidTxHash(tronHash))
	assert.True(t, vo.ChainTron.IsValidTxHash(tronHash))
	assert.False(t, vo.ChainTron.IsValidTxHash(evmHash))

	_, err := vo.NewChain("bitcoin")
	assert.Error(t, err, "bitcoin has no adapter and is rejected at the boundary")
}

func TestCheckSet(t *testing.T) {
	checks := allPassed()
	assert.True(t, checks.AllPassed())
	assert.Empty(t, checks.FailedNames())
	assert.Len(t, checks.Map(), 7)

	checks.Confirmed = false
	checks.TimeValid = false
	assert.False(t, checks.AllPassed())
	assert.Equal(t, []string{vo.CheckConfirmed, vo.CheckTimeValid}, checks.FailedNames())
}
