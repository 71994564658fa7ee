package usecases_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payguard/internal/application/verification/chain"
	"payguard/internal/application/verification/testutil"
	"payguard/internal/application/verification/usecases"
	"payguard/internal/domain/verification"
	vo "payguard/internal/domain/verification/valueobjects"
	"payguard/internal/shared/logger"
)

// seedManualReview seeds a payment already routed to manual review.
func seedManualReview(t *testing.T, store *testutil.FakeStore, locks *usecases.PaymentLocks) string {
	t.Helper()

	adapter := &testutil.FakeAdapter{
		ChainID: vo.ChainBSC,
		Errs:    []error{verification.ErrChainUnavailable},
	}
	id := seedPayment(t, store, strPtr("0x"+strings.Repeat("cd", 20)), strPtr(repeat64("c")))

	cfg := testConfig()
	cfg.AdapterRetries = 0
	verify := usecases.NewVerifyPaymentUseCase(store, chain.NewRegistry(adapter), locks, cfg, logger.NewNop())
	_, err := verify.Execute(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, vo.StatusManualReviewRequired, store.Status(id))
	return id
}

func TestApprovePayment(t *testing.T) {
	store := testutil.NewFakeStore()
	locks := usecases.NewPaymentLocks()
	id := seedManualReview(t, store, locks)

	uc := usecases.NewApprovePaymentUseCase(store, locks, logger.NewNop())
	detail, err := uc.Execute(context.Background(), usecases.ApprovePaymentCommand{
		PaymentID: id,
		AdminID:   "admin-7",
		Notes:     "confirmed with user",
	})

	require.NoError(t, err)
	assert.Equal(t, "approved", detail.Status)
	assert.Equal(t, vo.StatusApproved, store.Status(id))

	events := store.Events(id)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, verification.EventAdminApproved, last.EventType)
	assert.Equal(t, "admin-7", last.Actor)
	assert.Equal(t, "confirmed with user", last.Notes)
}

func TestApprovePayment_RepeatIsNoOp(t *testing.T) {
	store := testutil.NewFakeStore()
	locks := usecases.NewPaymentLocks()
	id := seedManualReview(t, store, locks)

	uc := usecases.NewApprovePaymentUseCase(store, locks, logger.NewNop())
	_, err := uc.Execute(context.Background(), usecases.ApprovePaymentCommand{PaymentID: id, AdminID: "admin-7"})
	require.NoError(t, err)

	versionBefore := store.Version(id)
	eventsBefore := len(store.Events(id))

	detail, err := uc.Execute(context.Background(), usecases.ApprovePaymentCommand{PaymentID: id, AdminID: "admin-8"})
	require.NoError(t, err)
	assert.Equal(t, "approved", detail.Status)
	assert.Equal(t, versionBefore, store.Version(id))
	assert.Len(t, store.Events(id), eventsBefore)
}

func TestRejectPayment_AfterApprovalConflicts(t *testing.T) {
	store := testutil.NewFakeStore()
	locks := usecases.NewPaymentLocks()
	id := seedManualReview(t, store, locks)

	approve := usecases.NewApprovePaymentUseCase(store, locks, logger.NewNop())
	_, err := approve.Execute(context.Background(), usecases.ApprovePaymentCommand{PaymentID: id, AdminID: "admin-7"})
	require.NoError(t, err)

	reject := usecases.NewRejectPaymentUseCase(store, locks, logger.NewNop())
	_, err = reject.Execute(context.Background(), usecases.RejectPaymentCommand{PaymentID: id, AdminID: "admin-9"})

	assert.ErrorIs(t, err, verification.ErrDecisionConflict)
	assert.Equal(t, vo.StatusApproved, store.Status(id))
}

func TestRejectPayment(t *testing.T) {
	store := testutil.NewFakeStore()
	locks := usecases.NewPaymentLocks()
	id := seedManualReview(t, store, locks)

	uc := usecases.NewRejectPaymentUseCase(store, locks, logger.NewNop())
	detail, err := uc.Execute(context.Background(), usecases.RejectPaymentCommand{
		PaymentID: id,
		AdminID:   "admin-7",
		Notes:     "no matching transfer found",
	})

	require.NoError(t, err)
	assert.Equal(t, "rejected", detail.Status)
	assert.Equal(t, vo.StatusRejected, store.Status(id))
}

func TestApprovePayment_NotFound(t *testing.T) {
	store := testutil.NewFakeStore()
	uc := usecases.NewApprovePaymentUseCase(store, usecases.NewPaymentLocks(), logger.NewNop())

	_, err := uc.Execute(context.Background(), usecases.ApprovePaymentCommand{PaymentID: "mp_missing", AdminID: "a"})
	assert.ErrorIs(t, err, verification.ErrNotFound)
}
