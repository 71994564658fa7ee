package blockchain

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payguard/internal/application/verification/chain"
	"payguard/internal/domain/verification"
	vo "payguard/internal/domain/verification/valueobjects"
	"payguard/internal/infrastructure/ratelimit"
	"payguard/internal/shared/logger"
)

const (
	testRecipient = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testSender    = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func testHash(c string) string {
	return "0x" + strings.Repeat(c, 64)
}

func transferJSON(hash, from, to, value string, confirmations int, ts time.Time) string {
	return fmt.Sprintf(`{
		"blockNumber": "19000000",
		"timeStamp": "%d",
		"hash": "%s",
		"from": "%s",
		"to": "%s",
		"value": "%s",
		"contractAddress": "0xdAC17F958D2ee523a2206206994597C13D831ec7",
		"tokenDecimal": "6",
		"confirmations": "%d"
	}`, ts.Unix(), hash, from, to, value, confirmations)
}

func newTestScanner(t *testing.T, handler http.HandlerFunc) *EVMScanner {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	scanner, err := NewEVMScanner(vo.ChainEthereum, "test-key", ratelimit.NoopLimiter{}, logger.NewNop())
	require.NoError(t, err)
	scanner.baseURL = server.URL
	return scanner
}

func baseRequest(hash string) chain.VerifyRequest {
	now := time.Now().UTC()
	return chain.VerifyRequest{
		TxHash:           hash,
		AmountUSD:        decimal.NewFromInt(100),
		SenderAddress:    testSender,
		RecipientAddress: testRecipient,
		MinConfirmations: 12,
		SubmittedAt:      now.Add(-time.Hour),
		ExpiresAt:        now.Add(72 * time.Hour),
		ToleranceUSD:     decimal.NewFromInt(1),
		TolerancePercent: decimal.NewFromFloat(1.5),
	}
}

func TestEVMScanner_AllChecksPass(t *testing.T) {
	hash := testHash("a")
	scanner := newTestScanner(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("chainid"))
		assert.Equal(t, "tokentx", r.URL.Query().Get("action"))
		fmt.Fprintf(w, `{"status":"1","message":"OK","result":[%s]}`,
			transferJSON(hash, testSender, testRecipient, "100000000", 50, time.Now().Add(-10*time.Minute)))
	})

	result, err := scanner.Verify(context.Background(), baseRequest(hash))

	require.NoError(t, err)
	assert.True(t, result.Checks.TransactionExists)
	assert.True(t, result.Checks.SenderVerified)
	assert.True(t, result.Checks.RecipientVerified)
	assert.True(t, result.Checks.AmountVerified)
	assert.True(t, result.Checks.Confirmed)
	assert.True(t, result.Checks.TimeValid)
	assert.Empty(t, result.Reasons)
	assert.Contains(t, string(result.RawData), hash)
}

func TestEVMScanner_AmountWithinTolerance(t *testing.T) {
	hash := testHash("b")
	// 99.20 USDT claimed as 100: inside the 1 USD / 1.5% band.
	scanner := newTestScanner(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"status":"1","message":"OK","result":[%s]}`,
			transferJSON(hash, testSender, testRecipient, "99200000", 50, time.Now().Add(-10*time.Minute)))
	})

	result, err := scanner.Verify(context.Background(), baseRequest(hash))

	require.NoError(t, err)
	assert.True(t, result.Checks.AmountVerified)
}

func TestEVMScanner_AmountMismatch(t *testing.T) {
	hash := testHash("c")
	scanner := newTestScanner(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"status":"1","message":"OK","result":[%s]}`,
			transferJSON(hash, testSender, testRecipient, "50000000", 50, time.Now().Add(-10*time.Minute)))
	})

	result, err := scanner.Verify(context.Background(), baseRequest(hash))

	require.NoError(t, err)
	assert.False(t, result.Checks.AmountVerified)
	require.NotEmpty(t, result.Reasons)
	assert.Contains(t, result.Reasons[0], "outside tolerance")
}

func TestEVMScanner_SenderMismatch(t *testing.T) {
	hash := testHash("d")
	scanner := newTestScanner(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"status":"1","message":"OK","result":[%s]}`,
			transferJSON(hash, "0xcccccccccccccccccccccccccccccccccccccccc", testRecipient, "100000000", 50, time.Now().Add(-10*time.Minute)))
	})

	result, err := scanner.Verify(context.Background(), baseRequest(hash))

	require.NoError(t, err)
	assert.False(t, result.Checks.SenderVerified)
	assert.True(t, result.Checks.AmountVerified)
}

func TestEVMScanner_NoClaimedSenderPasses(t *testing.T) {
	hash := testHash("e")
	scanner := newTestScanner(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"status":"1","message":"OK","result":[%s]}`,
			transferJSON(hash, "0xcccccccccccccccccccccccccccccccccccccccc", testRecipient, "100000000", 50, time.Now().Add(-10*time.Minute)))
	})

	req := baseRequest(hash)
	req.SenderAddress = ""
	result, err := scanner.Verify(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, result.Checks.SenderVerified)
}

func TestEVMScanner_BelowConfirmations(t *testing.T) {
	hash := testHash("f")
	scanner := newTestScanner(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"status":"1","message":"OK","result":[%s]}`,
			transferJSON(hash, testSender, testRecipient, "100000000", 3, time.Now().Add(-time.Minute)))
	})

	result, err := scanner.Verify(context.Background(), baseRequest(hash))

	require.NoError(t, err)
	assert.False(t, result.Checks.Confirmed)
	require.NotEmpty(t, result.Reasons)
	assert.Contains(t, result.Reasons[0], "confirmations 3 below required 12")
}

func TestEVMScanner_TransactionPredatesSubmission(t *testing.T) {
	hash := testHash("1")
	old := time.Now().Add(-48 * time.Hour)
	scanner := newTestScanner(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"status":"1","message":"OK","result":[%s]}`,
			transferJSON(hash, testSender, testRecipient, "100000000", 50, old))
	})

	result, err := scanner.Verify(context.Background(), baseRequest(hash))

	require.NoError(t, err)
	assert.True(t, result.Checks.TransactionExists)
	assert.False(t, result.Checks.TimeValid)
	require.NotEmpty(t, result.Reasons)
	assert.Contains(t, result.Reasons[0], "predates submission")
}

func TestEVMScanner_StopsScanningPastTimeWindow(t *testing.T) {
	requests := 0
	wanted := testHash("2")
	old := time.Now().Add(-48 * time.Hour)
	scanner := newTestScanner(t, func(w http.ResponseWriter, _ *http.Request) {
		requests++
		// Page of unrelated transfers older than the submission window.
		fmt.Fprintf(w, `{"status":"1","message":"OK","result":[%s]}`,
			transferJSON(testHash("9"), testSender, testRecipient, "100000000", 50, old))
	})

	result, err := scanner.Verify(context.Background(), baseRequest(wanted))

	// Desc-sorted results: once a transfer is older than the window the
	// claimed hash cannot appear later, so only one page is fetched.
	require.NoError(t, err)
	assert.False(t, result.Checks.TransactionExists)
	assert.Equal(t, 1, requests)
}

func TestEVMScanner_HashNotFound(t *testing.T) {
	scanner := newTestScanner(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":"0","message":"No transactions found","result":[]}`)
	})

	result, err := scanner.Verify(context.Background(), baseRequest(testHash("2")))

	require.NoError(t, err)
	assert.False(t, result.Checks.TransactionExists)
	require.NotEmpty(t, result.Reasons)
	assert.Contains(t, result.Reasons[0], "not found")
}

func TestEVMScanner_RateLimitedAPIIsUnavailable(t *testing.T) {
	scanner := newTestScanner(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`)
	})

	_, err := scanner.Verify(context.Background(), baseRequest(testHash("3")))

	assert.ErrorIs(t, err, verification.ErrChainUnavailable)
}

func TestEVMScanner_MissingAPIKey(t *testing.T) {
	scanner, err := NewEVMScanner(vo.ChainBSC, "", ratelimit.NoopLimiter{}, logger.NewNop())
	require.NoError(t, err)

	_, err = scanner.Verify(context.Background(), baseRequest(testHash("4")))
	assert.ErrorIs(t, err, verification.ErrChainUnavailable)
}

func TestNewEVMScanner_RejectsTron(t *testing.T) {
	_, err := NewEVMScanner(vo.ChainTron, "key", ratelimit.NoopLimiter{}, logger.NewNop())
	assert.Error(t, err)
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) (bool, error) {
	return false, nil
}

func TestEVMScanner_LocalRateLimit(t *testing.T) {
	scanner, err := NewEVMScanner(vo.ChainEthereum, "key", denyLimiter{}, logger.NewNop())
	require.NoError(t, err)

	_, err = scanner.Verify(context.Background(), baseRequest(testHash("5")))
	assert.ErrorIs(t, err, verification.ErrChainUnavailable)
}
