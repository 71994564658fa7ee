package blockchain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"payguard/internal/application/verification/chain"
	vo "payguard/internal/domain/verification/valueobjects"
	"payguard/internal/infrastructure/ratelimit"
	"payguard/internal/shared/logger"
)

const (
	// TronGrid API base URL.
	trongridAPIURL = "https://api.trongrid.io"
	// USDT contract address on Tron (TRC-20).
	tronUSDTContract = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	// Transfers fetched per TronGrid query.
	tronFetchLimit = 200
)

// trc20Transfer represents a TRC-20 transfer from TronGrid.
type trc20Transfer struct {
	TransactionID  string `json:"transaction_id"`
	BlockTimestamp int64  `json:"block_timestamp"`
	From           string `json:"from"`
	To             string `json:"to"`
	Value          string `json:"value"`
	TokenInfo      struct {
		Address  string `json:"address"`
		Decimals int    `json:"decimals"`
	} `json:"token_info"`
}

// trc20Response represents the TronGrid TRC-20 transfer envelope.
type trc20Response struct {
	Data    []trc20Transfer `json:"data"`
	Success bool            `json:"success"`
	Meta    struct {
		Fingerprint string `json:"fingerprint"`
	} `json:"meta"`
}

// TronScanner resolves claimed USDT (TRC-20) transfers through TronGrid.
// Tron addresses are Base58Check encoded and case-sensitive; transaction
// hashes are plain hex without the 0x prefix.
type TronScanner struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    ratelimit.ScanLimiter
	logger     logger.Interface
}

// NewTronScanner creates a new TronGrid-backed scanner.
func NewTronScanner(apiKey string, limiter ratelimit.ScanLimiter, log logger.Interface) *TronScanner {
	return &TronScanner{
		apiKey:  apiKey,
		baseURL: trongridAPIURL,
		httpClient: &http.Client{
			Timeout: scanRequestTimeout,
		},
		limiter: limiter,
		logger:  log,
	}
}

func (s *TronScanner) Chain() vo.Chain {
	return vo.ChainTron
}

// Verify looks the claimed hash up among recent USDT transfers to the
// receiving address and evaluates the on-chain checks against the claim.
func (s *TronScanner) Verify(ctx context.Context, req chain.VerifyRequest) (*chain.VerifyResult, error) {
	if s.apiKey == "" {
		return nil, unavailable("trongrid API key not configured")
	}
	if req.RecipientAddress == "" {
		return nil, unavailable("receiving address not configured for chain tron")
	}

	allowed, err := s.limiter.Allow(ctx, vo.ChainTron.String())
	if err != nil {
		return nil, unavailable("rate limiter check failed: %v", err)
	}
	if !allowed {
		return nil, unavailable("scan API rate limit reached for chain tron")
	}

	transfers, err := s.fetchTransfers(ctx, req.RecipientAddress)
	if err != nil {
		return nil, err
	}

	wantHash := strings.ToLower(req.TxHash)
	for _, transfer := range transfers {
		if strings.ToLower(transfer.TransactionID) != wantHash {
			continue
		}
		return s.evaluate(ctx, transfer, req), nil
	}

	s.logger.Debugw("claimed transaction not found", "chain", "tron", "tx_hash", req.TxHash)
	return &chain.VerifyResult{
		Reasons: []string{fmt.Sprintf(
			"transaction %s not found among recent USDT transfers to the receiving address", req.TxHash)},
	}, nil
}

func (s *TronScanner) evaluate(ctx context.Context, transfer trc20Transfer, req chain.VerifyRequest) *chain.VerifyResult {
	var reasons []string
	checks := vo.CheckSet{TransactionExists: true}

	// Base58Check addresses compare case-sensitively.
	checks.RecipientVerified = transfer.To == req.RecipientAddress
	if !checks.RecipientVerified {
		reasons = append(reasons, fmt.Sprintf("transfer recipient %s is not the receiving address", transfer.To))
	}

	if req.SenderAddress == "" {
		checks.SenderVerified = true
	} else {
		checks.SenderVerified = transfer.From == req.SenderAddress
		if !checks.SenderVerified {
			reasons = append(reasons, fmt.Sprintf(
				"on-chain sender %s does not match claimed address %s", transfer.From, req.SenderAddress))
		}
	}

	decimals := transfer.TokenInfo.Decimals
	if decimals == 0 {
		decimals = 6
	}
	amount := decimal.Zero
	if raw, err := decimal.NewFromString(transfer.Value); err != nil {
		reasons = append(reasons, fmt.Sprintf("unparseable transfer amount %q", transfer.Value))
	} else {
		amount = raw.Shift(int32(-decimals))
		checks.AmountVerified = req.WithinTolerance(amount)
		if !checks.AmountVerified {
			reasons = append(reasons, fmt.Sprintf(
				"on-chain amount %s USD outside tolerance of claimed %s USD",
				amount.StringFixed(2), req.AmountUSD.StringFixed(2)))
		}
	}

	blockNumber, confirmations := s.transactionDepth(ctx, transfer.TransactionID)
	checks.Confirmed = confirmations >= req.MinConfirmations
	if !checks.Confirmed {
		reasons = append(reasons, fmt.Sprintf(
			"confirmations %d below required %d", confirmations, req.MinConfirmations))
	}

	txTime := time.UnixMilli(transfer.BlockTimestamp)
	var timeReason string
	checks.TimeValid, timeReason = timeWindowCheck(txTime, req.SubmittedAt, req.ExpiresAt)
	if !checks.TimeValid {
		reasons = append(reasons, timeReason)
	}

	raw, _ := json.Marshal(onChainTransfer{
		TxHash:        transfer.TransactionID,
		FromAddress:   transfer.From,
		ToAddress:     transfer.To,
		AmountUSD:     amount.StringFixed(2),
		TokenContract: transfer.TokenInfo.Address,
		BlockNumber:   blockNumber,
		Confirmations: confirmations,
		Timestamp:     txTime.UTC(),
	})

	return &chain.VerifyResult{
		Checks:  checks,
		Reasons: reasons,
		RawData: raw,
	}
}

// fetchTransfers fetches recent USDT transfers to the receiving address.
func (s *TronScanner) fetchTransfers(ctx context.Context, toAddress string) ([]trc20Transfer, error) {
	url := fmt.Sprintf("%s/v1/accounts/%s/transactions/trc20?only_to=true&limit=%d&contract_address=%s",
		s.baseURL, toAddress, tronFetchLimit, tronUSDTContract)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, unavailable("failed to create request: %v", err)
	}
	req.Header.Set("TRON-PRO-API-KEY", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, unavailable("failed to fetch transfers: %v", err)
	}
	defer resp.Body.Close()

	var apiResp trc20Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxScanResponseSize)).Decode(&apiResp); err != nil {
		return nil, unavailable("failed to decode response: %v", err)
	}

	if !apiResp.Success {
		return nil, unavailable("trongrid API request failed, possibly rate limited or invalid API key")
	}

	return apiResp.Data, nil
}

// transactionDepth returns the block number and confirmation count for a
// transaction. Failures degrade to zero confirmations rather than aborting
// the pass; the record stays pending and is re-checked.
func (s *TronScanner) transactionDepth(ctx context.Context, txHash string) (uint64, int) {
	url := fmt.Sprintf("%s/v1/transactions/%s", s.baseURL, txHash)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0
	}
	req.Header.Set("TRON-PRO-API-KEY", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warnw("failed to fetch transaction details", "tx_hash", txHash, "error", err)
		return 0, 0
	}
	defer resp.Body.Close()

	var txResp struct {
		Data []struct {
			BlockNumber int64 `json:"blockNumber"`
		} `json:"data"`
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxScanResponseSize)).Decode(&txResp); err != nil {
		return 0, 0
	}
	if !txResp.Success || len(txResp.Data) == 0 {
		return 0, 0
	}

	blockNumber := uint64(txResp.Data[0].BlockNumber)

	currentBlock, err := s.currentBlockNumber(ctx)
	if err != nil {
		s.logger.Warnw("failed to get current block", "error", err)
		return blockNumber, 0
	}

	confirmations := int(currentBlock - blockNumber + 1)
	if confirmations < 0 {
		confirmations = 0
	}
	return blockNumber, confirmations
}

// currentBlockNumber returns the current block height on Tron.
func (s *TronScanner) currentBlockNumber(ctx context.Context) (uint64, error) {
	url := fmt.Sprintf("%s/wallet/getnowblock", s.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("TRON-PRO-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var blockResp struct {
		BlockHeader struct {
			RawData struct {
				Number int64 `json:"number"`
			} `json:"raw_data"`
		} `json:"block_header"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxScanResponseSize)).Decode(&blockResp); err != nil {
		return 0, err
	}

	return uint64(blockResp.BlockHeader.RawData.Number), nil
}
