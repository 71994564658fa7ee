package blockchain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"payguard/internal/application/verification/chain"
	vo "payguard/internal/domain/verification/valueobjects"
	"payguard/internal/infrastructure/ratelimit"
	"payguard/internal/shared/logger"
)

// Etherscan V2 API base URL (unified for all EVM chains).
const etherscanV2APIURL = "https://api.etherscan.io/v2/api"

// USDT contract addresses per EVM chain.
var evmUSDTContracts = map[vo.Chain]string{
	vo.ChainEthereum: "0xdAC17F958D2ee523a2206206994597C13D831ec7",
	vo.ChainBSC:      "0x55d398326f99059fF775485246999027B3197955",
	vo.ChainPolygon:  "0xc2132D05D31c914a87C6611C10748AEb04B58e8F",
}

// etherscanResponse represents the Etherscan V2 API envelope.
type etherscanResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  any    `json:"result"`
}

// evmTokenTransfer represents a token transfer row from Etherscan.
type evmTokenTransfer struct {
	BlockNumber   string `json:"blockNumber"`
	TimeStamp     string `json:"timeStamp"`
	Hash          string `json:"hash"`
	From          string `json:"from"`
	To            string `json:"to"`
	Value         string `json:"value"`
	ContractAddr  string `json:"contractAddress"`
	TokenDecimal  string `json:"tokenDecimal"`
	Confirmations string `json:"confirmations"`
}

// EVMScanner resolves claimed USDT transfers on one EVM chain through the
// Etherscan V2 unified API.
type EVMScanner struct {
	chainID    vo.Chain
	apiChainID string
	contract   string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    ratelimit.ScanLimiter
	logger     logger.Interface
}

// NewEVMScanner creates a scanner for the given EVM chain.
func NewEVMScanner(chainID vo.Chain, apiKey string, limiter ratelimit.ScanLimiter, log logger.Interface) (*EVMScanner, error) {
	if !chainID.IsEVM() {
		return nil, fmt.Errorf("chain %s is not an EVM chain", chainID)
	}
	return &EVMScanner{
		chainID:    chainID,
		apiChainID: chainID.EtherscanChainID(),
		contract:   evmUSDTContracts[chainID],
		apiKey:     apiKey,
		baseURL:    etherscanV2APIURL,
		httpClient: &http.Client{
			Timeout: scanRequestTimeout,
		},
		limiter: limiter,
		logger:  log,
	}, nil
}

func (s *EVMScanner) Chain() vo.Chain {
	return s.chainID
}

// Verify looks the claimed hash up among recent USDT transfers to the
// receiving address and evaluates the on-chain checks against the claim.
func (s *EVMScanner) Verify(ctx context.Context, req chain.VerifyRequest) (*chain.VerifyResult, error) {
	if s.apiKey == "" {
		return nil, unavailable("etherscan API key not configured")
	}
	if req.RecipientAddress == "" {
		return nil, unavailable("receiving address not configured for chain %s", s.chainID)
	}

	allowed, err := s.limiter.Allow(ctx, s.chainID.String())
	if err != nil {
		return nil, unavailable("rate limiter check failed: %v", err)
	}
	if !allowed {
		return nil, unavailable("scan API rate limit reached for chain %s", s.chainID)
	}

	recipient := strings.ToLower(req.RecipientAddress)
	wantHash := strings.ToLower(req.TxHash)
	minTime := req.SubmittedAt.Add(-clockSkewBuffer)

	for page := 1; page <= maxScanPages; page++ {
		transfers, err := s.fetchTokenTransfers(ctx, recipient, page)
		if err != nil {
			return nil, err
		}
		if len(transfers) == 0 {
			break
		}

		for _, transfer := range transfers {
			if strings.ToLower(transfer.Hash) == wantHash {
				return s.evaluate(transfer, req), nil
			}
			// Results are sorted desc; anything older than the submission
			// window cannot be the claimed transfer.
			timestamp, _ := strconv.ParseInt(transfer.TimeStamp, 10, 64)
			if time.Unix(timestamp, 0).Before(minTime) {
				return s.notFound(req), nil
			}
		}
	}

	return s.notFound(req), nil
}

func (s *EVMScanner) notFound(req chain.VerifyRequest) *chain.VerifyResult {
	s.logger.Debugw("claimed transaction not found",
		"chain", s.chainID,
		"tx_hash", req.TxHash,
	)
	return &chain.VerifyResult{
		Reasons: []string{fmt.Sprintf(
			"transaction %s not found among recent USDT transfers to the receiving address", req.TxHash)},
	}
}

func (s *EVMScanner) evaluate(transfer evmTokenTransfer, req chain.VerifyRequest) *chain.VerifyResult {
	var reasons []string
	checks := vo.CheckSet{TransactionExists: true}

	checks.RecipientVerified = strings.EqualFold(transfer.To, req.RecipientAddress)
	if !checks.RecipientVerified {
		reasons = append(reasons, fmt.Sprintf("transfer recipient %s is not the receiving address", transfer.To))
	}

	if req.SenderAddress == "" {
		// No sender claimed: nothing to contradict.
		checks.SenderVerified = true
	} else {
		checks.SenderVerified = strings.EqualFold(transfer.From, req.SenderAddress)
		if !checks.SenderVerified {
			reasons = append(reasons, fmt.Sprintf(
				"on-chain sender %s does not match claimed address %s", transfer.From, req.SenderAddress))
		}
	}

	amount, err := parseTokenAmount(transfer.Value, transfer.TokenDecimal)
	if err != nil {
		reasons = append(reasons, fmt.Sprintf("unparseable transfer amount %q", transfer.Value))
	} else {
		checks.AmountVerified = req.WithinTolerance(amount)
		if !checks.AmountVerified {
			reasons = append(reasons, fmt.Sprintf(
				"on-chain amount %s USD outside tolerance of claimed %s USD",
				amount.StringFixed(2), req.AmountUSD.StringFixed(2)))
		}
	}

	confirmations, _ := strconv.Atoi(transfer.Confirmations)
	checks.Confirmed = confirmations >= req.MinConfirmations
	if !checks.Confirmed {
		reasons = append(reasons, fmt.Sprintf(
			"confirmations %d below required %d", confirmations, req.MinConfirmations))
	}

	timestamp, _ := strconv.ParseInt(transfer.TimeStamp, 10, 64)
	txTime := time.Unix(timestamp, 0)
	var timeReason string
	checks.TimeValid, timeReason = timeWindowCheck(txTime, req.SubmittedAt, req.ExpiresAt)
	if !checks.TimeValid {
		reasons = append(reasons, timeReason)
	}

	blockNumber, _ := strconv.ParseUint(transfer.BlockNumber, 10, 64)
	raw, _ := json.Marshal(onChainTransfer{
		TxHash:        transfer.Hash,
		FromAddress:   transfer.From,
		ToAddress:     transfer.To,
		AmountUSD:     amount.StringFixed(2),
		TokenContract: transfer.ContractAddr,
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

// fetchTokenTransfers fetches one page of USDT transfers to the address.
func (s *EVMScanner) fetchTokenTransfers(ctx context.Context, address string, page int) ([]evmTokenTransfer, error) {
	url := fmt.Sprintf("%s?chainid=%s&module=account&action=tokentx&contractaddress=%s&address=%s&page=%d&offset=%d&sort=desc&apikey=%s",
		s.baseURL, s.apiChainID, s.contract, address, page, scanPageSize, s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, unavailable("failed to create request: %v", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, unavailable("failed to fetch transfers: %v", err)
	}
	defer resp.Body.Close()

	var apiResp etherscanResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxScanResponseSize)).Decode(&apiResp); err != nil {
		return nil, unavailable("failed to decode response: %v", err)
	}

	if apiResp.Status != "1" {
		if apiResp.Message == "No transactions found" {
			return nil, nil
		}
		if apiResp.Message == "NOTOK" {
			if resultStr, ok := apiResp.Result.(string); ok && resultStr != "" {
				return nil, unavailable("etherscan API error: %s", resultStr)
			}
			return nil, unavailable("etherscan API rate limited")
		}
		return nil, unavailable("etherscan API error: %s", apiResp.Message)
	}

	resultBytes, err := json.Marshal(apiResp.Result)
	if err != nil {
		return nil, unavailable("failed to marshal result: %v", err)
	}

	var transfers []evmTokenTransfer
	if err := json.Unmarshal(resultBytes, &transfers); err != nil {
		return nil, unavailable("failed to unmarshal transfers: %v", err)
	}

	return transfers, nil
}

// parseTokenAmount converts a raw integer token value to its USD amount
// using the token's decimal count.
func parseTokenAmount(value, tokenDecimal string) (decimal.Decimal, error) {
	raw, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}
	decimals, err := strconv.ParseInt(tokenDecimal, 10, 32)
	if err != nil {
		return decimal.Zero, err
	}
	return raw.Shift(int32(-decimals)), nil
}
