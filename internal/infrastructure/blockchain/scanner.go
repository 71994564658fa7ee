// Package blockchain implements the chain adapters that resolve claimed
// transactions against public scan APIs (Etherscan V2 for EVM chains,
// TronGrid for Tron).
package blockchain

import (
	"fmt"
	"time"

	"payguard/internal/domain/verification"
)

const (
	// HTTP request timeout for scan APIs.
	scanRequestTimeout = 15 * time.Second
	// Maximum response body size accepted from a scan API (1MB).
	maxScanResponseSize = 1 << 20
	// Maximum transfer pages scanned before giving up on a hash.
	maxScanPages = 5
	// Results per page.
	scanPageSize = 200
	// Allowance for clock skew between this system and block timestamps.
	clockSkewBuffer = 30 * time.Second
)

// onChainTransfer is the raw evidence snapshot persisted as blockchain_data.
type onChainTransfer struct {
	TxHash        string    `json:"tx_hash"`
	FromAddress   string    `json:"from_address"`
	ToAddress     string    `json:"to_address"`
	AmountUSD     string    `json:"amount_usd"`
	TokenContract string    `json:"token_contract"`
	BlockNumber   uint64    `json:"block_number"`
	Confirmations int       `json:"confirmations"`
	Timestamp     time.Time `json:"timestamp"`
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", verification.ErrChainUnavailable, fmt.Sprintf(format, args...))
}

// timeWindowCheck evaluates whether a block timestamp falls inside the
// accepted window for the submission.
func timeWindowCheck(txTime, submittedAt, expiresAt time.Time) (bool, string) {
	if txTime.Before(submittedAt.Add(-clockSkewBuffer)) {
		return false, fmt.Sprintf("transaction at %s predates submission at %s",
			txTime.UTC().Format(time.RFC3339), submittedAt.UTC().Format(time.RFC3339))
	}
	if txTime.After(expiresAt) {
		return false, fmt.Sprintf("transaction at %s is after the review window end %s",
			txTime.UTC().Format(time.RFC3339), expiresAt.UTC().Format(time.RFC3339))
	}
	return true, ""
}
