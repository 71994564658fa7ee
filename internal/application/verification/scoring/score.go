// Package scoring computes the heuristic confidence score for a manual
// payment from its submitted metadata alone. It is deterministic, side
// effect free and performs no I/O.
package scoring

import (
	"fmt"

	"github.com/shopspring/decimal"

	"payguard/internal/domain/verification"
)

// Point allocation. The four rules are applied independently and sum to 100.
const (
	// PointsTxHashFormat is granted when a transaction hash is present and
	// matches the chain's expected hex-length/prefix format.
	PointsTxHashFormat = 30
	// PointsSenderPresent is granted when a sender wallet address is present.
	PointsSenderPresent = 20
	// PointsSenderFormat is granted when the sender address passes
	// chain-specific format validation.
	PointsSenderFormat = 25
	// PointsAmountPlausible is granted when the amount is at or below the
	// plausibility ceiling.
	PointsAmountPlausible = 25

	// MaxScore is the highest achievable confidence score.
	MaxScore = 100
)

// maxPlausibleAmountUSD is the ceiling above which an amount stops earning
// plausibility points and always requires a human.
var maxPlausibleAmountUSD = decimal.NewFromInt(50000)

// Score maps a payment's submitted fields to a 0-100 confidence score.
// Every failed rule appends a human-readable reason for audit and display.
func Score(p *verification.ManualPayment) (int, []string) {
	score := 0
	var reasons []string

	chain := p.Chain()

	if hash := p.TxHash(); hash == nil {
		reasons = append(reasons, "transaction hash not provided")
	} else if err := chain.ValidateTxHash(*hash); err != nil {
		reasons = append(reasons, fmt.Sprintf("transaction hash format invalid: %v", err))
	} else {
		score += PointsTxHashFormat
	}

	if sender := p.SenderAddress(); sender == nil {
		reasons = append(reasons, "sender wallet address not provided")
	} else {
		score += PointsSenderPresent
		if err := chain.ValidateAddress(*sender); err != nil {
			reasons = append(reasons, fmt.Sprintf("sender wallet address format invalid: %v", err))
		} else {
			score += PointsSenderFormat
		}
	}

	if p.AmountUSD().GreaterThan(maxPlausibleAmountUSD) {
		reasons = append(reasons, fmt.Sprintf("amount %s USD exceeds plausibility ceiling %s USD",
			p.AmountUSD().StringFixed(2), maxPlausibleAmountUSD.StringFixed(0)))
	} else {
		score += PointsAmountPlausible
	}

	return score, reasons
}
