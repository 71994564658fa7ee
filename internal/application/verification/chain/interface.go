// Package chain defines the contract between the verification orchestrator
// and the per-blockchain adapters.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	vo "payguard/internal/domain/verification/valueobjects"
)

// VerifyRequest carries everything an adapter needs to resolve a claimed
// transaction on its chain and compare it against the submission.
type VerifyRequest struct {
	TxHash           string
	AmountUSD        decimal.Decimal
	SenderAddress    string
	RecipientAddress string
	MinConfirmations int

	// SubmittedAt/ExpiresAt bound the accepted transaction timestamp window.
	SubmittedAt time.Time
	ExpiresAt   time.Time

	// Amount tolerance band: a transaction amount within
	// max(ToleranceUSD, AmountUSD * TolerancePercent/100) of AmountUSD passes.
	ToleranceUSD     decimal.Decimal
	TolerancePercent decimal.Decimal
}

// WithinTolerance reports whether an on-chain amount matches the submitted
// amount within the request's tolerance band.
func (r VerifyRequest) WithinTolerance(onChain decimal.Decimal) bool {
	band := r.AmountUSD.Mul(r.TolerancePercent).Div(decimal.NewFromInt(100))
	if r.ToleranceUSD.GreaterThan(band) {
		band = r.ToleranceUSD
	}
	return onChain.Sub(r.AmountUSD).Abs().LessThanOrEqual(band)
}

// VerifyResult is one completed on-chain pass. Definitive mismatches are
// reported as false checks with reasons, never as errors; errors are reserved
// for transport failures (ErrChainUnavailable).
//
// NoDuplicates is not the adapter's concern: the orchestrator resolves it
// against the verification store and merges it in.
type VerifyResult struct {
	Checks  vo.CheckSet
	Reasons []string
	RawData json.RawMessage
}

// Adapter resolves claimed transactions on one blockchain.
type Adapter interface {
	// Chain returns the chain this adapter serves.
	Chain() vo.Chain

	// Verify resolves the transaction by hash and evaluates the on-chain
	// checks. A transient RPC/network failure returns an error wrapping
	// verification.ErrChainUnavailable.
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
}

// Registry is the capability table mapping chains to their adapters.
// Registration is per-chain via the Adapter interface, not string dispatch.
type Registry struct {
	adapters map[vo.Chain]Adapter
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[vo.Chain]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Chain()] = a
	}
	return &Registry{adapters: m}
}

// Adapter returns the adapter registered for the chain.
func (r *Registry) Adapter(c vo.Chain) (Adapter, error) {
	a, ok := r.adapters[c]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for chain %s", c)
	}
	return a, nil
}

// Chains returns the chains with a registered adapter.
func (r *Registry) Chains() []vo.Chain {
	chains := make([]vo.Chain, 0, len(r.adapters))
	for _, c := range vo.AllChains() {
		if _, ok := r.adapters[c]; ok {
			chains = append(chains, c)
		}
	}
	return chains
}
