package testutil

import (
	"context"
	"fmt"
	"sync"

	"payguard/internal/application/verification/chain"
	vo "payguard/internal/domain/verification/valueobjects"
)

// FakeAdapter is a scriptable chain.Adapter. Results and errors are consumed
// in order; the last entry repeats once the script is exhausted.
type FakeAdapter struct {
	ChainID vo.Chain

	mu      sync.Mutex
	Results []*chain.VerifyResult
	Errs    []error
	Calls   int
}

func (a *FakeAdapter) Chain() vo.Chain {
	return a.ChainID
}

func (a *FakeAdapter) Verify(_ context.Context, _ chain.VerifyRequest) (*chain.VerifyResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := a.Calls
	a.Calls++

	if len(a.Errs) > 0 {
		idx := i
		if idx >= len(a.Errs) {
			idx = len(a.Errs) - 1
		}
		if err := a.Errs[idx]; err != nil {
			return nil, err
		}
	}

	if len(a.Results) == 0 {
		return nil, fmt.Errorf("FakeAdapter %s: call %d has no scripted result or error", a.ChainID, i)
	}
	idx := i
	if idx >= len(a.Results) {
		idx = len(a.Results) - 1
	}
	return a.Results[idx], nil
}

// PassingResult is a VerifyResult with every adapter-owned check passing.
func PassingResult() *chain.VerifyResult {
	return &chain.VerifyResult{
		Checks: vo.CheckSet{
			TransactionExists: true,
			SenderVerified:    true,
			RecipientVerified: true,
			AmountVerified:    true,
			Confirmed:         true,
			TimeValid:         true,
		},
		RawData: []byte(`{"status":"ok"}`),
	}
}
