// Package ratelimit throttles outbound blockchain scan-API calls so that
// verification bursts stay inside the per-key quotas of Etherscan and
// TronGrid.
package ratelimit

import "context"

// ScanLimiter gates one outbound scan-API call per Allow.
type ScanLimiter interface {
	// Allow reports whether a call for the given chain may proceed now.
	Allow(ctx context.Context, chain string) (bool, error)
}

// NoopLimiter allows everything, for deployments without Redis.
type NoopLimiter struct{}

func (NoopLimiter) Allow(context.Context, string) (bool, error) {
	return true, nil
}
