package verification

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a payment or verification record does not exist.
	ErrNotFound = errors.New("verification record not found")

	// ErrChainUnavailable marks a transient RPC/network failure. The
	// orchestrator treats it as "unable to verify", never as a negative finding.
	ErrChainUnavailable = errors.New("chain unavailable")

	// ErrDuplicateTransaction marks a transaction hash already attributed to a
	// different payment. Terminal negative finding.
	ErrDuplicateTransaction = errors.New("transaction hash already attributed to another payment")

	// ErrConcurrentModification is returned when an optimistic-concurrency
	// write lost the race against another writer.
	ErrConcurrentModification = errors.New("verification record was modified concurrently")

	// ErrExpiredPayment is returned when an operation targets an already
	// expired record.
	ErrExpiredPayment = errors.New("payment review window has expired")

	// ErrDecisionConflict is returned when an admin decision contradicts an
	// existing terminal decision (e.g. rejecting an approved payment).
	ErrDecisionConflict = errors.New("conflicting admin decision already recorded")
)

// ChainMismatchError is a definitive on-chain contradiction for one named check.
type ChainMismatchError struct {
	Check  string
	Reason string
}

func (e *ChainMismatchError) Error() string {
	return fmt.Sprintf("chain mismatch on %s: %s", e.Check, e.Reason)
}

// IsChainMismatch reports whether err wraps a ChainMismatchError.
func IsChainMismatch(err error) bool {
	var mismatch *ChainMismatchError
	return errors.As(err, &mismatch)
}
