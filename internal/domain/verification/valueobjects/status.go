package valueobjects

// Status is the verification state of a manual payment. It is a closed enum;
// every consumer must handle each variant exhaustively.
type Status string

const (
	// StatusPending means the payment has been scored but the chain
	// cross-check has not completed yet.
	StatusPending Status = "pending"
	// StatusAutoApproved means the engine approved the payment without
	// human review: score at or above threshold and every chain check passed.
	StatusAutoApproved Status = "auto_approved"
	// StatusManualReviewRequired means a human must adjudicate.
	StatusManualReviewRequired Status = "manual_review_required"
	// StatusBlockchainFailed means a definitive on-chain contradiction was
	// found (duplicate hash, missing transaction, amount or party mismatch).
	StatusBlockchainFailed Status = "blockchain_failed"
	// StatusApproved is the admin-decided terminal approval.
	StatusApproved Status = "approved"
	// StatusRejected is the admin-decided terminal rejection.
	StatusRejected Status = "rejected"
	// StatusExpired means the review window elapsed before a decision.
	StatusExpired Status = "expired"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAutoApproved, StatusManualReviewRequired,
		StatusBlockchainFailed, StatusApproved, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further engine transitions are possible.
// auto_approved is deliberately NOT terminal: re-verification with
// contradicting on-chain evidence must be able to downgrade it.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusExpired
}

// IsDecidable reports whether an admin approve/reject decision applies.
func (s Status) IsDecidable() bool {
	return s == StatusManualReviewRequired || s == StatusBlockchainFailed || s == StatusAutoApproved
}

// CanExpire reports whether the expiry sweep may reap this status.
// blockchain_failed expiry is policy-controlled and decided by the caller.
func (s Status) CanExpire(expireBlockchainFailed bool) bool {
	switch s {
	case StatusPending, StatusManualReviewRequired:
		return true
	case StatusBlockchainFailed:
		return expireBlockchainFailed
	default:
		return false
	}
}

// AllowsChainCheck reports whether a (re-)verification pass may run.
func (s Status) AllowsChainCheck() bool {
	switch s {
	case StatusPending, StatusManualReviewRequired, StatusAutoApproved, StatusBlockchainFailed:
		return true
	default:
		return false
	}
}
