package verification

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	vo "payguard/internal/domain/verification/valueobjects"
	"payguard/internal/shared/biztime"
	"payguard/internal/shared/id"
)

// ManualPayment is the immutable snapshot of a user-submitted crypto payment.
// It is owned by the submitting user's payment flow; the verification engine
// never mutates it after creation.
type ManualPayment struct {
	paymentID string
	userID    uint
	amountUSD decimal.Decimal
	chain     vo.Chain

	senderAddress *string
	txHash        *string
	senderName    string
	notes         string

	createdAt time.Time
	expiresAt time.Time
}

// NewManualPayment creates a payment snapshot at submission time.
// expiresAt is fixed to createdAt + reviewWindow and immutable afterwards.
func NewManualPayment(
	userID uint,
	amountUSD decimal.Decimal,
	chain vo.Chain,
	senderAddress, txHash *string,
	senderName, notes string,
	reviewWindow time.Duration,
) (*ManualPayment, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user ID is required")
	}
	if !amountUSD.IsPositive() {
		return nil, fmt.Errorf("amount must be positive")
	}
	if !chain.IsValid() {
		return nil, fmt.Errorf("invalid chain: %s", chain)
	}
	if reviewWindow <= 0 {
		return nil, fmt.Errorf("review window must be positive")
	}

	paymentID, err := id.GenerateWithPrefix(id.PrefixManualPayment, id.DefaultLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate payment ID: %w", err)
	}

	now := biztime.NowUTC()

	return &ManualPayment{
		paymentID:     paymentID,
		userID:        userID,
		amountUSD:     amountUSD,
		chain:         chain,
		senderAddress: normalizeOptional(senderAddress),
		txHash:        normalizeOptional(txHash),
		senderName:    senderName,
		notes:         notes,
		createdAt:     now,
		expiresAt:     now.Add(reviewWindow),
	}, nil
}

func normalizeOptional(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func (p *ManualPayment) PaymentID() string {
	return p.paymentID
}

func (p *ManualPayment) UserID() uint {
	return p.userID
}

func (p *ManualPayment) AmountUSD() decimal.Decimal {
	return p.amountUSD
}

func (p *ManualPayment) Chain() vo.Chain {
	return p.chain
}

func (p *ManualPayment) SenderAddress() *string {
	return p.senderAddress
}

func (p *ManualPayment) TxHash() *string {
	return p.txHash
}

func (p *ManualPayment) SenderName() string {
	return p.senderName
}

func (p *ManualPayment) Notes() string {
	return p.notes
}

func (p *ManualPayment) CreatedAt() time.Time {
	return p.createdAt
}

func (p *ManualPayment) ExpiresAt() time.Time {
	return p.expiresAt
}

// IsExpired reports whether the review window has elapsed at the given time.
func (p *ManualPayment) IsExpired(now time.Time) bool {
	return now.After(p.expiresAt)
}

// ReconstructManualPayment creates a ManualPayment instance from persistence.
func ReconstructManualPayment(
	paymentID string,
	userID uint,
	amountUSD decimal.Decimal,
	chain vo.Chain,
	senderAddress, txHash *string,
	senderName, notes string,
	createdAt, expiresAt time.Time,
) (*ManualPayment, error) {
	if !expiresAt.After(createdAt) {
		return nil, fmt.Errorf("expires_at must be after created_at")
	}
	return &ManualPayment{
		paymentID:     paymentID,
		userID:        userID,
		amountUSD:     amountUSD,
		chain:         chain,
		senderAddress: normalizeOptional(senderAddress),
		txHash:        normalizeOptional(txHash),
		senderName:    senderName,
		notes:         notes,
		createdAt:     createdAt,
		expiresAt:     expiresAt,
	}, nil
}
