package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ManualPaymentModel is the immutable submission snapshot. The verification
// engine never updates these rows after creation.
type ManualPaymentModel struct {
	ID            uint            `gorm:"primaryKey"`
	PaymentID     string          `gorm:"uniqueIndex;size:32;not null"`
	UserID        uint            `gorm:"index;not null"`
	AmountUSD     decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Chain         string          `gorm:"size:16;not null;index:idx_manual_payments_chain_hash"`
	SenderAddress *string         `gorm:"size:128"`
	TxHash        *string         `gorm:"size:128;index:idx_manual_payments_chain_hash"`
	SenderName    string          `gorm:"size:128"`
	Notes         string          `gorm:"type:text"`
	ExpiresAt     time.Time       `gorm:"not null;index"`
	CreatedAt     time.Time
}

func (ManualPaymentModel) TableName() string {
	return "manual_payments"
}
