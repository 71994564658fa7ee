package models

import (
	"time"

	"gorm.io/datatypes"
)

// VerificationResultModel is the mutable verification state of one payment.
// Writes are conditional on (verification_status, version); version advances
// by one on every successful write.
type VerificationResultModel struct {
	ID                 uint           `gorm:"primaryKey"`
	PaymentID          string         `gorm:"uniqueIndex;size:32;not null"`
	Status             string         `gorm:"column:verification_status;size:32;not null;index"`
	BlockchainVerified bool           `gorm:"not null;default:false"`
	Confidence         int            `gorm:"column:verification_confidence;not null;default:0"`
	Checks             datatypes.JSON `gorm:"column:verification_checks"`
	Errors             datatypes.JSON `gorm:"column:verification_errors"`
	BlockchainData     datatypes.JSON `gorm:"column:blockchain_data"`
	Version            int            `gorm:"not null;default:0"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (VerificationResultModel) TableName() string {
	return "verification_results"
}
