package models

import "time"

// AuditEventModel is one append-only status transition record. Rows are
// inserted in the same transaction as the verification write they describe
// and never updated.
type AuditEventModel struct {
	ID         uint   `gorm:"primaryKey"`
	EventID    string `gorm:"uniqueIndex;size:40;not null"`
	PaymentID  string `gorm:"index;size:32;not null"`
	EventType  string `gorm:"size:40;not null"`
	FromStatus string `gorm:"size:32;not null"`
	ToStatus   string `gorm:"size:32;not null"`
	Actor      string `gorm:"size:64;not null"`
	Notes      string `gorm:"type:text"`
	CreatedAt  time.Time
}

func (AuditEventModel) TableName() string {
	return "verification_audit_events"
}
