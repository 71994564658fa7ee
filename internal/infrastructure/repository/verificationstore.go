package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"payguard/internal/domain/verification"
	vo "payguard/internal/domain/verification/valueobjects"
	"payguard/internal/infrastructure/persistence/mappers"
	"payguard/internal/infrastructure/persistence/models"
	"payguard/internal/shared/biztime"
	"payguard/internal/shared/db"
)

// VerificationStore is the GORM-backed verification.Store and
// verification.AuditLog. Verification writes are conditional updates on
// (verification_status, version); audit events are appended in the same
// transaction as the write they describe.
type VerificationStore struct {
	db *gorm.DB
}

// NewVerificationStore creates a new VerificationStore.
func NewVerificationStore(gdb *gorm.DB) *VerificationStore {
	return &VerificationStore{db: gdb}
}

func (s *VerificationStore) CreatePayment(ctx context.Context, payment *verification.ManualPayment) error {
	model := mappers.ManualPaymentToModel(payment)
	if err := db.GetTxFromContext(ctx, s.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create manual payment: %w", err)
	}
	return nil
}

func (s *VerificationStore) CreateVerification(ctx context.Context, v *verification.Verification) error {
	model, err := mappers.VerificationToModel(v)
	if err != nil {
		return err
	}

	events := v.PullEvents()

	return db.GetTxFromContext(ctx, s.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("failed to create verification result: %w", err)
		}
		return appendEvents(tx, events)
	})
}

func (s *VerificationStore) Get(ctx context.Context, paymentID string) (*verification.Record, error) {
	tx := db.GetTxFromContext(ctx, s.db)

	var paymentModel models.ManualPaymentModel
	if err := tx.Where("payment_id = ?", paymentID).First(&paymentModel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, verification.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get manual payment: %w", err)
	}

	var resultModel models.VerificationResultModel
	if err := tx.Where("payment_id = ?", paymentID).First(&resultModel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, verification.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get verification result: %w", err)
	}

	payment, err := mappers.ManualPaymentToDomain(&paymentModel)
	if err != nil {
		return nil, err
	}
	v, err := mappers.VerificationToDomain(&resultModel)
	if err != nil {
		return nil, err
	}

	return &verification.Record{Payment: payment, Verification: v}, nil
}

// Save persists the verification state with a conditional update: the row
// must still carry the status and version the aggregate was loaded with.
// Zero affected rows means a competing writer won and the caller must
// re-read before retrying.
func (s *VerificationStore) Save(ctx context.Context, v *verification.Verification, expectedPriorStatus vo.Status) error {
	model, err := mappers.VerificationToModel(v)
	if err != nil {
		return err
	}

	events := v.PullEvents()

	return db.GetTxFromContext(ctx, s.db).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.VerificationResultModel{}).
			Where("payment_id = ? AND verification_status = ? AND version = ?",
				model.PaymentID, expectedPriorStatus.String(), model.Version).
			Updates(map[string]interface{}{
				"verification_status":     model.Status,
				"blockchain_verified":     model.BlockchainVerified,
				"verification_confidence": model.Confidence,
				"verification_checks":     model.Checks,
				"verification_errors":     model.Errors,
				"blockchain_data":         model.BlockchainData,
				"version":                 gorm.Expr("version + 1"),
				"updated_at":              model.UpdatedAt,
			})

		if result.Error != nil {
			return fmt.Errorf("failed to update verification result: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return verification.ErrConcurrentModification
		}

		return appendEvents(tx, events)
	})
}

func appendEvents(tx *gorm.DB, events []verification.AuditEvent) error {
	for _, e := range events {
		if err := tx.Create(mappers.AuditEventToModel(e)).Error; err != nil {
			return fmt.Errorf("failed to append audit event: %w", err)
		}
	}
	return nil
}

// HashOwner returns the payment_id holding the hash on the chain, or "" when
// the hash is unclaimed. The earliest-created claim owns a contested hash,
// with the insertion id breaking created_at ties. EVM hashes compare
// case-insensitively.
func (s *VerificationStore) HashOwner(ctx context.Context, chain vo.Chain, hash string) (string, error) {
	var owner string

	err := db.GetTxFromContext(ctx, s.db).
		Model(&models.ManualPaymentModel{}).
		Select("payment_id").
		Where("chain = ? AND LOWER(tx_hash) = LOWER(?)", chain.String(), hash).
		Order("created_at ASC, id ASC").
		Limit(1).
		Scan(&owner).Error
	if err != nil {
		return "", fmt.Errorf("failed to check transaction hash: %w", err)
	}

	return owner, nil
}

func (s *VerificationStore) ListByStatus(ctx context.Context, statuses []vo.Status, page, pageSize int) ([]*verification.Record, int64, error) {
	tx := db.GetTxFromContext(ctx, s.db)

	query := tx.Model(&models.VerificationResultModel{})
	if len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, st := range statuses {
			values = append(values, st.String())
		}
		query = query.Where("verification_status IN ?", values)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count verification results: %w", err)
	}

	var resultModels []models.VerificationResultModel
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&resultModels).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list verification results: %w", err)
	}

	records, err := s.attachPayments(tx, resultModels)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (s *VerificationStore) ListExpiryCandidates(ctx context.Context, now time.Time, includeBlockchainFailed bool) ([]*verification.Record, error) {
	statuses := []string{
		vo.StatusPending.String(),
		vo.StatusManualReviewRequired.String(),
	}
	if includeBlockchainFailed {
		statuses = append(statuses, vo.StatusBlockchainFailed.String())
	}

	tx := db.GetTxFromContext(ctx, s.db)

	var resultModels []models.VerificationResultModel
	err := tx.Model(&models.VerificationResultModel{}).
		Joins("JOIN manual_payments ON manual_payments.payment_id = verification_results.payment_id").
		Where("verification_results.verification_status IN ?", statuses).
		Where("manual_payments.expires_at <= ?", now).
		Find(&resultModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expiry candidates: %w", err)
	}

	return s.attachPayments(tx, resultModels)
}

func (s *VerificationStore) ListAwaitingChainCheck(ctx context.Context, limit int) ([]*verification.Record, error) {
	tx := db.GetTxFromContext(ctx, s.db)

	var resultModels []models.VerificationResultModel
	err := tx.Model(&models.VerificationResultModel{}).
		Joins("JOIN manual_payments ON manual_payments.payment_id = verification_results.payment_id").
		Where("verification_results.verification_status = ?", vo.StatusPending.String()).
		Where("manual_payments.expires_at > ?", biztime.NowUTC()).
		Order("verification_results.updated_at ASC").
		Limit(limit).
		Find(&resultModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending verifications: %w", err)
	}

	return s.attachPayments(tx, resultModels)
}

func (s *VerificationStore) CountByStatus(ctx context.Context) (map[vo.Status]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}

	err := db.GetTxFromContext(ctx, s.db).
		Model(&models.VerificationResultModel{}).
		Select("verification_status AS status, COUNT(*) AS n").
		Group("verification_status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[vo.Status]int64, len(rows))
	for _, row := range rows {
		counts[vo.Status(row.Status)] = row.N
	}
	return counts, nil
}

func (s *VerificationStore) ListByPayment(ctx context.Context, paymentID string) ([]verification.AuditEvent, error) {
	var eventModels []models.AuditEventModel

	err := db.GetTxFromContext(ctx, s.db).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC, id ASC").
		Find(&eventModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}

	events := make([]verification.AuditEvent, 0, len(eventModels))
	for i := range eventModels {
		events = append(events, mappers.AuditEventToDomain(&eventModels[i]))
	}
	return events, nil
}

func (s *VerificationStore) attachPayments(tx *gorm.DB, resultModels []models.VerificationResultModel) ([]*verification.Record, error) {
	if len(resultModels) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(resultModels))
	for i := range resultModels {
		ids = append(ids, resultModels[i].PaymentID)
	}

	var paymentModels []models.ManualPaymentModel
	if err := tx.Where("payment_id IN ?", ids).Find(&paymentModels).Error; err != nil {
		return nil, fmt.Errorf("failed to load manual payments: %w", err)
	}

	paymentsByID := make(map[string]*models.ManualPaymentModel, len(paymentModels))
	for i := range paymentModels {
		paymentsByID[paymentModels[i].PaymentID] = &paymentModels[i]
	}

	records := make([]*verification.Record, 0, len(resultModels))
	for i := range resultModels {
		paymentModel, ok := paymentsByID[resultModels[i].PaymentID]
		if !ok {
			return nil, fmt.Errorf("verification result %s has no payment row", resultModels[i].PaymentID)
		}
		payment, err := mappers.ManualPaymentToDomain(paymentModel)
		if err != nil {
			return nil, err
		}
		v, err := mappers.VerificationToDomain(&resultModels[i])
		if err != nil {
			return nil, err
		}
		records = append(records, &verification.Record{Payment: payment, Verification: v})
	}
	return records, nil
}
