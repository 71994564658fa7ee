package mappers

import (
	"encoding/json"
	"fmt"

	"payguard/internal/domain/verification"
	vo "payguard/internal/domain/verification/valueobjects"
	"payguard/internal/infrastructure/persistence/models"
)

func ManualPaymentToModel(p *verification.ManualPayment) *models.ManualPaymentModel {
	return &models.ManualPaymentModel{
		PaymentID:     p.PaymentID(),
		UserID:        p.UserID(),
		AmountUSD:     p.AmountUSD(),
		Chain:         p.Chain().String(),
		SenderAddress: p.SenderAddress(),
		TxHash:        p.TxHash(),
		SenderName:    p.SenderName(),
		Notes:         p.Notes(),
		ExpiresAt:     p.ExpiresAt(),
		CreatedAt:     p.CreatedAt(),
	}
}

func ManualPaymentToDomain(model *models.ManualPaymentModel) (*verification.ManualPayment, error) {
	chain, err := vo.NewChain(model.Chain)
	if err != nil {
		return nil, fmt.Errorf("invalid chain: %w", err)
	}

	return verification.ReconstructManualPayment(
		model.PaymentID,
		model.UserID,
		model.AmountUSD,
		chain,
		model.SenderAddress,
		model.TxHash,
		model.SenderName,
		model.Notes,
		model.CreatedAt,
		model.ExpiresAt,
	)
}

func VerificationToModel(v *verification.Verification) (*models.VerificationResultModel, error) {
	model := &models.VerificationResultModel{
		PaymentID:          v.PaymentID(),
		Status:             v.Status().String(),
		BlockchainVerified: v.BlockchainVerified(),
		Confidence:         v.Confidence(),
		Version:            v.Version(),
		CreatedAt:          v.CreatedAt(),
		UpdatedAt:          v.UpdatedAt(),
	}

	if checks := v.Checks(); checks != nil {
		data, err := json.Marshal(checks)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal checks: %w", err)
		}
		model.Checks = data
	}

	if errs := v.VerificationErrors(); len(errs) > 0 {
		data, err := json.Marshal(errs)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal errors: %w", err)
		}
		model.Errors = data
	}

	if raw := v.BlockchainData(); len(raw) > 0 {
		model.BlockchainData = raw
	}

	return model, nil
}

func VerificationToDomain(model *models.VerificationResultModel) (*verification.Verification, error) {
	status := vo.Status(model.Status)
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid verification status: %s", model.Status)
	}

	var checks *vo.CheckSet
	if len(model.Checks) > 0 {
		checks = &vo.CheckSet{}
		if err := json.Unmarshal(model.Checks, checks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checks: %w", err)
		}
	}

	var verificationErrors []string
	if len(model.Errors) > 0 {
		if err := json.Unmarshal(model.Errors, &verificationErrors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal errors: %w", err)
		}
	}

	return verification.ReconstructVerification(
		model.PaymentID,
		status,
		model.BlockchainVerified,
		model.Confidence,
		checks,
		verificationErrors,
		model.BlockchainData,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	), nil
}

func AuditEventToModel(e verification.AuditEvent) *models.AuditEventModel {
	return &models.AuditEventModel{
		EventID:    e.ID,
		PaymentID:  e.PaymentID,
		EventType:  e.EventType,
		FromStatus: e.FromStatus.String(),
		ToStatus:   e.ToStatus.String(),
		Actor:      e.Actor,
		Notes:      e.Notes,
		CreatedAt:  e.CreatedAt,
	}
}

func AuditEventToDomain(model *models.AuditEventModel) verification.AuditEvent {
	return verification.AuditEvent{
		ID:         model.EventID,
		PaymentID:  model.PaymentID,
		EventType:  model.EventType,
		FromStatus: vo.Status(model.FromStatus),
		ToStatus:   vo.Status(model.ToStatus),
		Actor:      model.Actor,
		Notes:      model.Notes,
		CreatedAt:  model.CreatedAt,
	}
}
