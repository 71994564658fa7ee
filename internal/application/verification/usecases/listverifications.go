package usecases

import (
	"context"
	"fmt"

	"payguard/internal/application/verification/dto"
	"payguard/internal/domain/verification"
	vo "payguard/internal/domain/verification/valueobjects"
	"payguard/internal/shared/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListVerificationsQuery filters and paginates the verification listing.
type ListVerificationsQuery struct {
	Statuses []string
	Page     int
	PageSize int
}

// ListVerificationsResult is one page of listing rows.
type ListVerificationsResult struct {
	Items    []dto.VerificationListItemDTO `json:"items"`
	Total    int64                         `json:"total"`
	Page     int                           `json:"page"`
	PageSize int                           `json:"page_size"`
}

// ListVerificationsUseCase serves the admin review queue and the
// verification statistics view.
type ListVerificationsUseCase struct {
	store verification.Store
}

// NewListVerificationsUseCase creates a new ListVerificationsUseCase.
func NewListVerificationsUseCase(store verification.Store) *ListVerificationsUseCase {
	return &ListVerificationsUseCase{store: store}
}

// Execute returns one page of verification rows, newest first.
func (uc *ListVerificationsUseCase) Execute(ctx context.Context, query ListVerificationsQuery) (*ListVerificationsResult, error) {
	statuses := make([]vo.Status, 0, len(query.Statuses))
	for _, s := range query.Statuses {
		status := vo.Status(s)
		if !status.IsValid() {
			return nil, errors.NewValidationError(fmt.Sprintf("invalid status filter: %s", s))
		}
		statuses = append(statuses, status)
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	records, total, err := uc.store.ListByStatus(ctx, statuses, page, pageSize)
	if err != nil {
		return nil, err
	}

	items := make([]dto.VerificationListItemDTO, 0, len(records))
	for _, rec := range records {
		items = append(items, dto.ListItemFromRecord(rec))
	}

	return &ListVerificationsResult{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// Stats aggregates record counts per status.
func (uc *ListVerificationsUseCase) Stats(ctx context.Context) (*dto.VerificationStatsDTO, error) {
	counts, err := uc.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := &dto.VerificationStatsDTO{
		ByStatus: make(map[string]int64, len(counts)),
	}
	for status, n := range counts {
		stats.ByStatus[status.String()] = n
		stats.Total += n
	}
	stats.AutoApproved = counts[vo.StatusAutoApproved]
	stats.AwaitingReview = counts[vo.StatusManualReviewRequired] + counts[vo.StatusBlockchainFailed]

	return stats, nil
}
