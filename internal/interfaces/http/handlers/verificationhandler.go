package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"payguard/internal/application/verification/usecases"
	"payguard/internal/domain/verification"
	apperrors "payguard/internal/shared/errors"
	"payguard/internal/shared/logger"
	"payguard/internal/shared/utils"
)

// VerificationHandler exposes payment submission and the admin review surface.
type VerificationHandler struct {
	submitUC  *usecases.SubmitPaymentUseCase
	verifyUC  *usecases.VerifyPaymentUseCase
	approveUC *usecases.ApprovePaymentUseCase
	rejectUC  *usecases.RejectPaymentUseCase
	getUC     *usecases.GetVerificationUseCase
	listUC    *usecases.ListVerificationsUseCase
	logger    logger.Interface
}

func NewVerificationHandler(
	submitUC *usecases.SubmitPaymentUseCase,
	verifyUC *usecases.VerifyPaymentUseCase,
	approveUC *usecases.ApprovePaymentUseCase,
	rejectUC *usecases.RejectPaymentUseCase,
	getUC *usecases.GetVerificationUseCase,
	listUC *usecases.ListVerificationsUseCase,
	logger logger.Interface,
) *VerificationHandler {
	return &VerificationHandler{
		submitUC:  submitUC,
		verifyUC:  verifyUC,
		approveUC: approveUC,
		rejectUC:  rejectUC,
		getUC:     getUC,
		listUC:    listUC,
		logger:    logger,
	}
}

type SubmitPaymentRequest struct {
	UserID        uint    `json:"user_id" binding:"required"`
	AmountUSD     string  `json:"amount_usd" binding:"required"`
	Chain         string  `json:"chain" binding:"required"`
	SenderAddress *string `json:"sender_address"`
	TxHash        *string `json:"tx_hash"`
	SenderName    string  `json:"sender_name"`
	Notes         string  `json:"notes"`
}

type AdminDecisionRequest struct {
	AdminID string `json:"admin_id" binding:"required"`
	Notes   string `json:"notes"`
}

// SubmitPayment records a manually reported payment and queues it for
// verification. The response carries the scored status once the background
// pass runs; at submission time the record is always pending.
func (h *VerificationHandler) SubmitPayment(c *gin.Context) {
	var req SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorw("failed to bind request", "error", err)
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.AmountUSD)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid amount: "+req.AmountUSD)
		return
	}

	cmd := usecases.SubmitPaymentCommand{
		UserID:        req.UserID,
		AmountUSD:     amount,
		Chain:         req.Chain,
		SenderAddress: req.SenderAddress,
		TxHash:        req.TxHash,
		SenderName:    req.SenderName,
		Notes:         req.Notes,
	}

	detail, err := h.submitUC.Execute(c.Request.Context(), cmd)
	if err != nil {
		h.logger.Errorw("failed to submit payment", "error", err, "user_id", req.UserID)
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "payment submitted", detail)
}

// ListVerifications returns one page of verification records for the admin
// review queue. Statuses is a comma-separated filter, e.g.
// ?status=manual_review_required,blockchain_failed.
func (h *VerificationHandler) ListVerifications(c *gin.Context) {
	query := usecases.ListVerificationsQuery{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 0),
	}

	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				query.Statuses = append(query.Statuses, s)
			}
		}
	}

	result, err := h.listUC.Execute(c.Request.Context(), query)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// GetStats returns the per-status record counts.
func (h *VerificationHandler) GetStats(c *gin.Context) {
	stats, err := h.listUC.Stats(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to load verification stats", "error", err)
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", stats)
}

// GetVerification returns one verification record with its audit trail.
func (h *VerificationHandler) GetVerification(c *gin.Context) {
	detail, err := h.getUC.Execute(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", detail)
}

// ApprovePayment records an admin approval.
func (h *VerificationHandler) ApprovePayment(c *gin.Context) {
	var req AdminDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	detail, err := h.approveUC.Execute(c.Request.Context(), usecases.ApprovePaymentCommand{
		PaymentID: c.Param("id"),
		AdminID:   req.AdminID,
		Notes:     req.Notes,
	})
	if err != nil {
		h.logger.Errorw("failed to approve payment",
			"error", err, "payment_id", c.Param("id"), "admin_id", req.AdminID)
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "payment approved", detail)
}

// RejectPayment records an admin rejection.
func (h *VerificationHandler) RejectPayment(c *gin.Context) {
	var req AdminDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	detail, err := h.rejectUC.Execute(c.Request.Context(), usecases.RejectPaymentCommand{
		PaymentID: c.Param("id"),
		AdminID:   req.AdminID,
		Notes:     req.Notes,
	})
	if err != nil {
		h.logger.Errorw("failed to reject payment",
			"error", err, "payment_id", c.Param("id"), "admin_id", req.AdminID)
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "payment rejected", detail)
}

// RecheckPayment runs a synchronous verification pass on demand. Useful when
// an admin wants fresh chain evidence before deciding.
func (h *VerificationHandler) RecheckPayment(c *gin.Context) {
	detail, err := h.verifyUC.Execute(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Errorw("failed to re-verify payment", "error", err, "payment_id", c.Param("id"))
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "verification pass completed", detail)
}

// respondError translates domain sentinel errors into HTTP status codes before
// falling back to the shared AppError mapping.
func (h *VerificationHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, verification.ErrNotFound):
		utils.ErrorResponseWithError(c, apperrors.NewNotFoundError("verification record not found"))
	case errors.Is(err, verification.ErrDecisionConflict):
		utils.ErrorResponseWithError(c, apperrors.NewConflictError(err.Error()))
	case errors.Is(err, verification.ErrExpiredPayment):
		utils.ErrorResponseWithError(c, apperrors.NewConflictError(err.Error()))
	case errors.Is(err, verification.ErrConcurrentModification):
		utils.ErrorResponseWithError(c, apperrors.NewConflictError("record changed concurrently, retry"))
	default:
		utils.ErrorResponseWithError(c, err)
	}
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
