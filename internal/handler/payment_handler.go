package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coaching-center-api/internal/middleware"
	"github.com/noah-isme/coaching-center-api/internal/models"
	"github.com/noah-isme/coaching-center-api/internal/service"
	"github.com/noah-isme/coaching-center-api/pkg/response"
)

type paymentService interface {
	ListSettlements(ctx context.Context, teacherID string) ([]models.TeacherPayment, error)
	CreateSettlement(ctx context.Context, teacherID string, req service.SettlementRequest, claims *models.JWTClaims) (*models.TeacherPayment, error)
	CreateAdjustment(ctx context.Context, teacherID string, req service.AdjustmentRequest, claims *models.JWTClaims) (*models.TeacherPayment, error)
	DeleteSettlement(ctx context.Context, id string) (*models.TeacherPayment, error)
	StudentBreakdown(ctx context.Context, studentID string) (*service.StudentLedger, error)
	CreateInstallment(ctx context.Context, studentID string, req service.InstallmentRequest) (*models.StudentPayment, error)
	UpdateInstallmentStatus(ctx context.Context, id string, req service.InstallmentStatusRequest) (*models.StudentPayment, error)
}

// PaymentHandler exposes teacher settlements and student installments.
type PaymentHandler struct {
	payments paymentService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments paymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// ListSettlements godoc
// @Summary List teacher settlements
// @Tags Payments
// @Produce json
// @Param teacherId path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /payments/teacher/{teacherId} [get]
func (h *PaymentHandler) ListSettlements(c *gin.Context) {
	payments, err := h.payments.ListSettlements(c.Request.Context(), c.Param("teacherId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// CreateSettlement godoc
// @Summary Settle a teacher month
// @Description Hours and amount default to the month's outstanding reconciliation. A month can be settled once; use adjustments for later payouts.
// @Tags Payments
// @Accept json
// @Produce json
// @Param teacherId path string true "Teacher ID"
// @Param payload body service.SettlementRequest true "Settlement"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/teacher/{teacherId} [post]
func (h *PaymentHandler) CreateSettlement(c *gin.Context) {
	var req service.SettlementRequest
	if !bindJSON(c, &req, "invalid settlement payload") {
		return
	}
	payment, err := h.payments.CreateSettlement(c.Request.Context(), c.Param("teacherId"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResource(c, payment.ID, payment)
	response.Created(c, payment)
}

// CreateAdjustment godoc
// @Summary Record an adjustment payout
// @Description Adds a payout to a month that may already be settled. Remarks are required.
// @Tags Payments
// @Accept json
// @Produce json
// @Param teacherId path string true "Teacher ID"
// @Param payload body service.AdjustmentRequest true "Adjustment"
// @Success 201 {object} response.Envelope
// @Router /payments/teacher/{teacherId}/adjustments [post]
func (h *PaymentHandler) CreateAdjustment(c *gin.Context) {
	var req service.AdjustmentRequest
	if !bindJSON(c, &req, "invalid adjustment payload") {
		return
	}
	payment, err := h.payments.CreateAdjustment(c.Request.Context(), c.Param("teacherId"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResource(c, payment.ID, payment)
	response.Created(c, payment)
}

// DeleteSettlement godoc
// @Summary Delete a settlement or adjustment
// @Tags Payments
// @Param paymentId path string true "Payment ID"
// @Success 204
// @Router /payments/teacher/settlements/{paymentId} [delete]
func (h *PaymentHandler) DeleteSettlement(c *gin.Context) {
	payment, err := h.payments.DeleteSettlement(c.Request.Context(), c.Param("paymentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResource(c, payment.ID, payment)
	response.NoContent(c)
}

// StudentBreakdown godoc
// @Summary Student installment breakdown
// @Description Installments grouped by academic year with running totals
// @Tags Payments
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /payments/student/{studentId} [get]
func (h *PaymentHandler) StudentBreakdown(c *gin.Context) {
	ledger, err := h.payments.StudentBreakdown(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ledger, nil)
}

// CreateInstallment godoc
// @Summary Record a student installment
// @Tags Payments
// @Accept json
// @Produce json
// @Param studentId path string true "Student ID"
// @Param payload body service.InstallmentRequest true "Installment"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/student/{studentId}/installment [post]
func (h *PaymentHandler) CreateInstallment(c *gin.Context) {
	var req service.InstallmentRequest
	if !bindJSON(c, &req, "invalid installment payload") {
		return
	}
	payment, err := h.payments.CreateInstallment(c.Request.Context(), c.Param("studentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResource(c, payment.ID, payment)
	response.Created(c, payment)
}

// UpdateInstallmentStatus godoc
// @Summary Change installment status
// @Tags Payments
// @Accept json
// @Produce json
// @Param paymentId path string true "Installment ID"
// @Param payload body service.InstallmentStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Router /payments/student/installments/{paymentId}/status [patch]
func (h *PaymentHandler) UpdateInstallmentStatus(c *gin.Context) {
	var req service.InstallmentStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}
	payment, err := h.payments.UpdateInstallmentStatus(c.Request.Context(), c.Param("paymentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResource(c, payment.ID, payment)
	response.JSON(c, http.StatusOK, payment, nil)
}
