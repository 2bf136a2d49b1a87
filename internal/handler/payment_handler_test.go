package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coaching-center-api/internal/middleware"
	"github.com/noah-isme/coaching-center-api/internal/models"
	"github.com/noah-isme/coaching-center-api/internal/service"
	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
)

type paymentServiceStub struct {
	settled      map[string]bool
	lastTeacher  string
	lastClaims   *models.JWTClaims
	lastStatus   models.InstallmentStatus
	installments []models.StudentPayment
}

func newPaymentServiceStub() *paymentServiceStub {
	return &paymentServiceStub{settled: map[string]bool{}}
}

func (s *paymentServiceStub) ListSettlements(_ context.Context, teacherID string) ([]models.TeacherPayment, error) {
	if teacherID == "missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	return []models.TeacherPayment{{ID: "p1", TeacherID: teacherID, Month: "2024-03", Amount: decimal.NewFromInt(600), Paid: true}}, nil
}

func (s *paymentServiceStub) CreateSettlement(_ context.Context, teacherID string, req service.SettlementRequest, claims *models.JWTClaims) (*models.TeacherPayment, error) {
	s.lastTeacher = teacherID
	s.lastClaims = claims
	key := teacherID + "/" + req.Month
	if s.settled[key] {
		return nil, appErrors.ErrDuplicateSettlement
	}
	s.settled[key] = true
	return &models.TeacherPayment{ID: "pay-" + req.Month, TeacherID: teacherID, Month: req.Month, Hours: 3, Amount: decimal.NewFromInt(600), Paid: true}, nil
}

func (s *paymentServiceStub) CreateAdjustment(_ context.Context, teacherID string, req service.AdjustmentRequest, _ *models.JWTClaims) (*models.TeacherPayment, error) {
	if req.Remarks == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "remarks are required for adjustments")
	}
	return &models.TeacherPayment{ID: "adj-1", TeacherID: teacherID, Month: req.Month, Amount: req.Amount, Paid: true, Adjustment: true}, nil
}

func (s *paymentServiceStub) DeleteSettlement(_ context.Context, id string) (*models.TeacherPayment, error) {
	if id != "pay-2024-03" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "settlement not found")
	}
	return &models.TeacherPayment{ID: id}, nil
}

func (s *paymentServiceStub) StudentBreakdown(_ context.Context, studentID string) (*service.StudentLedger, error) {
	return &service.StudentLedger{
		Student: models.Student{ID: studentID},
		Fees:    models.FeeStatus{OverallFees: decimal.NewFromInt(40000), PaidFees: decimal.NewFromInt(20000), DueFees: decimal.NewFromInt(20000)},
	}, nil
}

func (s *paymentServiceStub) CreateInstallment(_ context.Context, studentID string, req service.InstallmentRequest) (*models.StudentPayment, error) {
	payment := models.StudentPayment{ID: "inst-1", StudentID: studentID, InstallmentNumber: req.InstallmentNumber, TotalInstallments: 2, AcademicYear: "2024-2025", Amount: decimal.NewFromInt(20000), Status: models.InstallmentPaid}
	s.installments = append(s.installments, payment)
	return &payment, nil
}

func (s *paymentServiceStub) UpdateInstallmentStatus(_ context.Context, id string, req service.InstallmentStatusRequest) (*models.StudentPayment, error) {
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid installment status")
	}
	s.lastStatus = req.Status
	return &models.StudentPayment{ID: id, Status: req.Status}, nil
}

func paymentTestRouter(stub *paymentServiceStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewPaymentHandler(stub)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
		c.Next()
	})
	r.GET("/payments/teacher/:teacherId", h.ListSettlements)
	r.POST("/payments/teacher/:teacherId", h.CreateSettlement)
	r.POST("/payments/teacher/:teacherId/adjustments", h.CreateAdjustment)
	r.DELETE("/payments/teacher/settlements/:paymentId", h.DeleteSettlement)
	r.GET("/payments/student/:studentId", h.StudentBreakdown)
	r.POST("/payments/student/:studentId/installment", h.CreateInstallment)
	r.PATCH("/payments/student/installments/:paymentId/status", h.UpdateInstallmentStatus)
	return r
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPaymentHandlerCreateSettlement(t *testing.T) {
	stub := newPaymentServiceStub()
	r := paymentTestRouter(stub)

	w := doJSON(r, http.MethodPost, "/payments/teacher/t1", `{"month":"2024-03"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "t1", stub.lastTeacher)
	require.NotNil(t, stub.lastClaims)
	assert.Equal(t, "admin-1", stub.lastClaims.UserID)

	var body struct {
		Data models.TeacherPayment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "2024-03", body.Data.Month)
	assert.True(t, body.Data.Amount.Equal(decimal.NewFromInt(600)))

	w = doJSON(r, http.MethodPost, "/payments/teacher/t1", `{"month":"2024-03"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "DUPLICATE_SETTLEMENT")
}

func TestPaymentHandlerRejectsMalformedBody(t *testing.T) {
	r := paymentTestRouter(newPaymentServiceStub())

	w := doJSON(r, http.MethodPost, "/payments/teacher/t1", `{"month":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid settlement payload")
}

func TestPaymentHandlerAdjustmentRequiresRemarks(t *testing.T) {
	r := paymentTestRouter(newPaymentServiceStub())

	w := doJSON(r, http.MethodPost, "/payments/teacher/t1/adjustments", `{"month":"2024-03","amount":"150"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/payments/teacher/t1/adjustments", `{"month":"2024-03","amount":"150","remarks":"late lecture"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"adjustment":true`)
}

func TestPaymentHandlerDeleteSettlement(t *testing.T) {
	r := paymentTestRouter(newPaymentServiceStub())

	w := doJSON(r, http.MethodDelete, "/payments/teacher/settlements/pay-2024-03", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(r, http.MethodDelete, "/payments/teacher/settlements/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentHandlerListSettlements(t *testing.T) {
	r := paymentTestRouter(newPaymentServiceStub())

	w := doJSON(r, http.MethodGet, "/payments/teacher/t1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"month":"2024-03"`)

	w = doJSON(r, http.MethodGet, "/payments/teacher/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentHandlerInstallments(t *testing.T) {
	stub := newPaymentServiceStub()
	r := paymentTestRouter(stub)

	w := doJSON(r, http.MethodPost, "/payments/student/s1/installment", `{"installment_number":1,"total_installments":2,"method":"upi"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, stub.installments, 1)
	assert.Equal(t, "s1", stub.installments[0].StudentID)

	w = doJSON(r, http.MethodPatch, "/payments/student/installments/inst-1/status", `{"status":"overdue"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.InstallmentOverdue, stub.lastStatus)

	w = doJSON(r, http.MethodPatch, "/payments/student/installments/inst-1/status", `{"status":"refunded"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/payments/student/s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"student"`)
}
