package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/coaching-center-api/internal/middleware"
	"github.com/noah-isme/coaching-center-api/internal/models"
	"github.com/noah-isme/coaching-center-api/internal/reconcile"
	"github.com/noah-isme/coaching-center-api/internal/service"
	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
)

type auditRecorder struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (r *auditRecorder) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *log)
	return nil
}

type teacherReconcileStub struct {
	teacherService
}

func (teacherReconcileStub) Reconcile(_ context.Context, id string) (*reconcile.TeacherReconciliation, error) {
	if id == "" {
		return nil, appErrors.ErrNotFound
	}
	return &reconcile.TeacherReconciliation{TotalOutstanding: decimal.NewFromInt(400)}, nil
}

func buildTestRouter(audit *auditRecorder) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	testAuth := func(c *gin.Context) {
		role := c.GetHeader("X-Test-Role")
		if role == "" {
			response401(c)
			return
		}
		user := c.GetHeader("X-Test-User")
		if user == "" {
			user = "test-user"
		}
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: user, Role: models.UserRole(role)})
		c.Next()
	}

	handlers := Handlers{
		Auth:       &AuthHandler{},
		Teachers:   NewTeacherHandler(teacherReconcileStub{}),
		Students:   &StudentHandler{},
		Lectures:   &LectureHandler{},
		Payments:   NewPaymentHandler(newPaymentServiceStub()),
		Tests:      &TestHandler{},
		Attendance: &AttendanceHandler{},
		Dashboard:  NewDashboardHandler(&dashboardServiceStub{}),
		Reports:    &ReportHandler{},
		Uploads:    &UploadHandler{},
		Metrics:    NewMetricsHandler(service.NewMetricsService(), nil),
	}
	RegisterRoutes(router.Group("/api"), handlers, RouteOptions{
		Authenticate: testAuth,
		AuditLog:     audit,
		Logger:       zap.NewNop(),
	})
	return router
}

func response401(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": appErrors.ErrUnauthorized.Code}})
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRoutesSettlementLifecycle(t *testing.T) {
	audit := &auditRecorder{}
	router := buildTestRouter(audit)

	settle := func() *httptest.ResponseRecorder {
		req, _ := http.NewRequest(http.MethodPost, "/api/payments/teacher/t1", bytes.NewBufferString(`{"month":"2024-03"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleAdmin))
		req.Header.Set("X-Test-User", "admin-1")
		return performRequest(router, req)
	}

	t.Run("first settlement succeeds", func(t *testing.T) {
		resp := settle()
		require.Equal(t, http.StatusCreated, resp.Code)
	})

	t.Run("duplicate month conflicts", func(t *testing.T) {
		resp := settle()
		require.Equal(t, http.StatusConflict, resp.Code)
		require.Contains(t, resp.Body.String(), "DUPLICATE_SETTLEMENT")
	})

	t.Run("only the successful write is audited", func(t *testing.T) {
		require.Len(t, audit.entries, 1)
		entry := audit.entries[0]
		assert.Equal(t, models.AuditActionSettlementCreate, entry.Action)
		assert.Equal(t, "teacher_payments", entry.Resource)
		require.NotNil(t, entry.ResourceID)
		assert.Equal(t, "pay-2024-03", *entry.ResourceID)
		require.NotNil(t, entry.UserID)
		assert.Equal(t, "admin-1", *entry.UserID)
		assert.Contains(t, string(entry.NewValues), `"record"`)
	})
}

func TestRoutesAccessControl(t *testing.T) {
	router := buildTestRouter(&auditRecorder{})

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/payments/teacher/t1", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("teacher cannot settle", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/api/payments/teacher/t1", bytes.NewBufferString(`{"month":"2024-03"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleTeacher))
		req.Header.Set("X-Test-User", "t1")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("teacher reads own reconciliation", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/teachers/t1/payments", nil)
		req.Header.Set("X-Test-Role", string(models.RoleTeacher))
		req.Header.Set("X-Test-User", "t1")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"total_outstanding":"400"`)
	})

	t.Run("teacher cannot read another teacher", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/teachers/t2/payments", nil)
		req.Header.Set("X-Test-Role", string(models.RoleTeacher))
		req.Header.Set("X-Test-User", "t1")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("student reads own breakdown", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/payments/personalstudent/s1", nil)
		req.Header.Set("X-Test-Role", string(models.RoleStudent))
		req.Header.Set("X-Test-User", "s1")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("teacher cannot delete uploads", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, "/api/uploads/images/images/20240301/abc.png", nil)
		req.Header.Set("X-Test-Role", string(models.RoleTeacher))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("student dashboard is role gated", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/dashboard/student", nil)
		req.Header.Set("X-Test-Role", string(models.RoleTeacher))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})
}

func TestNewRouterServesProbes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(RouterConfig{
		Metrics: service.NewMetricsService(),
		Handlers: Handlers{
			Metrics: NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{"database": pingerFunc(func(context.Context) error { return nil })}),
		},
		Routes: RouteOptions{Authenticate: func(c *gin.Context) { c.Next() }},
	})

	resp := performRequest(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("X-Request-ID"))

	resp = performRequest(router, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = performRequest(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }
