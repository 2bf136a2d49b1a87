package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coaching-center-api/internal/dto"
	"github.com/noah-isme/coaching-center-api/internal/middleware"
	"github.com/noah-isme/coaching-center-api/internal/models"
	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
)

type dashboardServiceStub struct {
	cacheHit   bool
	teacherID  string
	studentID  string
	studentErr error
}

func (s *dashboardServiceStub) Admin(context.Context) (*dto.AdminDashboardResponse, bool, error) {
	return &dto.AdminDashboardResponse{
		AcademicYear: "2024-2025",
		Counts:       dto.DashboardCounts{Teachers: 2, Students: 3},
		Fees:         dto.FeeCollectionSummary{Expected: decimal.NewFromInt(80000), Collected: decimal.NewFromInt(20000)},
	}, s.cacheHit, nil
}

func (s *dashboardServiceStub) Teacher(_ context.Context, teacherID string) (*dto.TeacherDashboardResponse, bool, error) {
	s.teacherID = teacherID
	return &dto.TeacherDashboardResponse{TeacherID: teacherID, Month: "2024-06"}, false, nil
}

func (s *dashboardServiceStub) Student(_ context.Context, studentID string) (*dto.StudentDashboardResponse, error) {
	s.studentID = studentID
	if s.studentErr != nil {
		return nil, s.studentErr
	}
	return &dto.StudentDashboardResponse{StudentID: studentID}, nil
}

func dashboardContext(claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestDashboardHandlerAdminReportsCacheHit(t *testing.T) {
	stub := &dashboardServiceStub{cacheHit: true}
	handler := NewDashboardHandler(stub)
	c, w := dashboardContext(&models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Admin(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data dto.AdminDashboardResponse `json:"data"`
		Meta map[string]interface{}     `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "2024-2025", body.Data.AcademicYear)
	assert.Equal(t, 3, body.Data.Counts.Students)
	assert.Equal(t, true, body.Meta["cache_hit"])
	assert.Contains(t, body.Meta, "processing_time_ms")
}

func TestDashboardHandlerTeacherUsesCaller(t *testing.T) {
	stub := &dashboardServiceStub{}
	handler := NewDashboardHandler(stub)
	c, w := dashboardContext(&models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})

	handler.Teacher(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t1", stub.teacherID)
	assert.Contains(t, w.Body.String(), `"cache_hit":false`)
}

func TestDashboardHandlerStudent(t *testing.T) {
	stub := &dashboardServiceStub{}
	handler := NewDashboardHandler(stub)
	c, w := dashboardContext(&models.JWTClaims{UserID: "s1", Role: models.RoleStudent})

	handler.Student(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", stub.studentID)

	stub.studentErr = appErrors.Clone(appErrors.ErrNotFound, "student not found")
	c, w = dashboardContext(&models.JWTClaims{UserID: "ghost", Role: models.RoleStudent})
	handler.Student(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDashboardHandlerRequiresClaims(t *testing.T) {
	handler := NewDashboardHandler(&dashboardServiceStub{})
	c, w := dashboardContext(nil)

	handler.Teacher(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDashboardHandlerWithoutService(t *testing.T) {
	handler := NewDashboardHandler(nil)
	c, w := dashboardContext(&models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Admin(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
