package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coaching-center-api/internal/models"
	"github.com/noah-isme/coaching-center-api/internal/service"
	"github.com/noah-isme/coaching-center-api/pkg/response"
)

type testService interface {
	List(ctx context.Context, filter models.TestFilter, claims *models.JWTClaims) ([]models.Test, *models.Pagination, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.TestDetail, error)
	Create(ctx context.Context, req service.CreateTestRequest, claims *models.JWTClaims) (*models.Test, error)
	RecordMarks(ctx context.Context, testID string, req service.RecordMarksRequest, claims *models.JWTClaims) (*models.TestDetail, error)
}

// TestHandler exposes tests and marks.
type TestHandler struct {
	tests testService
}

// NewTestHandler constructs TestHandler.
func NewTestHandler(tests testService) *TestHandler {
	return &TestHandler{tests: tests}
}

// List godoc
// @Summary List tests
// @Tags Tests
// @Produce json
// @Param class query string false "Class"
// @Param section query string false "Section"
// @Param subject query string false "Subject"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /tests [get]
func (h *TestHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	filter := models.TestFilter{
		TeacherID: strings.TrimSpace(c.Query("teacher_id")),
		Class:     strings.TrimSpace(c.Query("class")),
		Section:   strings.TrimSpace(c.Query("section")),
		Subject:   strings.TrimSpace(c.Query("subject")),
	}
	filter.Page, filter.PageSize = pageParams(c)
	tests, pagination, err := h.tests.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tests, pagination)
}

// Get godoc
// @Summary Get test with marks
// @Tags Tests
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} response.Envelope
// @Router /tests/{id} [get]
func (h *TestHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	test, err := h.tests.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, test, nil)
}

// Create godoc
// @Summary Create test
// @Tags Tests
// @Accept json
// @Produce json
// @Param payload body service.CreateTestRequest true "Test payload"
// @Success 201 {object} response.Envelope
// @Router /tests [post]
func (h *TestHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req service.CreateTestRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	test, err := h.tests.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, test)
}

// RecordMarks godoc
// @Summary Record marks for a test
// @Description Obtained marks may not exceed the test's total marks
// @Tags Tests
// @Accept json
// @Produce json
// @Param id path string true "Test ID"
// @Param payload body service.RecordMarksRequest true "Marks"
// @Success 200 {object} response.Envelope
// @Router /tests/{id}/marks [post]
func (h *TestHandler) RecordMarks(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req service.RecordMarksRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	detail, err := h.tests.RecordMarks(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}
