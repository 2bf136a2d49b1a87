package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coaching-center-api/internal/models"
	"github.com/noah-isme/coaching-center-api/internal/service"
	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
	"github.com/noah-isme/coaching-center-api/pkg/response"
)

type lectureService interface {
	List(ctx context.Context, filter models.LectureFilter, claims *models.JWTClaims) ([]models.Lecture, *models.Pagination, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Lecture, error)
	Create(ctx context.Context, req service.LectureRequest, claims *models.JWTClaims) (*models.Lecture, error)
	Update(ctx context.Context, id string, req service.LectureRequest, claims *models.JWTClaims) (*models.Lecture, error)
	Delete(ctx context.Context, id string, claims *models.JWTClaims) error
}

// LectureHandler exposes the lecture ledger.
type LectureHandler struct {
	lectures lectureService
}

// NewLectureHandler constructs LectureHandler.
func NewLectureHandler(lectures lectureService) *LectureHandler {
	return &LectureHandler{lectures: lectures}
}

// List godoc
// @Summary List lectures
// @Description Teachers only see their own lectures
// @Tags Lectures
// @Produce json
// @Param teacher_id query string false "Teacher ID (admin only)"
// @Param class query string false "Class"
// @Param section query string false "Section"
// @Param subject query string false "Subject"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /lectures [get]
func (h *LectureHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	filter := models.LectureFilter{
		TeacherID: strings.TrimSpace(c.Query("teacher_id")),
		Class:     strings.TrimSpace(c.Query("class")),
		Section:   strings.TrimSpace(c.Query("section")),
		Subject:   strings.TrimSpace(c.Query("subject")),
	}
	var err error
	if filter.DateFrom, err = dateQuery(c, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.DateTo, err = dateQuery(c, "to"); err != nil {
		response.Error(c, err)
		return
	}
	filter.Page, filter.PageSize = pageParams(c)

	lectures, pagination, err := h.lectures.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lectures, pagination)
}

// Get godoc
// @Summary Get lecture
// @Tags Lectures
// @Produce json
// @Param id path string true "Lecture ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /lectures/{id} [get]
func (h *LectureHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	lecture, err := h.lectures.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lecture, nil)
}

// Create godoc
// @Summary Record lecture
// @Tags Lectures
// @Accept json
// @Produce json
// @Param payload body service.LectureRequest true "Lecture payload"
// @Success 201 {object} response.Envelope
// @Router /lectures [post]
func (h *LectureHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req service.LectureRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	lecture, err := h.lectures.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lecture)
}

// Update godoc
// @Summary Update lecture
// @Tags Lectures
// @Accept json
// @Produce json
// @Param id path string true "Lecture ID"
// @Param payload body service.LectureRequest true "Lecture payload"
// @Success 200 {object} response.Envelope
// @Router /lectures/{id} [put]
func (h *LectureHandler) Update(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req service.LectureRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	lecture, err := h.lectures.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lecture, nil)
}

// Delete godoc
// @Summary Delete lecture
// @Tags Lectures
// @Param id path string true "Lecture ID"
// @Success 204
// @Router /lectures/{id} [delete]
func (h *LectureHandler) Delete(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.lectures.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func dateQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid "+key+" date, expected YYYY-MM-DD")
	}
	return &parsed, nil
}
