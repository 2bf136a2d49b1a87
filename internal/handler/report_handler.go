package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coaching-center-api/internal/service"
	"github.com/noah-isme/coaching-center-api/pkg/response"
)

type reportService interface {
	Payslip(ctx context.Context, teacherID, month string) (*service.ReportFile, error)
	Statement(ctx context.Context, studentID string, format service.ReportFormat) (*service.ReportFile, error)
}

// ReportHandler streams generated payslips and fee statements.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Payslip godoc
// @Summary Download a teacher payslip
// @Tags Reports
// @Produce application/pdf
// @Param id path string true "Teacher ID"
// @Param month path string true "Month (YYYY-MM)"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /teachers/{id}/payments/{month}/slip [get]
func (h *ReportHandler) Payslip(c *gin.Context) {
	file, err := h.reports.Payslip(c.Request.Context(), c.Param("id"), c.Param("month"))
	if err != nil {
		response.Error(c, err)
		return
	}
	sendFile(c, file)
}

// Statement godoc
// @Summary Download a student fee statement
// @Tags Reports
// @Produce application/pdf
// @Produce text/csv
// @Param studentId path string true "Student ID"
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Success 200 {file} file
// @Router /payments/student/{studentId}/statement [get]
func (h *ReportHandler) Statement(c *gin.Context) {
	format := service.ReportFormat(strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "pdf"))))
	file, err := h.reports.Statement(c.Request.Context(), c.Param("studentId"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	sendFile(c, file)
}

func sendFile(c *gin.Context, file *service.ReportFile) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
