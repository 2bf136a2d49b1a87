package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/coaching-center-api/internal/models"
	"github.com/noah-isme/coaching-center-api/internal/reconcile"
	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
	"github.com/noah-isme/coaching-center-api/pkg/export"
)

// ReportFormat enumerates statement renderings.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

type teacherReconciler interface {
	Get(ctx context.Context, id string) (*models.Teacher, error)
	Reconcile(ctx context.Context, id string) (*reconcile.TeacherReconciliation, error)
}

type studentLedgerReader interface {
	StudentBreakdown(ctx context.Context, studentID string) (*StudentLedger, error)
}

type csvRenderer interface {
	Render(data export.Dataset, summary ...export.SummaryLine) ([]byte, error)
}

type pdfRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// ReportFile is a rendered download.
type ReportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReportService renders payslips and fee statements from the reconciled ledgers.
type ReportService struct {
	teachers teacherReconciler
	ledger   studentLedgerReader
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
	now      func() time.Time
}

// NewReportService constructs a ReportService.
func NewReportService(teachers teacherReconciler, ledger studentLedgerReader, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ReportService{teachers: teachers, ledger: ledger, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// Payslip renders the PDF payslip of a teacher month.
func (s *ReportService) Payslip(ctx context.Context, teacherID, month string) (*ReportFile, error) {
	if !reconcile.ValidMonth(month) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "month must be YYYY-MM")
	}
	teacher, err := s.teachers.Get(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	result, err := s.teachers.Reconcile(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	bucket, ok := result.Month(month)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no lectures or settlements for "+month)
	}

	table := export.Dataset{Headers: []string{"Lecture", "Class", "Section", "Subject", "Date", "Hours", "Status"}}
	for _, lecture := range result.UnratedLectures {
		if lecture.Month != month {
			continue
		}
		table.Rows = append(table.Rows, map[string]string{
			"Lecture": lecture.LectureID,
			"Class":   lecture.Class,
			"Section": lecture.Section,
			"Subject": lecture.Subject,
			"Date":    lecture.Date.Format("2006-01-02"),
			"Hours":   formatHours(lecture.Hours),
			"Status":  "no rate",
		})
	}
	if len(table.Rows) == 0 {
		table = export.Dataset{}
	}

	doc := export.Document{
		Title:    "Payslip " + month,
		Subtitle: teacher.FullName + " <" + teacher.Email + ">",
		Summary: []export.SummaryLine{
			{Label: "Lectures", Value: strconv.Itoa(bucket.LectureCount)},
			{Label: "Hours", Value: formatHours(bucket.TotalHours)},
			{Label: "Calculated", Value: bucket.CalculatedAmount.StringFixed(2)},
			{Label: "Paid", Value: bucket.PaidAmount.StringFixed(2)},
			{Label: "Outstanding", Value: bucket.OutstandingAmount.StringFixed(2)},
			{Label: "Settlements", Value: strconv.Itoa(bucket.SettlementCount)},
		},
		Table:  table,
		Footer: "Generated " + s.now().UTC().Format(time.RFC3339),
	}
	data, err := s.pdf.Render(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render payslip")
	}
	return &ReportFile{
		Filename:    fmt.Sprintf("payslip_%s_%s.pdf", sanitizeFilename(teacher.FullName), month),
		ContentType: "application/pdf",
		Data:        data,
	}, nil
}

// Statement renders a student's installment statement as CSV or PDF.
func (s *ReportService) Statement(ctx context.Context, studentID string, format ReportFormat) (*ReportFile, error) {
	if format == "" {
		format = ReportFormatPDF
	}
	if format != ReportFormatCSV && format != ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	ledger, err := s.ledger.StudentBreakdown(ctx, studentID)
	if err != nil {
		return nil, err
	}

	table := export.Dataset{Headers: []string{"Academic Year", "Installment", "Amount", "Status", "Method", "Paid Date"}}
	for _, year := range ledger.Years {
		for _, inst := range year.Installments {
			paid := ""
			if inst.PaidDate != nil {
				paid = inst.PaidDate.Format("2006-01-02")
			}
			table.Rows = append(table.Rows, map[string]string{
				"Academic Year": year.AcademicYear,
				"Installment":   fmt.Sprintf("%d/%d", inst.InstallmentNumber, inst.TotalInstallments),
				"Amount":        inst.Amount.StringFixed(2),
				"Status":        string(inst.Status),
				"Method":        string(inst.Method),
				"Paid Date":     paid,
			})
		}
	}
	summary := []export.SummaryLine{
		{Label: "Academic Year", Value: ledger.Fees.AcademicYear},
		{Label: "Overall Fees", Value: ledger.Fees.OverallFees.StringFixed(2)},
		{Label: "Paid Fees", Value: ledger.Fees.PaidFees.StringFixed(2)},
		{Label: "Due Fees", Value: ledger.Fees.DueFees.StringFixed(2)},
	}
	base := fmt.Sprintf("statement_%s_%s", sanitizeFilename(ledger.Student.FullName), ledger.Fees.AcademicYear)

	if format == ReportFormatCSV {
		data, err := s.csv.Render(table, summary...)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
		}
		return &ReportFile{Filename: base + ".csv", ContentType: "text/csv", Data: data}, nil
	}

	if len(table.Rows) == 0 {
		table = export.Dataset{}
	}
	data, err := s.pdf.Render(export.Document{
		Title:    "Fee Statement",
		Subtitle: fmt.Sprintf("%s, class %s %s", ledger.Student.FullName, ledger.Student.Class, ledger.Student.Section),
		Summary:  summary,
		Table:    table,
		Footer:   "Generated " + s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
	}
	return &ReportFile{Filename: base + ".pdf", ContentType: "application/pdf", Data: data}, nil
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := strings.ToLower(replacer.Replace(raw))
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
