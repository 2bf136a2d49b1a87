package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/coaching-center-api/internal/models"
)

// AdminDashboardResponse captures the aggregated admin dashboard payload.
type AdminDashboardResponse struct {
	AcademicYear string               `json:"academic_year"`
	Counts       DashboardCounts      `json:"counts"`
	Fees         FeeCollectionSummary `json:"fees"`
	Payouts      TeacherPayoutSummary `json:"payouts"`
	GeneratedAt  time.Time            `json:"generated_at"`
}

// DashboardCounts holds entity totals.
type DashboardCounts struct {
	Teachers int `json:"teachers"`
	Students int `json:"students"`
	Lectures int `json:"lectures"`
	Tests    int `json:"tests"`
}

// FeeCollectionSummary compares expected yearly fees with what was collected.
type FeeCollectionSummary struct {
	Expected             decimal.Decimal `json:"expected"`
	Collected            decimal.Decimal `json:"collected"`
	Pending              decimal.Decimal `json:"pending"`
	RecordedUnpaid       decimal.Decimal `json:"recorded_unpaid"`
	CollectionPercentage float64         `json:"collection_percentage"`
}

// TeacherPayoutSummary totals reconciled teacher earnings.
type TeacherPayoutSummary struct {
	Calculated      decimal.Decimal    `json:"calculated"`
	Paid            decimal.Decimal    `json:"paid"`
	Outstanding     decimal.Decimal    `json:"outstanding"`
	UnratedLectures int                `json:"unrated_lectures"`
	Teachers        []TeacherPayoutRow `json:"teachers"`
}

// TeacherPayoutRow is one teacher's reconciled totals.
type TeacherPayoutRow struct {
	TeacherID       string          `json:"teacher_id"`
	Calculated      decimal.Decimal `json:"calculated"`
	Paid            decimal.Decimal `json:"paid"`
	Outstanding     decimal.Decimal `json:"outstanding"`
	UnratedLectures int             `json:"unrated_lectures"`
}

// TeacherDashboardResponse captures personalised teacher dashboard data.
type TeacherDashboardResponse struct {
	TeacherID        string          `json:"teacher_id"`
	LectureCount     int             `json:"lecture_count"`
	Month            string          `json:"month"`
	MonthHours       float64         `json:"month_hours"`
	MonthEarnings    decimal.Decimal `json:"month_earnings"`
	MonthPaid        decimal.Decimal `json:"month_paid"`
	MonthOutstanding decimal.Decimal `json:"month_outstanding"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	UnratedLectures  int             `json:"unrated_lectures"`
	Subjects         []string        `json:"subjects"`
	RecentTests      []models.Test   `json:"recent_tests"`
}

// StudentDashboardResponse bundles marks, attendance and fees for a student.
type StudentDashboardResponse struct {
	StudentID  string                            `json:"student_id"`
	Marks      []SubjectMarks                    `json:"marks"`
	Attendance []models.SubjectAttendanceSummary `json:"attendance"`
	Fees       *models.FeeStatus                 `json:"fees,omitempty"`
}

// SubjectMarks aggregates a student's scores for one subject.
type SubjectMarks struct {
	Subject    string  `json:"subject"`
	Tests      int     `json:"tests"`
	Obtained   float64 `json:"obtained"`
	Total      float64 `json:"total"`
	Percentage float64 `json:"percentage"`
}
