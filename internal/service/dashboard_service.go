package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/coaching-center-api/internal/dto"
	"github.com/noah-isme/coaching-center-api/internal/models"
	"github.com/noah-isme/coaching-center-api/internal/reconcile"
	"github.com/noah-isme/coaching-center-api/internal/repository"
	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
)

type activeTeacherCounter interface {
	CountActive(ctx context.Context) (int, error)
	ListAllAssignments(ctx context.Context) (map[string][]models.Assignment, error)
}

type enrollmentCounter interface {
	CountByClassSection(ctx context.Context) ([]repository.ClassSectionCount, error)
}

type lectureLedger interface {
	Count(ctx context.Context, teacherID string) (int, error)
	ListAll(ctx context.Context) (map[string][]models.Lecture, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Lecture, error)
}

type settlementLedger interface {
	ListAll(ctx context.Context) (map[string][]models.TeacherPayment, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.TeacherPayment, error)
}

type feeTotaler interface {
	Totals(ctx context.Context, academicYear string) (*models.PaymentTotals, error)
}

type testSource interface {
	Count(ctx context.Context, teacherID string) (int, error)
	List(ctx context.Context, filter models.TestFilter) ([]models.Test, int, error)
	ListStudentMarks(ctx context.Context, studentID string) ([]models.StudentMark, error)
}

type studentDetailer interface {
	Get(ctx context.Context, id string) (*models.StudentDetail, error)
}

type attendanceSource interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.AttendanceRecord, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL         time.Duration
	RecentTestsLimit int
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Teachers     activeTeacherCounter
	TeacherFind  teacherFinder
	Enrollment   enrollmentCounter
	Lectures     lectureLedger
	Settlements  settlementLedger
	Installments feeTotaler
	Tests        testSource
	Students     studentDetailer
	Attendance   attendanceSource
	Fees         FeeSettings
	Cache        *CacheService
	Metrics      *MetricsService
	Logger       *zap.Logger
	Config       DashboardServiceConfig
}

// DashboardService composes the per role dashboards from the ledgers.
type DashboardService struct {
	teachers     activeTeacherCounter
	teacherFind  teacherFinder
	enrollment   enrollmentCounter
	lectures     lectureLedger
	settlements  settlementLedger
	installments feeTotaler
	tests        testSource
	students     studentDetailer
	attendance   attendanceSource
	fees         FeeSettings
	cache        *CacheService
	metrics      *MetricsService
	logger       *zap.Logger
	cfg          DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RecentTestsLimit <= 0 {
		cfg.RecentTestsLimit = 5
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		teachers:     params.Teachers,
		teacherFind:  params.TeacherFind,
		enrollment:   params.Enrollment,
		lectures:     params.Lectures,
		settlements:  params.Settlements,
		installments: params.Installments,
		tests:        params.Tests,
		students:     params.Students,
		attendance:   params.Attendance,
		fees:         params.Fees.withDefaults(),
		cache:        params.Cache,
		metrics:      params.Metrics,
		logger:       logger,
		cfg:          cfg,
	}
}

// Admin returns the admin summary for the current academic year and whether it came from cache.
func (s *DashboardService) Admin(ctx context.Context) (*dto.AdminDashboardResponse, bool, error) {
	year := s.fees.CurrentAcademicYear()
	cacheKey := fmt.Sprintf("dash:admin:%s", year)

	var cached dto.AdminDashboardResponse
	if hit := s.readCache(ctx, cacheKey, &cached); hit {
		return &cached, true, nil
	}

	summary, err := s.composeAdmin(ctx, year)
	if err != nil {
		return nil, false, err
	}
	s.persistCache(ctx, cacheKey, summary)
	return summary, false, nil
}

// Teacher returns the teacher's lecture and earnings summary for the current month.
func (s *DashboardService) Teacher(ctx context.Context, teacherID string) (*dto.TeacherDashboardResponse, bool, error) {
	if teacherID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "teacher id is required")
	}
	month := reconcile.MonthKey(s.fees.Now())
	cacheKey := fmt.Sprintf("dash:teacher:%s:%s", teacherID, month)

	var cached dto.TeacherDashboardResponse
	if hit := s.readCache(ctx, cacheKey, &cached); hit {
		return &cached, true, nil
	}

	teacher, err := s.teacherFind.FindByID(ctx, teacherID)
	if err != nil {
		return nil, false, notFoundOr(err, "teacher not found", "failed to load teacher")
	}
	lectures, err := s.lectures.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, false, internal(err, "failed to load lectures")
	}
	settlements, err := s.settlements.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, false, internal(err, "failed to load settlements")
	}
	tests, _, err := s.tests.List(ctx, models.TestFilter{TeacherID: teacherID, Page: 1, PageSize: s.cfg.RecentTestsLimit})
	if err != nil {
		return nil, false, internal(err, "failed to load tests")
	}
	if tests == nil {
		tests = []models.Test{}
	}

	result := reconcile.ReconcileTeacher(teacher.Assignments, lectures, settlements)
	logUnrated(s.logger, teacherID, result)
	bucket, ok := result.Month(month)
	if !ok {
		bucket = reconcile.MonthBucket{Month: month}
	}

	subjects := []string(teacher.Subjects)
	if subjects == nil {
		subjects = []string{}
	}
	summary := &dto.TeacherDashboardResponse{
		TeacherID:        teacherID,
		LectureCount:     len(lectures),
		Month:            month,
		MonthHours:       bucket.TotalHours,
		MonthEarnings:    bucket.CalculatedAmount,
		MonthPaid:        bucket.PaidAmount,
		MonthOutstanding: bucket.OutstandingAmount,
		TotalOutstanding: result.TotalOutstanding,
		UnratedLectures:  len(result.UnratedLectures),
		Subjects:         subjects,
		RecentTests:      tests,
	}
	s.persistCache(ctx, cacheKey, summary)
	return summary, false, nil
}

// Student returns marks per subject, attendance per subject and fee status.
func (s *DashboardService) Student(ctx context.Context, studentID string) (*dto.StudentDashboardResponse, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	detail, err := s.students.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	marks, err := s.tests.ListStudentMarks(ctx, studentID)
	if err != nil {
		return nil, internal(err, "failed to load marks")
	}
	records, err := s.attendance.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, internal(err, "failed to load attendance")
	}
	return &dto.StudentDashboardResponse{
		StudentID:  studentID,
		Marks:      summariseMarks(marks),
		Attendance: SummariseAttendance(records),
		Fees:       detail.Fees,
	}, nil
}

func (s *DashboardService) composeAdmin(ctx context.Context, year string) (*dto.AdminDashboardResponse, error) {
	summary := &dto.AdminDashboardResponse{AcademicYear: year, GeneratedAt: time.Now().UTC()}

	var err error
	if summary.Counts.Teachers, err = s.teachers.CountActive(ctx); err != nil {
		return nil, internal(err, "failed to count teachers")
	}
	if summary.Counts.Lectures, err = s.lectures.Count(ctx, ""); err != nil {
		return nil, internal(err, "failed to count lectures")
	}
	if summary.Counts.Tests, err = s.tests.Count(ctx, ""); err != nil {
		return nil, internal(err, "failed to count tests")
	}

	enrollment, err := s.enrollment.CountByClassSection(ctx)
	if err != nil {
		return nil, internal(err, "failed to count students")
	}
	expected := decimal.Zero
	for _, row := range enrollment {
		summary.Counts.Students += row.Total
		total, err := s.fees.Schedule.TotalFees(row.Class, row.Section)
		if err != nil {
			s.logger.Warn("students outside fee schedule", zap.String("class", row.Class), zap.String("section", row.Section), zap.Int("count", row.Total))
			continue
		}
		expected = expected.Add(total.Mul(decimal.NewFromInt(int64(row.Total))))
	}

	totals, err := s.installments.Totals(ctx, year)
	if err != nil {
		return nil, internal(err, "failed to sum installments")
	}
	summary.Fees = dto.FeeCollectionSummary{
		Expected:             expected,
		Collected:            totals.Collected,
		Pending:              decimal.Max(decimal.Zero, expected.Sub(totals.Collected)),
		RecordedUnpaid:       totals.Pending,
		CollectionPercentage: decimalPercentage(totals.Collected, expected),
	}

	payouts, err := s.composePayouts(ctx)
	if err != nil {
		return nil, err
	}
	summary.Payouts = *payouts
	return summary, nil
}

// composePayouts reconciles every teacher with lectures, rates or settlements.
func (s *DashboardService) composePayouts(ctx context.Context) (*dto.TeacherPayoutSummary, error) {
	assignments, err := s.teachers.ListAllAssignments(ctx)
	if err != nil {
		return nil, internal(err, "failed to load assignments")
	}
	lectures, err := s.lectures.ListAll(ctx)
	if err != nil {
		return nil, internal(err, "failed to load lectures")
	}
	settlements, err := s.settlements.ListAll(ctx)
	if err != nil {
		return nil, internal(err, "failed to load settlements")
	}

	ids := make(map[string]struct{})
	for id := range assignments {
		ids[id] = struct{}{}
	}
	for id := range lectures {
		ids[id] = struct{}{}
	}
	for id := range settlements {
		ids[id] = struct{}{}
	}

	out := &dto.TeacherPayoutSummary{
		Calculated:  decimal.Zero,
		Paid:        decimal.Zero,
		Outstanding: decimal.Zero,
		Teachers:    make([]dto.TeacherPayoutRow, 0, len(ids)),
	}
	for id := range ids {
		result := reconcile.ReconcileTeacher(assignments[id], lectures[id], settlements[id])
		out.Calculated = out.Calculated.Add(result.TotalCalculated)
		out.Paid = out.Paid.Add(result.TotalPaid)
		out.Outstanding = out.Outstanding.Add(result.TotalOutstanding)
		out.UnratedLectures += len(result.UnratedLectures)
		out.Teachers = append(out.Teachers, dto.TeacherPayoutRow{
			TeacherID:       id,
			Calculated:      result.TotalCalculated,
			Paid:            result.TotalPaid,
			Outstanding:     result.TotalOutstanding,
			UnratedLectures: len(result.UnratedLectures),
		})
	}
	sort.Slice(out.Teachers, func(i, j int) bool {
		if cmp := out.Teachers[i].Outstanding.Cmp(out.Teachers[j].Outstanding); cmp != 0 {
			return cmp > 0
		}
		return out.Teachers[i].TeacherID < out.Teachers[j].TeacherID
	})
	if out.UnratedLectures > 0 {
		s.logger.Warn("unrated lectures excluded from payouts", zap.Int("count", out.UnratedLectures))
		if s.metrics != nil {
			s.metrics.RecordUnratedLectures(out.UnratedLectures)
		}
	}
	return out, nil
}

func (s *DashboardService) readCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("dashboard cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func summariseMarks(marks []models.StudentMark) []dto.SubjectMarks {
	bySubject := make(map[string]*dto.SubjectMarks)
	for _, mark := range marks {
		entry, ok := bySubject[mark.Subject]
		if !ok {
			entry = &dto.SubjectMarks{Subject: mark.Subject}
			bySubject[mark.Subject] = entry
		}
		entry.Tests++
		entry.Obtained += mark.Obtained
		entry.Total += mark.TotalMarks
	}
	out := make([]dto.SubjectMarks, 0, len(bySubject))
	for _, entry := range bySubject {
		entry.Percentage = percentage(entry.Obtained, entry.Total)
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out
}

func decimalPercentage(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	pct, _ := part.Div(whole).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return pct
}

func internal(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func notFoundOr(err error, notFound, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return internal(err, message)
}
