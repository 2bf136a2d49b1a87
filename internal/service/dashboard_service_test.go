package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/coaching-center-api/internal/models"
	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
)

type dashboardFixture struct {
	svc          *DashboardService
	cacheRepo    *fakeCacheRepo
	installments *fakeInstallmentRepo
	tests        *fakeTestRepo
	attendance   *fakeAttendanceRepo
}

func newDashboardFixture() *dashboardFixture {
	users := newFakeUserRepo()
	students := newFakeStudentRepo(users,
		&models.Student{ID: "s1", FullName: "Asha", Class: "12", Section: "Commerce", Active: true},
		&models.Student{ID: "s2", FullName: "Kabir", Class: "12", Section: "Commerce", Active: true},
		&models.Student{ID: "s3", FullName: "Old", Class: "12", Section: "Commerce", Active: false},
	)
	teachers := newFakeTeacherRepo(nil, sampleTeacher())
	lectures := newFakeLectureRepo(
		models.Lecture{ID: "l1", TeacherID: "t1", Class: "12", Section: "commerce", Subject: "Accounts", Date: day("2024-03-05"), Duration: 1},
		models.Lecture{ID: "l2", TeacherID: "t1", Class: "12", Section: "commerce", Subject: "Accounts", Date: day("2024-03-12"), Duration: 2},
		models.Lecture{ID: "l3", TeacherID: "t1", Class: "12", Section: "commerce", Subject: "Accounts", Date: day("2024-06-03"), Duration: 2},
	)
	installments := &fakeInstallmentRepo{payments: []models.StudentPayment{
		{ID: "p1", StudentID: "s1", InstallmentNumber: 1, TotalInstallments: 2, AcademicYear: "2024-2025", Amount: decimal.NewFromInt(20000), Status: models.InstallmentPaid},
		{ID: "p2", StudentID: "s2", InstallmentNumber: 1, TotalInstallments: 2, AcademicYear: "2024-2025", Amount: decimal.NewFromInt(20000), Status: models.InstallmentPending},
	}}
	tests := newFakeTestRepo(
		models.Test{ID: "x1", TeacherID: "t1", Title: "Unit 1", Subject: "Accounts", Class: "12", Section: "commerce", TotalMarks: 50, Date: day("2024-05-01")},
		models.Test{ID: "x2", TeacherID: "t1", Title: "Unit 2", Subject: "Economics", Class: "12", Section: "commerce", TotalMarks: 100, Date: day("2024-05-20")},
	)
	attendance := &fakeAttendanceRepo{}
	cacheRepo := newFakeCacheRepo()
	metrics := NewMetricsService()

	studentSvc := NewStudentService(students, users, installments, testFeeSettings(), nil, nil)
	f := &dashboardFixture{cacheRepo: cacheRepo, installments: installments, tests: tests, attendance: attendance}
	f.svc = NewDashboardService(DashboardServiceParams{
		Teachers:     teachers,
		TeacherFind:  teachers,
		Enrollment:   students,
		Lectures:     lectures,
		Settlements:  &fakeSettlementRepo{},
		Installments: installments,
		Tests:        tests,
		Students:     studentSvc,
		Attendance:   attendance,
		Fees:         testFeeSettings(),
		Cache:        NewCacheService(cacheRepo, metrics, time.Minute, zap.NewNop(), true),
		Metrics:      metrics,
	})
	return f
}

func TestDashboardAdminSummary(t *testing.T) {
	f := newDashboardFixture()

	summary, cached, err := f.svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "2024-2025", summary.AcademicYear)
	assert.Equal(t, 1, summary.Counts.Teachers)
	assert.Equal(t, 2, summary.Counts.Students)
	assert.Equal(t, 3, summary.Counts.Lectures)
	assert.Equal(t, 2, summary.Counts.Tests)

	assert.True(t, decimal.NewFromInt(80000).Equal(summary.Fees.Expected))
	assert.True(t, decimal.NewFromInt(20000).Equal(summary.Fees.Collected))
	assert.True(t, decimal.NewFromInt(60000).Equal(summary.Fees.Pending))
	assert.True(t, decimal.NewFromInt(20000).Equal(summary.Fees.RecordedUnpaid))
	assert.Equal(t, 25.0, summary.Fees.CollectionPercentage)

	assert.True(t, decimal.NewFromInt(1000).Equal(summary.Payouts.Calculated))
	assert.True(t, decimal.NewFromInt(1000).Equal(summary.Payouts.Outstanding))
	require.Len(t, summary.Payouts.Teachers, 1)
	assert.Equal(t, "t1", summary.Payouts.Teachers[0].TeacherID)
}

func TestDashboardAdminServedFromCache(t *testing.T) {
	f := newDashboardFixture()
	ctx := context.Background()

	_, cached, err := f.svc.Admin(ctx)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Contains(t, f.cacheRepo.store, "dash:admin:2024-2025")

	again, cached, err := f.svc.Admin(ctx)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.True(t, decimal.NewFromInt(80000).Equal(again.Fees.Expected))

	require.NoError(t, f.cacheRepo.DeleteByPattern(ctx, dashboardCachePattern))
	_, cached, err = f.svc.Admin(ctx)
	require.NoError(t, err)
	assert.False(t, cached)
}

func TestDashboardTeacherCurrentMonth(t *testing.T) {
	f := newDashboardFixture()

	summary, cached, err := f.svc.Teacher(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "2024-06", summary.Month)
	assert.Equal(t, 3, summary.LectureCount)
	assert.Equal(t, 2.0, summary.MonthHours)
	assert.True(t, decimal.NewFromInt(400).Equal(summary.MonthEarnings))
	assert.True(t, decimal.NewFromInt(1000).Equal(summary.TotalOutstanding))
	assert.Equal(t, []string{"Accounts"}, summary.Subjects)
	require.Len(t, summary.RecentTests, 2)
	assert.Equal(t, "x2", summary.RecentTests[0].ID)

	_, _, err = f.svc.Teacher(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDashboardStudent(t *testing.T) {
	f := newDashboardFixture()
	require.NoError(t, f.tests.UpsertMarks(context.Background(), []models.Mark{
		{TestID: "x1", StudentID: "s1", Obtained: 40},
		{TestID: "x2", StudentID: "s1", Obtained: 55},
	}))
	f.attendance.records = []models.AttendanceRecord{record("Accounts", true), record("Accounts", false)}

	summary, err := f.svc.Student(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, summary.Marks, 2)
	assert.Equal(t, "Accounts", summary.Marks[0].Subject)
	assert.Equal(t, 80.0, summary.Marks[0].Percentage)
	assert.Equal(t, 55.0, summary.Marks[1].Percentage)
	require.Len(t, summary.Attendance, 1)
	assert.Equal(t, 50.0, summary.Attendance[0].Percentage)
	require.NotNil(t, summary.Fees)
	assert.True(t, decimal.NewFromInt(20000).Equal(summary.Fees.DueFees))
}
