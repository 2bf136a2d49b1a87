package service

import (
	"context"
	"testing"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coaching-center-api/internal/models"
	"github.com/noah-isme/coaching-center-api/internal/repository"
	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
)

type paymentFixture struct {
	svc          *PaymentService
	settlements  *fakeSettlementRepo
	installments *fakeInstallmentRepo
	cache        *recordingInvalidator
	metrics      *MetricsService
}

func newPaymentFixture() *paymentFixture {
	lectures := newFakeLectureRepo(
		models.Lecture{ID: "l1", TeacherID: "t1", Class: "12", Section: "commerce", Date: day("2024-03-05"), Duration: 1},
		models.Lecture{ID: "l2", TeacherID: "t1", Class: "12", Section: "commerce", Date: day("2024-03-12"), Duration: 2},
	)
	users := newFakeUserRepo()
	students := newFakeStudentRepo(users, &models.Student{ID: "s1", FullName: "Asha", Class: "12", Section: "Commerce", Active: true})
	f := &paymentFixture{
		settlements:  &fakeSettlementRepo{},
		installments: &fakeInstallmentRepo{},
		cache:        &recordingInvalidator{},
		metrics:      NewMetricsService(),
	}
	f.svc = NewPaymentService(PaymentServiceDeps{
		Teachers:     newFakeTeacherRepo(nil, sampleTeacher()),
		Lectures:     lectures,
		Settlements:  f.settlements,
		Students:     students,
		Installments: f.installments,
		Cache:        f.cache,
		Metrics:      f.metrics,
		Fees:         testFeeSettings(),
	})
	return f
}

func TestCreateSettlementDefaultsFromReconciliation(t *testing.T) {
	f := newPaymentFixture()

	payment, err := f.svc.CreateSettlement(context.Background(), "t1", SettlementRequest{Month: "2024-03"}, adminClaims)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(600).Equal(payment.Amount))
	assert.Equal(t, 3.0, payment.Hours)
	assert.True(t, payment.Paid)
	assert.False(t, payment.Adjustment)
	require.NotNil(t, payment.CreatedBy)
	assert.Equal(t, "admin", *payment.CreatedBy)
	assert.Equal(t, []string{dashboardCachePattern}, f.cache.patterns)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().PaymentsRecorded[PaymentKindSettlement])
}

func TestCreateSettlementTwiceIsDuplicate(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	_, err := f.svc.CreateSettlement(ctx, "t1", SettlementRequest{Month: "2024-03"}, adminClaims)
	require.NoError(t, err)

	amount := decimal.NewFromInt(100)
	_, err = f.svc.CreateSettlement(ctx, "t1", SettlementRequest{Month: "2024-03", Amount: &amount}, adminClaims)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicateSettlement.Code, appErr.Code)
	assert.Equal(t, 409, appErr.Status)
	assert.Len(t, f.settlements.payments, 1)
}

func TestCreateSettlementMapsUniqueViolation(t *testing.T) {
	f := newPaymentFixture()
	f.settlements.createErr = &pq.Error{Code: "23505", Constraint: repository.SettlementMonthConstraint}
	amount := decimal.NewFromInt(600)
	hours := 3.0

	_, err := f.svc.CreateSettlement(context.Background(), "t1", SettlementRequest{Month: "2024-03", Amount: &amount, Hours: &hours}, adminClaims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateSettlement.Code, appErrors.FromError(err).Code)
}

func TestCreateSettlementNothingOutstanding(t *testing.T) {
	f := newPaymentFixture()
	_, err := f.svc.CreateSettlement(context.Background(), "t1", SettlementRequest{Month: "2024-05"}, adminClaims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.CreateSettlement(context.Background(), "t1", SettlementRequest{Month: "March"}, adminClaims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.CreateSettlement(context.Background(), "ghost", SettlementRequest{Month: "2024-03"}, adminClaims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCreateSettlementRejectsNonPositiveAmount(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	for _, raw := range []int64{0, -50} {
		amount := decimal.NewFromInt(raw)
		_, err := f.svc.CreateSettlement(ctx, "t1", SettlementRequest{Month: "2024-03", Amount: &amount}, adminClaims)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
	assert.Empty(t, f.settlements.payments)

	_, err := f.svc.CreateSettlement(ctx, "t1", SettlementRequest{Month: "2024-03"}, adminClaims)
	require.NoError(t, err)
}

func TestCreateAdjustmentIsNeverDuplicate(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()
	req := AdjustmentRequest{Month: "2024-03", Hours: 1, Amount: decimal.NewFromInt(200), Remarks: "extra revision class"}

	_, err := f.svc.CreateSettlement(ctx, "t1", SettlementRequest{Month: "2024-03"}, adminClaims)
	require.NoError(t, err)
	first, err := f.svc.CreateAdjustment(ctx, "t1", req, adminClaims)
	require.NoError(t, err)
	second, err := f.svc.CreateAdjustment(ctx, "t1", req, adminClaims)
	require.NoError(t, err)
	assert.True(t, first.Adjustment)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, f.settlements.payments, 3)

	_, err = f.svc.CreateAdjustment(ctx, "t1", AdjustmentRequest{Month: "2024-03", Amount: decimal.NewFromInt(200)}, adminClaims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDeleteSettlement(t *testing.T) {
	f := newPaymentFixture()
	payment, err := f.svc.CreateSettlement(context.Background(), "t1", SettlementRequest{Month: "2024-03"}, adminClaims)
	require.NoError(t, err)

	deleted, err := f.svc.DeleteSettlement(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, deleted.ID)
	assert.Empty(t, f.settlements.payments)

	_, err = f.svc.DeleteSettlement(context.Background(), payment.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCreateInstallmentUpdatesFeeStatus(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	before, err := f.svc.StudentBreakdown(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(40000).Equal(before.Fees.DueFees))

	payment, err := f.svc.CreateInstallment(ctx, "s1", InstallmentRequest{InstallmentNumber: 1, TotalInstallments: 2})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(20000).Equal(payment.Amount))
	assert.Equal(t, models.InstallmentPaid, payment.Status)
	assert.Equal(t, models.MethodCash, payment.Method)
	assert.Equal(t, "2024-2025", payment.AcademicYear)
	assert.NotNil(t, payment.PaidDate)

	after, err := f.svc.StudentBreakdown(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, before.Fees.PaidFees.Add(decimal.NewFromInt(20000)).Equal(after.Fees.PaidFees))
	assert.True(t, before.Fees.DueFees.Sub(decimal.NewFromInt(20000)).Equal(after.Fees.DueFees))
	require.Len(t, after.Years, 1)
	assert.True(t, after.Years[0].PaidAmount.Add(after.Years[0].RemainingAmount).Equal(after.Years[0].TotalFees))
}

func TestCreateInstallmentDefaultsToThreeWayCeil(t *testing.T) {
	f := newPaymentFixture()
	payment, err := f.svc.CreateInstallment(context.Background(), "s1", InstallmentRequest{InstallmentNumber: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, payment.TotalInstallments)
	assert.True(t, decimal.NewFromInt(13334).Equal(payment.Amount))
}

func TestCreateInstallmentDuplicateAndRange(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	_, err := f.svc.CreateInstallment(ctx, "s1", InstallmentRequest{InstallmentNumber: 1, AcademicYear: "2024-2025"})
	require.NoError(t, err)
	_, err = f.svc.CreateInstallment(ctx, "s1", InstallmentRequest{InstallmentNumber: 1, AcademicYear: "2024-2025"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateInstallment.Code, appErrors.FromError(err).Code)

	_, err = f.svc.CreateInstallment(ctx, "s1", InstallmentRequest{InstallmentNumber: 4, TotalInstallments: 3})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidInstallmentNumber.Code, appErrors.FromError(err).Code)

	_, err = f.svc.CreateInstallment(ctx, "s1", InstallmentRequest{InstallmentNumber: 2, AcademicYear: "2024"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateInstallmentMapsUniqueViolation(t *testing.T) {
	f := newPaymentFixture()
	f.installments.createErr = &pq.Error{Code: "23505", Constraint: repository.InstallmentConstraint}
	_, err := f.svc.CreateInstallment(context.Background(), "s1", InstallmentRequest{InstallmentNumber: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateInstallment.Code, appErrors.FromError(err).Code)
}

func TestUpdateInstallmentStatus(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()
	payment, err := f.svc.CreateInstallment(ctx, "s1", InstallmentRequest{InstallmentNumber: 1, TotalInstallments: 2, Status: models.InstallmentPending})
	require.NoError(t, err)
	assert.Nil(t, payment.PaidDate)

	updated, err := f.svc.UpdateInstallmentStatus(ctx, payment.ID, InstallmentStatusRequest{Status: models.InstallmentPaid})
	require.NoError(t, err)
	assert.Equal(t, models.InstallmentPaid, updated.Status)
	assert.NotNil(t, updated.PaidDate)

	ledger, err := f.svc.StudentBreakdown(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(20000).Equal(ledger.Fees.PaidFees))

	_, err = f.svc.UpdateInstallmentStatus(ctx, payment.ID, InstallmentStatusRequest{Status: "refunded"})
	require.Error(t, err)
	_, err = f.svc.UpdateInstallmentStatus(ctx, "missing", InstallmentStatusRequest{Status: models.InstallmentPaid})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
