package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/coaching-center-api/internal/models"
	"github.com/noah-isme/coaching-center-api/internal/reconcile"
	"github.com/noah-isme/coaching-center-api/internal/repository"
	"github.com/noah-isme/coaching-center-api/pkg/database"
	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
)

const dashboardCachePattern = "dash:*"

// Payment kinds reported to metrics.
const (
	PaymentKindSettlement  = "settlement"
	PaymentKindAdjustment  = "adjustment"
	PaymentKindInstallment = "installment"
)

var academicYearPattern = regexp.MustCompile(`^\d{4}-\d{4}$`)

type settlementStore interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.TeacherPayment, error)
	FindByID(ctx context.Context, id string) (*models.TeacherPayment, error)
	ExistsRegular(ctx context.Context, teacherID, month string) (bool, error)
	Create(ctx context.Context, payment *models.TeacherPayment) error
	Delete(ctx context.Context, id string) error
}

type installmentStore interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.StudentPayment, error)
	FindByID(ctx context.Context, id string) (*models.StudentPayment, error)
	Exists(ctx context.Context, studentID string, installmentNumber int, academicYear string) (bool, error)
	Create(ctx context.Context, payment *models.StudentPayment) error
	UpdateStatus(ctx context.Context, id string, status models.InstallmentStatus, paidDate *time.Time) error
}

type studentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// SettlementRequest records a payout for a teacher month. Omitted hours and
// amount default to the month's reconciled totals.
type SettlementRequest struct {
	Month   string           `json:"month" validate:"required"`
	Hours   *float64         `json:"hours" validate:"omitempty,gte=0"`
	Amount  *decimal.Decimal `json:"amount"`
	Remarks *string          `json:"remarks" validate:"omitempty,max=500"`
}

// AdjustmentRequest records an additional payout for an already settled month.
type AdjustmentRequest struct {
	Month   string          `json:"month" validate:"required"`
	Hours   float64         `json:"hours" validate:"gte=0"`
	Amount  decimal.Decimal `json:"amount"`
	Remarks string          `json:"remarks" validate:"required,max=500"`
}

// InstallmentRequest records one student fee installment.
type InstallmentRequest struct {
	InstallmentNumber int                      `json:"installment_number" validate:"required,gte=1"`
	TotalInstallments int                      `json:"total_installments" validate:"omitempty,gte=1,lte=12"`
	AcademicYear      string                   `json:"academic_year"`
	Amount            *decimal.Decimal         `json:"amount"`
	Status            models.InstallmentStatus `json:"status"`
	Method            models.PaymentMethod     `json:"method" validate:"omitempty,oneof=cash upi card bank_transfer cheque"`
	PaidDate          *time.Time               `json:"paid_date"`
	Remarks           *string                  `json:"remarks" validate:"omitempty,max=500"`
}

// InstallmentStatusRequest moves an installment between states.
type InstallmentStatusRequest struct {
	Status   models.InstallmentStatus `json:"status" validate:"required"`
	PaidDate *time.Time               `json:"paid_date"`
}

// StudentLedger is the reconciled fee view of one student.
type StudentLedger struct {
	Student models.Student                    `json:"student"`
	Fees    models.FeeStatus                  `json:"fees"`
	Years   []reconcile.AcademicYearBreakdown `json:"academic_years"`
}

// PaymentService records settlements and installments against the reconciled ledger.
type PaymentService struct {
	teachers     teacherFinder
	lectures     teacherLectureLister
	settlements  settlementStore
	students     studentFinder
	installments installmentStore
	cache        cacheInvalidator
	metrics      *MetricsService
	fees         FeeSettings
	validator    *validator.Validate
	logger       *zap.Logger
}

// PaymentServiceDeps groups the collaborators of PaymentService.
type PaymentServiceDeps struct {
	Teachers     teacherFinder
	Lectures     teacherLectureLister
	Settlements  settlementStore
	Students     studentFinder
	Installments installmentStore
	Cache        cacheInvalidator
	Metrics      *MetricsService
	Fees         FeeSettings
	Validator    *validator.Validate
	Logger       *zap.Logger
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(deps PaymentServiceDeps) *PaymentService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &PaymentService{
		teachers:     deps.Teachers,
		lectures:     deps.Lectures,
		settlements:  deps.Settlements,
		students:     deps.Students,
		installments: deps.Installments,
		cache:        deps.Cache,
		metrics:      deps.Metrics,
		fees:         deps.Fees.withDefaults(),
		validator:    deps.Validator,
		logger:       deps.Logger,
	}
}

// ListSettlements returns every settlement recorded for a teacher.
func (s *PaymentService) ListSettlements(ctx context.Context, teacherID string) ([]models.TeacherPayment, error) {
	if _, err := s.loadTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	payments, err := s.settlements.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list settlements")
	}
	return payments, nil
}

// CreateSettlement records the regular payout of a month. Only one regular
// settlement may exist per teacher and month.
func (s *PaymentService) CreateSettlement(ctx context.Context, teacherID string, req SettlementRequest, claims *models.JWTClaims) (*models.TeacherPayment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settlement payload")
	}
	month := strings.TrimSpace(req.Month)
	if !reconcile.ValidMonth(month) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "month must be YYYY-MM")
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}
	teacher, err := s.loadTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	exists, err := s.settlements.ExistsRegular(ctx, teacherID, month)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check settlement")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateSettlement, "month "+month+" is already settled")
	}

	hours, amount, err := s.settlementDefaults(ctx, teacher, month, req)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	payment := &models.TeacherPayment{
		TeacherID: teacherID,
		Month:     month,
		Hours:     hours,
		Amount:    amount,
		Paid:      true,
		PaidDate:  &now,
		Remarks:   normalizeOptional(req.Remarks),
		CreatedBy: actorID(claims),
	}
	if err := s.settlements.Create(ctx, payment); err != nil {
		if database.IsUniqueViolation(err, repository.SettlementMonthConstraint) {
			return nil, appErrors.Wrap(err, appErrors.ErrDuplicateSettlement.Code, appErrors.ErrDuplicateSettlement.Status, "month "+month+" is already settled")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create settlement")
	}
	s.afterWrite(ctx, PaymentKindSettlement)
	return payment, nil
}

// CreateAdjustment records an extra payout for a month. It is never rejected
// as a duplicate; remarks are mandatory so the reason is on record.
func (s *PaymentService) CreateAdjustment(ctx context.Context, teacherID string, req AdjustmentRequest, claims *models.JWTClaims) (*models.TeacherPayment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid adjustment payload")
	}
	month := strings.TrimSpace(req.Month)
	if !reconcile.ValidMonth(month) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "month must be YYYY-MM")
	}
	if !req.Amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}
	remarks := strings.TrimSpace(req.Remarks)
	if remarks == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "remarks are required for adjustments")
	}
	if _, err := s.loadTeacher(ctx, teacherID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	payment := &models.TeacherPayment{
		TeacherID:  teacherID,
		Month:      month,
		Hours:      req.Hours,
		Amount:     req.Amount,
		Paid:       true,
		PaidDate:   &now,
		Remarks:    &remarks,
		Adjustment: true,
		CreatedBy:  actorID(claims),
	}
	if err := s.settlements.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create adjustment")
	}
	s.logger.Info("teacher payment adjustment recorded",
		zap.String("teacher_id", teacherID),
		zap.String("month", month),
		zap.String("amount", req.Amount.StringFixed(2)),
	)
	s.afterWrite(ctx, PaymentKindAdjustment)
	return payment, nil
}

// DeleteSettlement removes a settlement or adjustment.
func (s *PaymentService) DeleteSettlement(ctx context.Context, id string) (*models.TeacherPayment, error) {
	payment, err := s.settlements.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "settlement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settlement")
	}
	if err := s.settlements.Delete(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete settlement")
	}
	s.invalidate(ctx)
	return payment, nil
}

// StudentBreakdown reconciles a student's installments per academic year.
func (s *PaymentService) StudentBreakdown(ctx context.Context, studentID string) (*StudentLedger, error) {
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	total, err := s.fees.Schedule.TotalFees(student.Class, student.Section)
	if err != nil {
		return nil, translateReconcileError(err)
	}
	installments, err := s.installments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load installments")
	}
	years := reconcile.ReconcileStudent(total, installments)
	return &StudentLedger{
		Student: *student,
		Fees:    reconcile.FeeStatusFor(total, years, s.fees.CurrentAcademicYear()),
		Years:   years,
	}, nil
}

// CreateInstallment records an installment for a student. The amount defaults
// to an equal share of the yearly fees.
func (s *PaymentService) CreateInstallment(ctx context.Context, studentID string, req InstallmentRequest) (*models.StudentPayment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid installment payload")
	}
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	totalInstallments := req.TotalInstallments
	if totalInstallments == 0 {
		totalInstallments = s.fees.DefaultInstallments
	}
	academicYear := strings.TrimSpace(req.AcademicYear)
	if academicYear == "" {
		academicYear = s.fees.CurrentAcademicYear()
	}
	if !academicYearPattern.MatchString(academicYear) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "academic_year must be YYYY-YYYY")
	}
	status := req.Status
	if status == "" {
		status = models.InstallmentPaid
	}
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported installment status")
	}
	method := req.Method
	if method == "" {
		method = models.MethodCash
	}

	total, err := s.fees.Schedule.TotalFees(student.Class, student.Section)
	if err != nil {
		return nil, translateReconcileError(err)
	}
	share, err := reconcile.InstallmentAmount(total, totalInstallments, req.InstallmentNumber)
	if err != nil {
		return nil, translateReconcileError(err)
	}
	amount := share
	if req.Amount != nil {
		if !req.Amount.IsPositive() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
		}
		amount = *req.Amount
	}

	exists, err := s.installments.Exists(ctx, studentID, req.InstallmentNumber, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check installment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateInstallment, "installment already recorded for "+academicYear)
	}

	payment := &models.StudentPayment{
		StudentID:         studentID,
		InstallmentNumber: req.InstallmentNumber,
		TotalInstallments: totalInstallments,
		AcademicYear:      academicYear,
		Amount:            amount,
		Status:            status,
		Method:            method,
		PaidDate:          paidDateFor(status, req.PaidDate),
		Remarks:           normalizeOptional(req.Remarks),
	}
	if err := s.installments.Create(ctx, payment); err != nil {
		if database.IsUniqueViolation(err, repository.InstallmentConstraint) {
			return nil, appErrors.Wrap(err, appErrors.ErrDuplicateInstallment.Code, appErrors.ErrDuplicateInstallment.Status, "installment already recorded for "+academicYear)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create installment")
	}
	s.afterWrite(ctx, PaymentKindInstallment)
	return payment, nil
}

// UpdateInstallmentStatus changes the status of an installment.
func (s *PaymentService) UpdateInstallmentStatus(ctx context.Context, id string, req InstallmentStatusRequest) (*models.StudentPayment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported installment status")
	}
	payment, err := s.installments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "installment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load installment")
	}

	paidDate := paidDateFor(req.Status, req.PaidDate)
	if req.Status == models.InstallmentPaid && req.PaidDate == nil && payment.PaidDate != nil {
		paidDate = payment.PaidDate
	}
	if err := s.installments.UpdateStatus(ctx, id, req.Status, paidDate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update installment")
	}
	payment.Status = req.Status
	payment.PaidDate = paidDate
	payment.UpdatedAt = time.Now().UTC()
	s.invalidate(ctx)
	return payment, nil
}

// settlementDefaults fills hours and amount from the month's reconciliation.
func (s *PaymentService) settlementDefaults(ctx context.Context, teacher *models.Teacher, month string, req SettlementRequest) (float64, decimal.Decimal, error) {
	if req.Hours != nil && req.Amount != nil {
		return *req.Hours, *req.Amount, nil
	}
	lectures, err := s.lectures.ListByTeacher(ctx, teacher.ID)
	if err != nil {
		return 0, decimal.Zero, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lectures")
	}
	settlements, err := s.settlements.ListByTeacher(ctx, teacher.ID)
	if err != nil {
		return 0, decimal.Zero, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settlements")
	}
	result := reconcile.ReconcileTeacher(teacher.Assignments, lectures, settlements)
	logUnrated(s.logger, teacher.ID, result)
	if s.metrics != nil {
		s.metrics.RecordUnratedLectures(len(result.UnratedLectures))
	}
	bucket, _ := result.Month(month)

	hours := bucket.TotalHours
	if req.Hours != nil {
		hours = *req.Hours
	}
	if req.Amount != nil {
		return hours, *req.Amount, nil
	}
	if !bucket.OutstandingAmount.IsPositive() {
		return 0, decimal.Zero, appErrors.Clone(appErrors.ErrValidation, "nothing outstanding for "+month+"; provide an amount")
	}
	return hours, bucket.OutstandingAmount, nil
}

func (s *PaymentService) loadTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.teachers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

func (s *PaymentService) loadStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func (s *PaymentService) afterWrite(ctx context.Context, kind string) {
	if s.metrics != nil {
		s.metrics.RecordPayment(kind)
	}
	s.invalidate(ctx)
}

func (s *PaymentService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCachePattern); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func paidDateFor(status models.InstallmentStatus, provided *time.Time) *time.Time {
	if status != models.InstallmentPaid {
		return nil
	}
	if provided != nil {
		return provided
	}
	now := time.Now().UTC()
	return &now
}

func actorID(claims *models.JWTClaims) *string {
	if claims == nil || claims.UserID == "" {
		return nil
	}
	id := claims.UserID
	return &id
}
