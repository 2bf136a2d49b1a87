package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/coaching-center-api/internal/models"
	"github.com/noah-isme/coaching-center-api/internal/reconcile"
	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, user *models.User, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

type userEmailChecker interface {
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
}

type installmentLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.StudentPayment, error)
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	FullName string  `json:"full_name" validate:"required"`
	Phone    *string `json:"phone" validate:"omitempty,max=50"`
	Class    string  `json:"class" validate:"required"`
	Section  string  `json:"section" validate:"required"`
	PhotoURL *string `json:"photo_url" validate:"omitempty,url"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	FullName string  `json:"full_name" validate:"required"`
	Phone    *string `json:"phone" validate:"omitempty,max=50"`
	Class    string  `json:"class" validate:"required"`
	Section  string  `json:"section" validate:"required"`
	PhotoURL *string `json:"photo_url" validate:"omitempty,url"`
	Active   *bool   `json:"active"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	users     userEmailChecker
	ledger    installmentLister
	fees      FeeSettings
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, users userEmailChecker, ledger installmentLister, fees FeeSettings, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, users: users, ledger: ledger, fees: fees.withDefaults(), validator: validate, logger: logger}
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	if students == nil {
		students = []models.Student{}
	}
	return students, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a student with the fee status of the current academic year.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withFees(ctx, student)
}

// Create registers a student and its login.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if err := s.ensureEnrollable(req.Class, req.Section); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueEmail(ctx, req.Email, ""); err != nil {
		return nil, err
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         models.RoleStudent,
		Active:       true,
	}
	student := &models.Student{
		Email:    user.Email,
		FullName: user.FullName,
		Phone:    normalizeOptional(req.Phone),
		Class:    strings.TrimSpace(req.Class),
		Section:  strings.TrimSpace(req.Section),
		PhotoURL: normalizeOptional(req.PhotoURL),
		Active:   true,
	}
	if err := s.repo.Create(ctx, user, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return s.withFees(ctx, student)
}

// Register is the public self registration path.
func (s *StudentService) Register(ctx context.Context, req models.RegisterStudentRequest) (*models.StudentDetail, error) {
	return s.Create(ctx, CreateStudentRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
		Class:    req.Class,
		Section:  req.Section,
	})
}

// Update modifies a student record.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEnrollable(req.Class, req.Section); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueEmail(ctx, req.Email, id); err != nil {
		return nil, err
	}

	student.Email = strings.TrimSpace(req.Email)
	student.FullName = strings.TrimSpace(req.FullName)
	student.Phone = normalizeOptional(req.Phone)
	student.Class = strings.TrimSpace(req.Class)
	student.Section = strings.TrimSpace(req.Section)
	student.PhotoURL = normalizeOptional(req.PhotoURL)
	if req.Active != nil {
		student.Active = *req.Active
	}

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return s.withFees(ctx, student)
}

// Deactivate marks a student inactive.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	return nil
}

func (s *StudentService) load(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// withFees recomputes the fee status from the installment ledger.
func (s *StudentService) withFees(ctx context.Context, student *models.Student) (*models.StudentDetail, error) {
	detail := &models.StudentDetail{Student: *student}
	total, err := s.fees.Schedule.TotalFees(student.Class, student.Section)
	if err != nil {
		s.logger.Warn("student outside fee schedule", zap.String("student_id", student.ID), zap.String("class", student.Class), zap.String("section", student.Section))
		return detail, nil
	}
	installments, err := s.ledger.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load installments")
	}
	status := reconcile.FeeStatusFor(total, reconcile.ReconcileStudent(total, installments), s.fees.CurrentAcademicYear())
	detail.Fees = &status
	return detail, nil
}

func (s *StudentService) ensureEnrollable(class, section string) error {
	if _, err := s.fees.Schedule.TotalFees(class, section); err != nil {
		return translateReconcileError(err)
	}
	return nil
}

func (s *StudentService) ensureUniqueEmail(ctx context.Context, email, excludeID string) error {
	exists, err := s.users.ExistsByEmail(ctx, strings.TrimSpace(email), excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "email already used")
	}
	return nil
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
