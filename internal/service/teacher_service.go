package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/coaching-center-api/internal/models"
	"github.com/noah-isme/coaching-center-api/internal/reconcile"
	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
)

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	Create(ctx context.Context, user *models.User, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher, replaceRates bool) error
	Deactivate(ctx context.Context, id string) error
}

type teacherLectureLister interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Lecture, error)
}

type settlementLister interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.TeacherPayment, error)
}

// AssignmentRequest is one (class, section) a teacher is paid for.
type AssignmentRequest struct {
	Class         string          `json:"class" validate:"required"`
	Section       string          `json:"section" validate:"required"`
	SalaryPerHour decimal.Decimal `json:"salary_per_hour"`
}

// CreateTeacherRequest represents payload for creating teachers.
type CreateTeacherRequest struct {
	Email           string              `json:"email" validate:"required,email"`
	Password        string              `json:"password" validate:"required,min=6"`
	FullName        string              `json:"full_name" validate:"required"`
	Phone           *string             `json:"phone" validate:"omitempty,max=50"`
	Subjects        []string            `json:"subjects"`
	AssignedClasses []AssignmentRequest `json:"assigned_classes" validate:"omitempty,dive"`
	PhotoURL        *string             `json:"photo_url" validate:"omitempty,url"`
}

// UpdateTeacherRequest represents payload for updating teachers. A nil
// AssignedClasses keeps the stored rates; an empty list clears them.
type UpdateTeacherRequest struct {
	Email           string              `json:"email" validate:"required,email"`
	FullName        string              `json:"full_name" validate:"required"`
	Phone           *string             `json:"phone" validate:"omitempty,max=50"`
	Subjects        []string            `json:"subjects"`
	AssignedClasses []AssignmentRequest `json:"assigned_classes" validate:"omitempty,dive"`
	PhotoURL        *string             `json:"photo_url" validate:"omitempty,url"`
	Active          *bool               `json:"active"`
}

// TeacherService orchestrates teacher operations.
type TeacherService struct {
	repo        teacherRepository
	users       userEmailChecker
	lectures    teacherLectureLister
	settlements settlementLister
	cache       cacheInvalidator
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewTeacherService constructs a TeacherService.
func NewTeacherService(repo teacherRepository, users userEmailChecker, lectures teacherLectureLister, settlements settlementLister, cache cacheInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{
		repo:        repo,
		users:       users,
		lectures:    lectures,
		settlements: settlements,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// List returns teachers plus pagination data.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	if teachers == nil {
		teachers = []models.Teacher{}
	}
	return teachers, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a teacher by id.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// Create registers a new teacher together with its login.
func (s *TeacherService) Create(ctx context.Context, req CreateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	assignments, err := buildAssignments(req.AssignedClasses)
	if err != nil {
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
		Role:         models.RoleTeacher,
		Active:       true,
	}
	teacher := &models.Teacher{
		Email:       user.Email,
		FullName:    user.FullName,
		Phone:       normalizeOptional(req.Phone),
		Subjects:    normalizeSubjects(req.Subjects),
		PhotoURL:    normalizeOptional(req.PhotoURL),
		Active:      true,
		Assignments: assignments,
	}

	if err := s.repo.Create(ctx, user, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}
	return teacher, nil
}

// Update modifies an existing teacher.
func (s *TeacherService) Update(ctx context.Context, id string, req UpdateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	teacher, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	replaceRates := req.AssignedClasses != nil
	if replaceRates {
		assignments, err := buildAssignments(req.AssignedClasses)
		if err != nil {
			return nil, err
		}
		teacher.Assignments = assignments
	}
	if err := s.ensureUniqueEmail(ctx, req.Email, id); err != nil {
		return nil, err
	}

	teacher.Email = strings.TrimSpace(req.Email)
	teacher.FullName = strings.TrimSpace(req.FullName)
	teacher.Phone = normalizeOptional(req.Phone)
	teacher.Subjects = normalizeSubjects(req.Subjects)
	teacher.PhotoURL = normalizeOptional(req.PhotoURL)
	if req.Active != nil {
		teacher.Active = *req.Active
	}

	if err := s.repo.Update(ctx, teacher, replaceRates); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}
	if replaceRates {
		s.invalidate(ctx)
	}
	return teacher, nil
}

// Deactivate marks a teacher inactive.
func (s *TeacherService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate teacher")
	}
	s.invalidate(ctx)
	return nil
}

// Reconcile prices the teacher's lectures per month against recorded settlements.
func (s *TeacherService) Reconcile(ctx context.Context, id string) (*reconcile.TeacherReconciliation, error) {
	teacher, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	lectures, err := s.lectures.ListByTeacher(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lectures")
	}
	settlements, err := s.settlements.ListByTeacher(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settlements")
	}

	result := reconcile.ReconcileTeacher(teacher.Assignments, lectures, settlements)
	logUnrated(s.logger, id, result)
	s.metrics.RecordUnratedLectures(len(result.UnratedLectures))
	return &result, nil
}

func (s *TeacherService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCachePattern); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func (s *TeacherService) ensureUniqueEmail(ctx context.Context, email, excludeID string) error {
	exists, err := s.users.ExistsByEmail(ctx, strings.TrimSpace(email), excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "email already used")
	}
	return nil
}

// buildAssignments trims input and rejects duplicate (class, section) pairs
// and negative rates.
func buildAssignments(input []AssignmentRequest) ([]models.Assignment, error) {
	assignments := make([]models.Assignment, 0, len(input))
	seen := make(map[string]struct{}, len(input))
	for _, item := range input {
		class := strings.TrimSpace(item.Class)
		section := strings.TrimSpace(item.Section)
		key := class + "\x00" + section
		if _, dup := seen[key]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("class %s section %s assigned twice", class, section))
		}
		seen[key] = struct{}{}
		if item.SalaryPerHour.IsNegative() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "salary_per_hour must not be negative")
		}
		assignments = append(assignments, models.Assignment{Class: class, Section: section, SalaryPerHour: item.SalaryPerHour})
	}
	return assignments, nil
}

func normalizeSubjects(subjects []string) pq.StringArray {
	out := make(pq.StringArray, 0, len(subjects))
	for _, subject := range subjects {
		if trimmed := strings.TrimSpace(subject); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func logUnrated(logger *zap.Logger, teacherID string, result reconcile.TeacherReconciliation) {
	if len(result.UnratedLectures) == 0 {
		return
	}
	ids := make([]string, 0, len(result.UnratedLectures))
	for _, l := range result.UnratedLectures {
		ids = append(ids, l.LectureID)
	}
	logger.Warn("lectures without assignment rate",
		zap.String("teacher_id", teacherID),
		zap.Int("count", len(ids)),
		zap.Strings("lecture_ids", ids),
	)
}
