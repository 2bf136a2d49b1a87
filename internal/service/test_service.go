package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/coaching-center-api/internal/models"
	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
)

type testRepository interface {
	List(ctx context.Context, filter models.TestFilter) ([]models.Test, int, error)
	FindByID(ctx context.Context, id string) (*models.Test, error)
	Create(ctx context.Context, test *models.Test) error
	ListMarks(ctx context.Context, testID string) ([]models.Mark, error)
	UpsertMarks(ctx context.Context, marks []models.Mark) error
}

type rosterLister interface {
	ListIDsByClassSection(ctx context.Context, class, section string) ([]string, error)
}

// CreateTestRequest is the payload for scheduling a test.
type CreateTestRequest struct {
	TeacherID  string  `json:"teacher_id"`
	Title      string  `json:"title" validate:"required,max=200"`
	Subject    string  `json:"subject" validate:"required"`
	Class      string  `json:"class" validate:"required"`
	Section    string  `json:"section" validate:"required"`
	TotalMarks float64 `json:"total_marks" validate:"required,gt=0"`
	Date       string  `json:"date" validate:"required,datetime=2006-01-02"`
}

// MarkEntry is one student's score.
type MarkEntry struct {
	StudentID string  `json:"student_id" validate:"required"`
	Obtained  float64 `json:"obtained" validate:"gte=0"`
	Remarks   *string `json:"remarks" validate:"omitempty,max=500"`
}

// RecordMarksRequest carries marks for a test.
type RecordMarksRequest struct {
	Marks []MarkEntry `json:"marks" validate:"required,min=1,dive"`
}

// TestService manages tests and marks.
type TestService struct {
	repo      testRepository
	teachers  teacherFinder
	roster    rosterLister
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTestService constructs a TestService.
func NewTestService(repo testRepository, teachers teacherFinder, roster rosterLister, validate *validator.Validate, logger *zap.Logger) *TestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TestService{repo: repo, teachers: teachers, roster: roster, validator: validate, logger: logger}
}

// List returns tests. Teachers are limited to their own.
func (s *TestService) List(ctx context.Context, filter models.TestFilter, claims *models.JWTClaims) ([]models.Test, *models.Pagination, error) {
	if claims != nil && claims.Role == models.RoleTeacher {
		filter.TeacherID = claims.UserID
	}
	tests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tests")
	}
	if tests == nil {
		tests = []models.Test{}
	}
	return tests, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a test with its marks.
func (s *TestService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.TestDetail, error) {
	test, err := s.load(ctx, id, claims)
	if err != nil {
		return nil, err
	}
	marks, err := s.repo.ListMarks(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marks")
	}
	return &models.TestDetail{Test: *test, Marks: marks}, nil
}

// Create schedules a test.
func (s *TestService) Create(ctx context.Context, req CreateTestRequest, claims *models.JWTClaims) (*models.Test, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid test payload")
	}
	teacherID := strings.TrimSpace(req.TeacherID)
	if claims != nil && claims.Role == models.RoleTeacher {
		teacherID = claims.UserID
	}
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher_id is required")
	}
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}

	test := &models.Test{
		TeacherID:  teacherID,
		Title:      strings.TrimSpace(req.Title),
		Subject:    strings.TrimSpace(req.Subject),
		Class:      strings.TrimSpace(req.Class),
		Section:    strings.TrimSpace(req.Section),
		TotalMarks: req.TotalMarks,
		Date:       date,
	}
	if err := s.repo.Create(ctx, test); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create test")
	}
	return test, nil
}

// RecordMarks stores marks for students of the test's class and section.
func (s *TestService) RecordMarks(ctx context.Context, testID string, req RecordMarksRequest, claims *models.JWTClaims) (*models.TestDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid marks payload")
	}
	test, err := s.load(ctx, testID, claims)
	if err != nil {
		return nil, err
	}
	enrolled, err := s.roster.ListIDsByClassSection(ctx, test.Class, test.Section)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	allowed := make(map[string]struct{}, len(enrolled))
	for _, id := range enrolled {
		allowed[id] = struct{}{}
	}

	marks := make([]models.Mark, 0, len(req.Marks))
	seen := make(map[string]struct{}, len(req.Marks))
	for _, entry := range req.Marks {
		if entry.Obtained > test.TotalMarks {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("obtained marks for %s exceed total marks %.2f", entry.StudentID, test.TotalMarks))
		}
		if _, ok := allowed[entry.StudentID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is not enrolled in %s %s", entry.StudentID, test.Class, test.Section))
		}
		if _, dup := seen[entry.StudentID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s listed twice", entry.StudentID))
		}
		seen[entry.StudentID] = struct{}{}
		marks = append(marks, models.Mark{
			TestID:    test.ID,
			StudentID: entry.StudentID,
			Obtained:  entry.Obtained,
			Remarks:   normalizeOptional(entry.Remarks),
		})
	}

	if err := s.repo.UpsertMarks(ctx, marks); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record marks")
	}
	return s.Get(ctx, testID, claims)
}

func (s *TestService) load(ctx context.Context, id string, claims *models.JWTClaims) (*models.Test, error) {
	test, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "test not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load test")
	}
	if claims != nil && claims.Role == models.RoleTeacher && claims.UserID != test.TeacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "test belongs to another teacher")
	}
	return test, nil
}
