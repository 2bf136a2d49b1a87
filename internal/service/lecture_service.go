package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/coaching-center-api/internal/models"
	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
)

type lectureRepository interface {
	List(ctx context.Context, filter models.LectureFilter) ([]models.Lecture, int, error)
	FindByID(ctx context.Context, id string) (*models.Lecture, error)
	Create(ctx context.Context, lecture *models.Lecture) error
	Update(ctx context.Context, lecture *models.Lecture) error
	Delete(ctx context.Context, id string) error
}

type teacherFinder interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// LectureRequest is the payload for creating or updating a lecture. TeacherID is
// ignored for teachers, who always record their own lectures.
type LectureRequest struct {
	TeacherID string  `json:"teacher_id"`
	Class     string  `json:"class" validate:"required"`
	Section   string  `json:"section" validate:"required"`
	Subject   string  `json:"subject" validate:"required"`
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	Time      string  `json:"time" validate:"omitempty,datetime=15:04"`
	Duration  float64 `json:"duration" validate:"gte=0,lte=24"`
}

// LectureService manages the lecture ledger.
type LectureService struct {
	repo      lectureRepository
	teachers  teacherFinder
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLectureService constructs a LectureService.
func NewLectureService(repo lectureRepository, teachers teacherFinder, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *LectureService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LectureService{repo: repo, teachers: teachers, cache: cache, validator: validate, logger: logger}
}

// List returns lectures visible to the caller. Teachers only see their own.
func (s *LectureService) List(ctx context.Context, filter models.LectureFilter, claims *models.JWTClaims) ([]models.Lecture, *models.Pagination, error) {
	if claims != nil && claims.Role == models.RoleTeacher {
		filter.TeacherID = claims.UserID
	}
	lectures, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lectures")
	}
	if lectures == nil {
		lectures = []models.Lecture{}
	}
	return lectures, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a single lecture.
func (s *LectureService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Lecture, error) {
	lecture, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecture")
	}
	if err := ensureLectureOwner(lecture, claims); err != nil {
		return nil, err
	}
	return lecture, nil
}

// Create records a new lecture.
func (s *LectureService) Create(ctx context.Context, req LectureRequest, claims *models.JWTClaims) (*models.Lecture, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lecture payload")
	}
	teacherID := strings.TrimSpace(req.TeacherID)
	if claims != nil && claims.Role == models.RoleTeacher {
		teacherID = claims.UserID
	}
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher_id is required")
	}
	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return nil, err
	}

	lecture := &models.Lecture{TeacherID: teacherID}
	if err := applyLectureRequest(lecture, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, lecture); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lecture")
	}
	s.invalidate(ctx)
	return lecture, nil
}

// Update modifies a lecture. The owning teacher cannot be changed by teachers.
func (s *LectureService) Update(ctx context.Context, id string, req LectureRequest, claims *models.JWTClaims) (*models.Lecture, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lecture payload")
	}
	lecture, err := s.Get(ctx, id, claims)
	if err != nil {
		return nil, err
	}
	if teacherID := strings.TrimSpace(req.TeacherID); teacherID != "" && teacherID != lecture.TeacherID {
		if claims != nil && claims.Role == models.RoleTeacher {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot reassign lecture")
		}
		if err := s.ensureTeacher(ctx, teacherID); err != nil {
			return nil, err
		}
		lecture.TeacherID = teacherID
	}
	if err := applyLectureRequest(lecture, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, lecture); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lecture")
	}
	s.invalidate(ctx)
	return lecture, nil
}

// Delete removes a lecture and its attendance.
func (s *LectureService) Delete(ctx context.Context, id string, claims *models.JWTClaims) error {
	if _, err := s.Get(ctx, id, claims); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lecture")
	}
	s.invalidate(ctx)
	return nil
}

func (s *LectureService) ensureTeacher(ctx context.Context, teacherID string) error {
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return nil
}

func (s *LectureService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCachePattern); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func ensureLectureOwner(lecture *models.Lecture, claims *models.JWTClaims) error {
	if claims == nil || claims.Role == models.RoleAdmin {
		return nil
	}
	if claims.Role == models.RoleTeacher && claims.UserID == lecture.TeacherID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "lecture belongs to another teacher")
}

func applyLectureRequest(lecture *models.Lecture, req LectureRequest) error {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}
	lecture.Class = strings.TrimSpace(req.Class)
	lecture.Section = strings.TrimSpace(req.Section)
	lecture.Subject = strings.TrimSpace(req.Subject)
	lecture.Date = date
	lecture.Time = strings.TrimSpace(req.Time)
	lecture.Duration = req.Duration
	if lecture.Duration == 0 {
		lecture.Duration = 1
	}
	return nil
}
