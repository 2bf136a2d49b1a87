package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/coaching-center-api/internal/models"
	appErrors "github.com/noah-isme/coaching-center-api/pkg/errors"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, rows []models.Attendance) error
	ListByStudent(ctx context.Context, studentID string) ([]models.AttendanceRecord, error)
}

type lectureGetter interface {
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Lecture, error)
}

// AttendanceEntry marks one student for a lecture.
type AttendanceEntry struct {
	StudentID string `json:"student_id" validate:"required"`
	Present   bool   `json:"present"`
}

// MarkAttendanceRequest records attendance for a lecture.
type MarkAttendanceRequest struct {
	LectureID string            `json:"lecture_id" validate:"required"`
	Entries   []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// StudentAttendance is the attendance view of a student.
type StudentAttendance struct {
	StudentID  string                            `json:"student_id"`
	Subjects   []models.SubjectAttendanceSummary `json:"subjects"`
	Present    int                               `json:"present"`
	Total      int                               `json:"total"`
	Percentage float64                           `json:"percentage"`
	Records    []models.AttendanceRecord         `json:"records"`
}

// AttendanceService records and summarises lecture attendance.
type AttendanceService struct {
	repo      attendanceRepository
	lectures  lectureGetter
	roster    rosterLister
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(repo attendanceRepository, lectures lectureGetter, roster rosterLister, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, lectures: lectures, roster: roster, validator: validate, logger: logger}
}

// Mark records attendance for students of the lecture's class and section.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest, claims *models.JWTClaims) ([]models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	lecture, err := s.lectures.Get(ctx, req.LectureID, claims)
	if err != nil {
		return nil, err
	}
	enrolled, err := s.roster.ListIDsByClassSection(ctx, lecture.Class, lecture.Section)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	allowed := make(map[string]struct{}, len(enrolled))
	for _, id := range enrolled {
		allowed[id] = struct{}{}
	}

	rows := make([]models.Attendance, 0, len(req.Entries))
	for _, entry := range req.Entries {
		if _, ok := allowed[entry.StudentID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is not enrolled in %s %s", entry.StudentID, lecture.Class, lecture.Section))
		}
		rows = append(rows, models.Attendance{LectureID: lecture.ID, StudentID: entry.StudentID, Present: entry.Present})
	}
	if err := s.repo.Upsert(ctx, rows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	return rows, nil
}

// ForStudent returns per subject attendance for a student.
func (s *AttendanceService) ForStudent(ctx context.Context, studentID string) (*StudentAttendance, error) {
	records, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	subjects := SummariseAttendance(records)
	result := &StudentAttendance{StudentID: studentID, Subjects: subjects, Records: records}
	for _, subject := range subjects {
		result.Present += subject.Present
		result.Total += subject.Total
	}
	result.Percentage = percentage(float64(result.Present), float64(result.Total))
	return result, nil
}

// SummariseAttendance groups attendance records by subject in name order.
func SummariseAttendance(records []models.AttendanceRecord) []models.SubjectAttendanceSummary {
	bySubject := make(map[string]*models.SubjectAttendanceSummary)
	for _, record := range records {
		summary, ok := bySubject[record.Subject]
		if !ok {
			summary = &models.SubjectAttendanceSummary{Subject: record.Subject}
			bySubject[record.Subject] = summary
		}
		summary.Total++
		if record.Present {
			summary.Present++
		}
	}
	out := make([]models.SubjectAttendanceSummary, 0, len(bySubject))
	for _, summary := range bySubject {
		summary.Percentage = percentage(float64(summary.Present), float64(summary.Total))
		out = append(out, *summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out
}

// percentage returns part/whole*100 rounded to two decimals, or 0 for an empty whole.
func percentage(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(part/whole*10000) / 100
}
