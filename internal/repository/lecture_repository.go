package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coaching-center-api/internal/models"
)

const lectureColumns = `id, teacher_id, class, section, subject, date, time, duration, created_at, updated_at`

// LectureRepository persists teaching sessions.
type LectureRepository struct {
	db *sqlx.DB
}

// NewLectureRepository constructs a LectureRepository.
func NewLectureRepository(db *sqlx.DB) *LectureRepository {
	return &LectureRepository{db: db}
}

// List returns lectures matching the filter, newest first.
func (r *LectureRepository) List(ctx context.Context, filter models.LectureFilter) ([]models.Lecture, int, error) {
	base := "FROM lectures WHERE 1=1"
	var conditions []string
	var args []interface{}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}
	if filter.TeacherID != "" {
		add("teacher_id = $%d", filter.TeacherID)
	}
	if filter.Class != "" {
		add("class = $%d", filter.Class)
	}
	if filter.Section != "" {
		add("section = $%d", filter.Section)
	}
	if filter.Subject != "" {
		add("LOWER(subject) = LOWER($%d)", filter.Subject)
	}
	if filter.DateFrom != nil {
		add("date >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		add("date <= $%d", *filter.DateTo)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	_, size, offset := normalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY date DESC, time DESC LIMIT %d OFFSET %d", lectureColumns, base, size, offset)
	var lectures []models.Lecture
	if err := r.db.SelectContext(ctx, &lectures, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list lectures: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count lectures: %w", err)
	}
	return lectures, total, nil
}

// ListByTeacher returns every lecture of a teacher for reconciliation.
func (r *LectureRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Lecture, error) {
	query := `SELECT ` + lectureColumns + ` FROM lectures WHERE teacher_id = $1 ORDER BY date ASC`
	var lectures []models.Lecture
	if err := r.db.SelectContext(ctx, &lectures, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher lectures: %w", err)
	}
	return lectures, nil
}

// ListAll returns every lecture grouped by teacher id.
func (r *LectureRepository) ListAll(ctx context.Context) (map[string][]models.Lecture, error) {
	query := `SELECT ` + lectureColumns + ` FROM lectures ORDER BY teacher_id, date ASC`
	var lectures []models.Lecture
	if err := r.db.SelectContext(ctx, &lectures, query); err != nil {
		return nil, fmt.Errorf("list lectures: %w", err)
	}
	grouped := make(map[string][]models.Lecture)
	for _, l := range lectures {
		grouped[l.TeacherID] = append(grouped[l.TeacherID], l)
	}
	return grouped, nil
}

// FindByID fetches a lecture. sql.ErrNoRows is returned unwrapped.
func (r *LectureRepository) FindByID(ctx context.Context, id string) (*models.Lecture, error) {
	query := `SELECT ` + lectureColumns + ` FROM lectures WHERE id = $1`
	var lecture models.Lecture
	if err := r.db.GetContext(ctx, &lecture, query, id); err != nil {
		return nil, err
	}
	return &lecture, nil
}

// Create inserts a lecture.
func (r *LectureRepository) Create(ctx context.Context, lecture *models.Lecture) error {
	if lecture.ID == "" {
		lecture.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	lecture.CreatedAt = now
	lecture.UpdatedAt = now

	const query = `INSERT INTO lectures (id, teacher_id, class, section, subject, date, time, duration, created_at, updated_at)
		VALUES (:id, :teacher_id, :class, :section, :subject, :date, :time, :duration, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lecture); err != nil {
		return fmt.Errorf("create lecture: %w", err)
	}
	return nil
}

// Update modifies a lecture.
func (r *LectureRepository) Update(ctx context.Context, lecture *models.Lecture) error {
	lecture.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lectures SET class = :class, section = :section, subject = :subject, date = :date, time = :time, duration = :duration, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, lecture); err != nil {
		return fmt.Errorf("update lecture: %w", err)
	}
	return nil
}

// Delete removes a lecture and its attendance rows.
func (r *LectureRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM lectures WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete lecture: %w", err)
	}
	return nil
}

// Count returns the number of lectures, optionally for a single teacher.
func (r *LectureRepository) Count(ctx context.Context, teacherID string) (int, error) {
	query := `SELECT COUNT(*) FROM lectures`
	var args []interface{}
	if teacherID != "" {
		query += ` WHERE teacher_id = $1`
		args = append(args, teacherID)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count lectures: %w", err)
	}
	return total, nil
}
