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

const testColumns = `id, teacher_id, title, subject, class, section, total_marks, date, created_at`

// TestRepository persists tests and their marks.
type TestRepository struct {
	db *sqlx.DB
}

// NewTestRepository constructs a TestRepository.
func NewTestRepository(db *sqlx.DB) *TestRepository {
	return &TestRepository{db: db}
}

// List returns tests matching the filter, newest first.
func (r *TestRepository) List(ctx context.Context, filter models.TestFilter) ([]models.Test, int, error) {
	base := "FROM tests WHERE 1=1"
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
		add("LOWER(section) = LOWER($%d)", filter.Section)
	}
	if filter.Subject != "" {
		add("LOWER(subject) = LOWER($%d)", filter.Subject)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	_, size, offset := normalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY date DESC LIMIT %d OFFSET %d", testColumns, base, size, offset)
	var tests []models.Test
	if err := r.db.SelectContext(ctx, &tests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list tests: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count tests: %w", err)
	}
	return tests, total, nil
}

// FindByID fetches a test. sql.ErrNoRows is returned unwrapped.
func (r *TestRepository) FindByID(ctx context.Context, id string) (*models.Test, error) {
	query := `SELECT ` + testColumns + ` FROM tests WHERE id = $1`
	var test models.Test
	if err := r.db.GetContext(ctx, &test, query, id); err != nil {
		return nil, err
	}
	return &test, nil
}

// Create inserts a test.
func (r *TestRepository) Create(ctx context.Context, test *models.Test) error {
	if test.ID == "" {
		test.ID = uuid.NewString()
	}
	test.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO tests (id, teacher_id, title, subject, class, section, total_marks, date, created_at)
		VALUES (:id, :teacher_id, :title, :subject, :class, :section, :total_marks, :date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, test); err != nil {
		return fmt.Errorf("create test: %w", err)
	}
	return nil
}

// Count returns the number of tests, optionally for a single teacher.
func (r *TestRepository) Count(ctx context.Context, teacherID string) (int, error) {
	query := `SELECT COUNT(*) FROM tests`
	var args []interface{}
	if teacherID != "" {
		query += ` WHERE teacher_id = $1`
		args = append(args, teacherID)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count tests: %w", err)
	}
	return total, nil
}

// ListMarks returns the marks recorded for a test.
func (r *TestRepository) ListMarks(ctx context.Context, testID string) ([]models.Mark, error) {
	const query = `SELECT id, test_id, student_id, obtained, remarks, created_at, updated_at FROM marks WHERE test_id = $1 ORDER BY created_at ASC`
	marks := []models.Mark{}
	if err := r.db.SelectContext(ctx, &marks, query, testID); err != nil {
		return nil, fmt.Errorf("list marks: %w", err)
	}
	return marks, nil
}

// UpsertMarks writes marks for a test, replacing a student's earlier score.
func (r *TestRepository) UpsertMarks(ctx context.Context, marks []models.Mark) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin marks transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const query = `INSERT INTO marks (id, test_id, student_id, obtained, remarks, created_at, updated_at)
		VALUES (:id, :test_id, :student_id, :obtained, :remarks, :created_at, :updated_at)
		ON CONFLICT (test_id, student_id) DO UPDATE SET obtained = EXCLUDED.obtained, remarks = EXCLUDED.remarks, updated_at = EXCLUDED.updated_at`
	for i := range marks {
		if marks[i].ID == "" {
			marks[i].ID = uuid.NewString()
		}
		marks[i].CreatedAt = now
		marks[i].UpdatedAt = now
		if _, err = tx.NamedExecContext(ctx, query, &marks[i]); err != nil {
			return fmt.Errorf("upsert mark: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit marks: %w", err)
	}
	return nil
}

// ListStudentMarks returns a student's marks joined with their tests.
func (r *TestRepository) ListStudentMarks(ctx context.Context, studentID string) ([]models.StudentMark, error) {
	const query = `SELECT t.id AS test_id, t.title, t.subject, t.total_marks, m.obtained, t.date
FROM marks m
JOIN tests t ON t.id = m.test_id
WHERE m.student_id = $1
ORDER BY t.date DESC`
	marks := []models.StudentMark{}
	if err := r.db.SelectContext(ctx, &marks, query, studentID); err != nil {
		return nil, fmt.Errorf("list student marks: %w", err)
	}
	return marks, nil
}
