package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coaching-center-api/internal/models"
)

const studentColumns = `id, email, full_name, phone, class, section, photo_url, active, created_at, updated_at`

// StudentRepository handles persistence of student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a new repository instance.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ClassSectionCount is the number of active students in a class/section.
type ClassSectionCount struct {
	Class   string `db:"class"`
	Section string `db:"section"`
	Total   int    `db:"total"`
}

// List returns students matching filters and the total count.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Class != "" {
		conditions = append(conditions, fmt.Sprintf("class = $%d", len(args)+1))
		args = append(args, filter.Class)
	}
	if filter.Section != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(section) = LOWER($%d)", len(args)+1))
		args = append(args, filter.Section)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(email) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"full_name":  "full_name",
		"class":      "class",
		"created_at": "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	_, size, offset := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, base, column, order, size, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns the student by id. sql.ErrNoRows is returned unwrapped.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByEmail checks if another student uses the same email.
func (r *StudentRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return existsByEmail(ctx, r.db, "students", email, excludeID)
}

// Create inserts the login account and the student profile atomically.
func (r *StudentRepository) Create(ctx context.Context, user *models.User, student *models.Student) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin student transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertUser(ctx, tx, user); err != nil {
		return err
	}
	student.ID = user.ID
	student.CreatedAt = user.CreatedAt
	student.UpdatedAt = user.UpdatedAt

	const query = `INSERT INTO students (id, email, full_name, phone, class, section, photo_url, active, created_at, updated_at)
		VALUES (:id, :email, :full_name, :phone, :class, :section, :photo_url, :active, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit student: %w", err)
	}
	return nil
}

// Update modifies the profile and mirrors email/name/active onto the login.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) (err error) {
	student.UpdatedAt = time.Now().UTC()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin student transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE students SET email = :email, full_name = :full_name, phone = :phone, class = :class, section = :section, photo_url = :photo_url, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	const userQuery = `UPDATE users SET email = :email, full_name = :full_name, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, userQuery, student); err != nil {
		return fmt.Errorf("update student user: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit student: %w", err)
	}
	return nil
}

// Deactivate disables the student and its login.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `WITH s AS (UPDATE students SET active = FALSE, updated_at = $2 WHERE id = $1)
		UPDATE users SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}

// CountByClassSection groups active students for fee projections.
func (r *StudentRepository) CountByClassSection(ctx context.Context) ([]ClassSectionCount, error) {
	const query = `SELECT class, LOWER(section) AS section, COUNT(*) AS total FROM students WHERE active = TRUE GROUP BY class, LOWER(section) ORDER BY class, section`
	var rows []ClassSectionCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count students by class: %w", err)
	}
	return rows, nil
}

// ListIDsByClassSection returns active student ids of a class/section.
func (r *StudentRepository) ListIDsByClassSection(ctx context.Context, class, section string) ([]string, error) {
	const query = `SELECT id FROM students WHERE active = TRUE AND class = $1 AND LOWER(section) = LOWER($2) ORDER BY full_name`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, class, section); err != nil {
		return nil, fmt.Errorf("list students by class: %w", err)
	}
	return ids, nil
}
