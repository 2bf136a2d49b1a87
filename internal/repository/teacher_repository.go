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

const teacherColumns = `id, email, full_name, phone, subjects, photo_url, active, created_at, updated_at`

// TeacherRepository manages persistence for teachers and their class assignments.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns teachers matching filters along with total count.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	base := "FROM teachers WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(email) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, search)
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(subjects)", len(args)+1))
		args = append(args, filter.Subject)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"full_name":  "full_name",
		"email":      "email",
		"created_at": "created_at",
		"updated_at": "updated_at",
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", teacherColumns, base, column, order, size, offset)
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// FindByID fetches a teacher with assignments. sql.ErrNoRows is returned unwrapped.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	query := `SELECT ` + teacherColumns + ` FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	assignments, err := r.ListAssignments(ctx, id)
	if err != nil {
		return nil, err
	}
	teacher.Assignments = assignments
	return &teacher, nil
}

// ExistsByEmail checks if another teacher uses the same email.
func (r *TeacherRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return existsByEmail(ctx, r.db, "teachers", email, excludeID)
}

// ListAssignments returns the rate table of one teacher in insertion order.
func (r *TeacherRepository) ListAssignments(ctx context.Context, teacherID string) ([]models.Assignment, error) {
	const query = `SELECT id, teacher_id, class, section, salary_per_hour FROM teacher_assignments WHERE teacher_id = $1 ORDER BY position ASC`
	assignments := []models.Assignment{}
	if err := r.db.SelectContext(ctx, &assignments, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher assignments: %w", err)
	}
	return assignments, nil
}

// ListAllAssignments returns every assignment grouped by teacher id.
func (r *TeacherRepository) ListAllAssignments(ctx context.Context) (map[string][]models.Assignment, error) {
	const query = `SELECT ta.id, ta.teacher_id, ta.class, ta.section, ta.salary_per_hour FROM teacher_assignments ta JOIN teachers t ON t.id = ta.teacher_id WHERE t.active = TRUE ORDER BY ta.teacher_id, ta.position ASC`
	var rows []models.Assignment
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list all assignments: %w", err)
	}
	grouped := make(map[string][]models.Assignment)
	for _, row := range rows {
		grouped[row.TeacherID] = append(grouped[row.TeacherID], row)
	}
	return grouped, nil
}

// Create inserts the login account, the teacher profile and its assignments atomically.
func (r *TeacherRepository) Create(ctx context.Context, user *models.User, teacher *models.Teacher) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin teacher transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertUser(ctx, tx, user); err != nil {
		return err
	}

	teacher.ID = user.ID
	teacher.CreatedAt = user.CreatedAt
	teacher.UpdatedAt = user.UpdatedAt
	if teacher.Subjects == nil {
		teacher.Subjects = []string{}
	}
	const query = `INSERT INTO teachers (id, email, full_name, phone, subjects, photo_url, active, created_at, updated_at)
		VALUES (:id, :email, :full_name, :phone, :subjects, :photo_url, :active, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	if err = replaceAssignments(ctx, tx, teacher.ID, teacher.Assignments); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit teacher: %w", err)
	}
	return nil
}

// Update modifies the profile, mirrors email/name onto the login and replaces assignments
// when replaceRates is true.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher, replaceRates bool) (err error) {
	teacher.UpdatedAt = time.Now().UTC()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin teacher transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE teachers SET email = :email, full_name = :full_name, phone = :phone, subjects = :subjects, photo_url = :photo_url, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	const userQuery = `UPDATE users SET email = :email, full_name = :full_name, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, userQuery, teacher); err != nil {
		return fmt.Errorf("update teacher user: %w", err)
	}
	if replaceRates {
		if err = replaceAssignments(ctx, tx, teacher.ID, teacher.Assignments); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit teacher: %w", err)
	}
	return nil
}

// Deactivate disables the teacher and its login.
func (r *TeacherRepository) Deactivate(ctx context.Context, id string) error {
	const query = `WITH t AS (UPDATE teachers SET active = FALSE, updated_at = $2 WHERE id = $1)
		UPDATE users SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate teacher: %w", err)
	}
	return nil
}

// CountActive returns the number of active teachers.
func (r *TeacherRepository) CountActive(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM teachers WHERE active = TRUE`); err != nil {
		return 0, fmt.Errorf("count teachers: %w", err)
	}
	return total, nil
}

func replaceAssignments(ctx context.Context, tx *sqlx.Tx, teacherID string, assignments []models.Assignment) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM teacher_assignments WHERE teacher_id = $1`, teacherID); err != nil {
		return fmt.Errorf("clear teacher assignments: %w", err)
	}
	const insert = `INSERT INTO teacher_assignments (id, teacher_id, class, section, salary_per_hour, position) VALUES ($1, $2, $3, $4, $5, $6)`
	for i := range assignments {
		a := &assignments[i]
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.TeacherID = teacherID
		if _, err := tx.ExecContext(ctx, insert, a.ID, teacherID, a.Class, a.Section, a.SalaryPerHour, i); err != nil {
			return fmt.Errorf("insert teacher assignment: %w", err)
		}
	}
	return nil
}
