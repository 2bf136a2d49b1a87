package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coaching-center-api/internal/models"
)

const teacherPaymentColumns = `id, teacher_id, month, hours, amount, paid, paid_date, remarks, adjustment, created_by, created_at`

// SettlementMonthConstraint is the partial unique index guarding regular settlements.
const SettlementMonthConstraint = "teacher_payments_regular_month_key"

// TeacherPaymentRepository persists teacher settlements.
type TeacherPaymentRepository struct {
	db *sqlx.DB
}

// NewTeacherPaymentRepository constructs a TeacherPaymentRepository.
func NewTeacherPaymentRepository(db *sqlx.DB) *TeacherPaymentRepository {
	return &TeacherPaymentRepository{db: db}
}

// ListByTeacher returns settlements of a teacher, newest month first.
func (r *TeacherPaymentRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.TeacherPayment, error) {
	query := `SELECT ` + teacherPaymentColumns + ` FROM teacher_payments WHERE teacher_id = $1 ORDER BY month DESC, created_at ASC`
	payments := []models.TeacherPayment{}
	if err := r.db.SelectContext(ctx, &payments, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher payments: %w", err)
	}
	return payments, nil
}

// ListAll returns every settlement grouped by teacher id.
func (r *TeacherPaymentRepository) ListAll(ctx context.Context) (map[string][]models.TeacherPayment, error) {
	query := `SELECT ` + teacherPaymentColumns + ` FROM teacher_payments ORDER BY teacher_id, month DESC`
	var payments []models.TeacherPayment
	if err := r.db.SelectContext(ctx, &payments, query); err != nil {
		return nil, fmt.Errorf("list teacher payments: %w", err)
	}
	grouped := make(map[string][]models.TeacherPayment)
	for _, p := range payments {
		grouped[p.TeacherID] = append(grouped[p.TeacherID], p)
	}
	return grouped, nil
}

// FindByID fetches a settlement. sql.ErrNoRows is returned unwrapped.
func (r *TeacherPaymentRepository) FindByID(ctx context.Context, id string) (*models.TeacherPayment, error) {
	query := `SELECT ` + teacherPaymentColumns + ` FROM teacher_payments WHERE id = $1`
	var payment models.TeacherPayment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ExistsRegular reports whether a non-adjustment settlement exists for the month.
func (r *TeacherPaymentRepository) ExistsRegular(ctx context.Context, teacherID, month string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM teacher_payments WHERE teacher_id = $1 AND month = $2 AND adjustment = FALSE)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, teacherID, month); err != nil {
		return false, fmt.Errorf("check teacher settlement: %w", err)
	}
	return exists, nil
}

// Create inserts a settlement. A second regular settlement for the same month
// violates SettlementMonthConstraint.
func (r *TeacherPaymentRepository) Create(ctx context.Context, payment *models.TeacherPayment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO teacher_payments (id, teacher_id, month, hours, amount, paid, paid_date, remarks, adjustment, created_by, created_at)
		VALUES (:id, :teacher_id, :month, :hours, :amount, :paid, :paid_date, :remarks, :adjustment, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create teacher payment: %w", err)
	}
	return nil
}

// Delete removes a settlement.
func (r *TeacherPaymentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM teacher_payments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete teacher payment: %w", err)
	}
	return nil
}
