package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coaching-center-api/internal/models"
)

const studentPaymentColumns = `id, student_id, installment_number, total_installments, academic_year, amount, status, method, paid_date, remarks, created_at, updated_at`

// InstallmentConstraint is the unique index on (student_id, installment_number, academic_year).
const InstallmentConstraint = "student_payments_installment_key"

// StudentPaymentRepository persists student installments.
type StudentPaymentRepository struct {
	db *sqlx.DB
}

// NewStudentPaymentRepository constructs a StudentPaymentRepository.
func NewStudentPaymentRepository(db *sqlx.DB) *StudentPaymentRepository {
	return &StudentPaymentRepository{db: db}
}

// ListByStudent returns installments ordered by academic year desc then position.
func (r *StudentPaymentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.StudentPayment, error) {
	query := `SELECT ` + studentPaymentColumns + ` FROM student_payments WHERE student_id = $1 ORDER BY academic_year DESC, installment_number ASC`
	payments := []models.StudentPayment{}
	if err := r.db.SelectContext(ctx, &payments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student payments: %w", err)
	}
	return payments, nil
}

// FindByID fetches an installment. sql.ErrNoRows is returned unwrapped.
func (r *StudentPaymentRepository) FindByID(ctx context.Context, id string) (*models.StudentPayment, error) {
	query := `SELECT ` + studentPaymentColumns + ` FROM student_payments WHERE id = $1`
	var payment models.StudentPayment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Exists reports whether the installment position is already recorded for the year.
func (r *StudentPaymentRepository) Exists(ctx context.Context, studentID string, installmentNumber int, academicYear string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM student_payments WHERE student_id = $1 AND installment_number = $2 AND academic_year = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, installmentNumber, academicYear); err != nil {
		return false, fmt.Errorf("check student installment: %w", err)
	}
	return exists, nil
}

// Create inserts an installment.
func (r *StudentPaymentRepository) Create(ctx context.Context, payment *models.StudentPayment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now

	const query = `INSERT INTO student_payments (id, student_id, installment_number, total_installments, academic_year, amount, status, method, paid_date, remarks, created_at, updated_at)
		VALUES (:id, :student_id, :installment_number, :total_installments, :academic_year, :amount, :status, :method, :paid_date, :remarks, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create student payment: %w", err)
	}
	return nil
}

// UpdateStatus changes status and paid date of an installment.
func (r *StudentPaymentRepository) UpdateStatus(ctx context.Context, id string, status models.InstallmentStatus, paidDate *time.Time) error {
	const query = `UPDATE student_payments SET status = $2, paid_date = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, paidDate, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student payment status: %w", err)
	}
	return nil
}

// Totals sums paid and unpaid installment amounts for an academic year.
func (r *StudentPaymentRepository) Totals(ctx context.Context, academicYear string) (*models.PaymentTotals, error) {
	const query = `SELECT
	COALESCE(SUM(amount) FILTER (WHERE status = 'paid'), 0) AS collected,
	COALESCE(SUM(amount) FILTER (WHERE status <> 'paid'), 0) AS pending
FROM student_payments WHERE academic_year = $1`
	var totals models.PaymentTotals
	if err := r.db.GetContext(ctx, &totals, query, academicYear); err != nil {
		return nil, fmt.Errorf("sum student payments: %w", err)
	}
	return &totals, nil
}
