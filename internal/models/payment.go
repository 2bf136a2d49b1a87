package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TeacherPayment is a recorded settlement of a teacher's month. Adjustments are
// explicit extra settlements for a month that already has a regular one.
type TeacherPayment struct {
	ID         string          `db:"id" json:"id"`
	TeacherID  string          `db:"teacher_id" json:"teacher_id"`
	Month      string          `db:"month" json:"month"`
	Hours      float64         `db:"hours" json:"hours"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Paid       bool            `db:"paid" json:"paid"`
	PaidDate   *time.Time      `db:"paid_date" json:"paid_date,omitempty"`
	Remarks    *string         `db:"remarks" json:"remarks,omitempty"`
	Adjustment bool            `db:"adjustment" json:"adjustment"`
	CreatedBy  *string         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// InstallmentStatus tracks the state of a student installment.
type InstallmentStatus string

const (
	InstallmentPaid    InstallmentStatus = "paid"
	InstallmentPending InstallmentStatus = "pending"
	InstallmentOverdue InstallmentStatus = "overdue"
)

// Valid reports whether the status is supported.
func (s InstallmentStatus) Valid() bool {
	switch s {
	case InstallmentPaid, InstallmentPending, InstallmentOverdue:
		return true
	default:
		return false
	}
}

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodUPI          PaymentMethod = "upi"
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCheque       PaymentMethod = "cheque"
)

// StudentPayment is one installment of a student's academic year fees.
type StudentPayment struct {
	ID                string            `db:"id" json:"id"`
	StudentID         string            `db:"student_id" json:"student_id"`
	InstallmentNumber int               `db:"installment_number" json:"installment_number"`
	TotalInstallments int               `db:"total_installments" json:"total_installments"`
	AcademicYear      string            `db:"academic_year" json:"academic_year"`
	Amount            decimal.Decimal   `db:"amount" json:"amount"`
	Status            InstallmentStatus `db:"status" json:"status"`
	Method            PaymentMethod     `db:"method" json:"method"`
	PaidDate          *time.Time        `db:"paid_date" json:"paid_date,omitempty"`
	Remarks           *string           `db:"remarks" json:"remarks,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}

// PaymentTotals aggregates fee collection for an academic year.
type PaymentTotals struct {
	Collected decimal.Decimal `db:"collected"`
	Pending   decimal.Decimal `db:"pending"`
}
