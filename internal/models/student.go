package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Student represents a learner registered in the coaching center.
type Student struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Class     string    `db:"class" json:"class"`
	Section   string    `db:"section" json:"section"`
	PhotoURL  *string   `db:"photo_url" json:"photo_url,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FeeStatus is derived from the fee schedule and the installment ledger on every read.
type FeeStatus struct {
	AcademicYear string          `json:"academic_year"`
	OverallFees  decimal.Decimal `json:"overall_fees"`
	PaidFees     decimal.Decimal `json:"paid_fees"`
	DueFees      decimal.Decimal `json:"due_fees"`
}

// StudentDetail wraps a student with the computed fee status.
type StudentDetail struct {
	Student
	Fees *FeeStatus `json:"fees,omitempty"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Class     string
	Section   string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
