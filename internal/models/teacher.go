package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Teacher represents an instructor record.
type Teacher struct {
	ID          string         `db:"id" json:"id"`
	Email       string         `db:"email" json:"email"`
	FullName    string         `db:"full_name" json:"full_name"`
	Phone       *string        `db:"phone" json:"phone,omitempty"`
	Subjects    pq.StringArray `db:"subjects" json:"subjects"`
	PhotoURL    *string        `db:"photo_url" json:"photo_url,omitempty"`
	Active      bool           `db:"active" json:"active"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
	Assignments []Assignment   `db:"-" json:"assigned_classes"`
}

// Assignment is a teacher's (class, section) pairing with its hourly rate.
type Assignment struct {
	ID            string          `db:"id" json:"id,omitempty"`
	TeacherID     string          `db:"teacher_id" json:"-"`
	Class         string          `db:"class" json:"class"`
	Section       string          `db:"section" json:"section"`
	SalaryPerHour decimal.Decimal `db:"salary_per_hour" json:"salary_per_hour"`
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search    string
	Subject   string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
