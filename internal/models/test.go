package models

import "time"

// Test is an assessment set by a teacher for a class/section.
type Test struct {
	ID         string    `db:"id" json:"id"`
	TeacherID  string    `db:"teacher_id" json:"teacher_id"`
	Title      string    `db:"title" json:"title"`
	Subject    string    `db:"subject" json:"subject"`
	Class      string    `db:"class" json:"class"`
	Section    string    `db:"section" json:"section"`
	TotalMarks float64   `db:"total_marks" json:"total_marks"`
	Date       time.Time `db:"date" json:"date"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Mark records a student's score on a test.
type Mark struct {
	ID        string    `db:"id" json:"id"`
	TestID    string    `db:"test_id" json:"test_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Obtained  float64   `db:"obtained" json:"obtained"`
	Remarks   *string   `db:"remarks" json:"remarks,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TestDetail bundles a test with its recorded marks.
type TestDetail struct {
	Test
	Marks []Mark `json:"marks"`
}

// StudentMark joins a mark with its test for per-student views.
type StudentMark struct {
	TestID     string    `db:"test_id" json:"test_id"`
	Title      string    `db:"title" json:"title"`
	Subject    string    `db:"subject" json:"subject"`
	TotalMarks float64   `db:"total_marks" json:"total_marks"`
	Obtained   float64   `db:"obtained" json:"obtained"`
	Date       time.Time `db:"date" json:"date"`
}

// TestFilter scopes test listings.
type TestFilter struct {
	TeacherID string
	Class     string
	Section   string
	Subject   string
	Page      int
	PageSize  int
}
