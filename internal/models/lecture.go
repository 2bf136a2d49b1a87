package models

import "time"

// Lecture is a teaching session. Duration is in hours; zero means one hour.
type Lecture struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Class     string    `db:"class" json:"class"`
	Section   string    `db:"section" json:"section"`
	Subject   string    `db:"subject" json:"subject"`
	Date      time.Time `db:"date" json:"date"`
	Time      string    `db:"time" json:"time"`
	Duration  float64   `db:"duration" json:"duration"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Hours returns the billable duration.
func (l Lecture) Hours() float64 {
	if l.Duration <= 0 {
		return 1
	}
	return l.Duration
}

// LectureFilter scopes lecture listings.
type LectureFilter struct {
	TeacherID string
	Class     string
	Section   string
	Subject   string
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}
