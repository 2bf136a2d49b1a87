package models

import "time"

// Attendance marks whether a student attended a lecture.
type Attendance struct {
	ID        string    `db:"id" json:"id"`
	LectureID string    `db:"lecture_id" json:"lecture_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Present   bool      `db:"present" json:"present"`
	MarkedAt  time.Time `db:"marked_at" json:"marked_at"`
}

// AttendanceRecord enriches an attendance row with lecture details.
type AttendanceRecord struct {
	Attendance
	Subject string    `db:"subject" json:"subject"`
	Date    time.Time `db:"date" json:"date"`
}

// SubjectAttendanceSummary aggregates attendance for one subject.
type SubjectAttendanceSummary struct {
	Subject    string  `json:"subject"`
	Present    int     `json:"present"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}
