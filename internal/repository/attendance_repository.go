package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coaching-center-api/internal/models"
)

// AttendanceRepository persists per lecture attendance.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert records attendance rows for a lecture, overwriting earlier marks.
func (r *AttendanceRepository) Upsert(ctx context.Context, rows []models.Attendance) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const query = `INSERT INTO attendance (id, lecture_id, student_id, present, marked_at)
		VALUES (:id, :lecture_id, :student_id, :present, :marked_at)
		ON CONFLICT (lecture_id, student_id) DO UPDATE SET present = EXCLUDED.present, marked_at = EXCLUDED.marked_at`
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
		rows[i].MarkedAt = now
		if _, err = tx.NamedExecContext(ctx, query, &rows[i]); err != nil {
			return fmt.Errorf("upsert attendance: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance: %w", err)
	}
	return nil
}

// ListByStudent returns attendance rows with lecture subject and date.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string) ([]models.AttendanceRecord, error) {
	const query = `SELECT a.id, a.lecture_id, a.student_id, a.present, a.marked_at, l.subject, l.date
FROM attendance a
JOIN lectures l ON l.id = a.lecture_id
WHERE a.student_id = $1
ORDER BY l.date DESC`
	records := []models.AttendanceRecord{}
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list student attendance: %w", err)
	}
	return records, nil
}
