package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/siwes-logbook-api/internal/models"
)

// AttendanceRepository persists the daily check-in/check-out ledger. Both
// mutations are conditional writes so replays cannot overwrite an earlier
// timestamp.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = `id, student_id, date, check_in_time, check_out_time, latitude, longitude, verified, created_at, updated_at`

// CheckIn records the first check-in for (student, date). The insert is
// guarded by ON CONFLICT DO NOTHING; when no row comes back the day already
// has a check-in and sql.ErrNoRows is returned.
func (r *AttendanceRepository) CheckIn(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	query := fmt.Sprintf(`INSERT INTO attendance (id, student_id, date, check_in_time, latitude, longitude, verified, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (student_id, date) DO NOTHING
	RETURNING %s`, attendanceColumns)

	var saved models.AttendanceRecord
	err := r.db.GetContext(ctx, &saved, query,
		record.ID, record.StudentID, record.Date, record.CheckInTime,
		record.Latitude, record.Longitude, record.Verified,
		record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// CheckOut stamps the check-out time for (student, date). The update matches
// only rows without an existing check-out; sql.ErrNoRows means either no
// check-in happened today or the day is already closed.
func (r *AttendanceRepository) CheckOut(ctx context.Context, studentID string, date time.Time, checkOut time.Time) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`UPDATE attendance SET check_out_time = $3, updated_at = $4
	WHERE student_id = $1 AND date = $2 AND check_out_time IS NULL
	RETURNING %s`, attendanceColumns)

	var saved models.AttendanceRecord
	err := r.db.GetContext(ctx, &saved, query, studentID, date, checkOut, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// FindByStudentAndDate loads a single day's record.
func (r *AttendanceRepository) FindByStudentAndDate(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance WHERE student_id = $1 AND date = $2`, attendanceColumns)
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, studentID, date); err != nil {
		return nil, err
	}
	return &record, nil
}

// HistoryForStudent returns a student's records within [from, to], newest
// first.
func (r *AttendanceRepository) HistoryForStudent(ctx context.Context, studentID string, from, to time.Time) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance WHERE student_id = $1 AND date BETWEEN $2 AND $3 ORDER BY date DESC`, attendanceColumns)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID, from, to); err != nil {
		return nil, fmt.Errorf("attendance history: %w", err)
	}
	return records, nil
}

type attendanceSummaryScan struct {
	models.AttendanceSummaryRow
	TodayOpen   int `db:"today_open"`
	TodayClosed int `db:"today_closed"`
}

// SummaryForStudents aggregates attendance for the supervisor dashboard:
// total attended days, fully closed days and today's status per student,
// joined against the students' cached supervisor reference. One query for the
// whole roster; today's state rides along as a pair of filtered counts.
func (r *AttendanceRepository) SummaryForStudents(ctx context.Context, supervisorID string, today time.Time) ([]models.AttendanceSummaryRow, error) {
	const query = `
SELECT st.id AS student_id, st.full_name AS student_name, st.matric_no,
       COUNT(a.id) AS total_days,
       COUNT(a.id) FILTER (WHERE a.check_out_time IS NOT NULL) AS complete_days,
       COUNT(a.id) FILTER (WHERE a.date = $2) AS today_open,
       COUNT(a.id) FILTER (WHERE a.date = $2 AND a.check_out_time IS NOT NULL) AS today_closed
FROM students st
LEFT JOIN attendance a ON a.student_id = st.id
WHERE st.supervisor_id = $1
GROUP BY st.id, st.full_name, st.matric_no
ORDER BY st.matric_no ASC`
	var scanned []attendanceSummaryScan
	if err := r.db.SelectContext(ctx, &scanned, query, supervisorID, today); err != nil {
		return nil, fmt.Errorf("attendance summary: %w", err)
	}

	rows := make([]models.AttendanceSummaryRow, len(scanned))
	for i, s := range scanned {
		row := s.AttendanceSummaryRow
		switch {
		case s.TodayClosed > 0:
			row.TodayStatus = models.DayStatusComplete
		case s.TodayOpen > 0:
			row.TodayStatus = models.DayStatusInProgress
		default:
			row.TodayStatus = models.DayStatusAbsent
		}
		rows[i] = row
	}
	return rows, nil
}
