package models

import "time"

// AttendanceRecord holds one student's check-in/check-out pair for a day.
// Unique on (student_id, date); a missing row means absent.
type AttendanceRecord struct {
	ID           string     `db:"id" json:"id"`
	StudentID    string     `db:"student_id" json:"student_id"`
	Date         time.Time  `db:"date" json:"date"`
	CheckInTime  *time.Time `db:"check_in_time" json:"check_in_time,omitempty"`
	CheckOutTime *time.Time `db:"check_out_time" json:"check_out_time,omitempty"`
	Latitude     *float64   `db:"latitude" json:"latitude,omitempty"`
	Longitude    *float64   `db:"longitude" json:"longitude,omitempty"`
	Verified     bool       `db:"verified" json:"verified"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// DayStatus describes a student's attendance state for a single day.
type DayStatus string

const (
	DayStatusAbsent     DayStatus = "ABSENT"
	DayStatusInProgress DayStatus = "IN_PROGRESS"
	DayStatusComplete   DayStatus = "COMPLETE"
)

// AttendanceSummaryRow is the per-student aggregate projected for a
// supervisor's dashboard.
type AttendanceSummaryRow struct {
	StudentID    string    `db:"student_id" json:"student_id"`
	StudentName  string    `db:"student_name" json:"student_name"`
	MatricNo     string    `db:"matric_no" json:"matric_no"`
	TotalDays    int       `db:"total_days" json:"total_days"`
	CompleteDays int       `db:"complete_days" json:"complete_days"`
	TodayStatus  DayStatus `json:"today_status"`
}
