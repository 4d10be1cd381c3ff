package models

import (
	"time"

	"github.com/lib/pq"
)

// WeekStatus is the persisted state of a weekly log. A draft never reaches
// the database; the first submission creates the row in SUBMITTED state.
type WeekStatus string

const (
	WeekStatusSubmitted WeekStatus = "SUBMITTED"
	WeekStatusApproved  WeekStatus = "APPROVED"
	WeekStatusRejected  WeekStatus = "REJECTED"
)

// Valid reports whether the status is a known persisted variant.
func (s WeekStatus) Valid() bool {
	switch s {
	case WeekStatusSubmitted, WeekStatusApproved, WeekStatusRejected:
		return true
	}
	return false
}

// Placement length bounds for week numbering.
const (
	MinWeekNumber = 1
	MaxWeekNumber = 24
)

// WeekRecord is a student's activity log for one placement week.
// Unique on (student_id, week_number).
type WeekRecord struct {
	ID                string         `db:"id" json:"id"`
	StudentID         string         `db:"student_id" json:"student_id"`
	WeekNumber        int            `db:"week_number" json:"week_number"`
	MondayActivity    string         `db:"monday_activity" json:"monday_activity"`
	TuesdayActivity   string         `db:"tuesday_activity" json:"tuesday_activity"`
	WednesdayActivity string         `db:"wednesday_activity" json:"wednesday_activity"`
	ThursdayActivity  string         `db:"thursday_activity" json:"thursday_activity"`
	FridayActivity    string         `db:"friday_activity" json:"friday_activity"`
	SaturdayActivity  string         `db:"saturday_activity" json:"saturday_activity"`
	Comments          string         `db:"comments" json:"comments"`
	ImageURLs         pq.StringArray `db:"image_urls" json:"image_urls"`
	StartDate         *time.Time     `db:"start_date" json:"start_date,omitempty"`
	EndDate           *time.Time     `db:"end_date" json:"end_date,omitempty"`
	Status            WeekStatus     `db:"status" json:"status"`
	SubmittedAt       time.Time      `db:"submitted_at" json:"submitted_at"`
	SupervisorID      *string        `db:"supervisor_id" json:"supervisor_id,omitempty"`
	ReviewedAt        *time.Time     `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewComment     *string        `db:"review_comment" json:"review_comment,omitempty"`
	RejectionReason   *string        `db:"rejection_reason" json:"rejection_reason,omitempty"`
	Grade             *int           `db:"grade" json:"grade,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// WeekDates derives the calendar span of a week from the placement start.
// Both values are nil when the placement start is unknown.
func WeekDates(placementStart *time.Time, weekNumber int) (start, end *time.Time) {
	if placementStart == nil {
		return nil, nil
	}
	s := placementStart.AddDate(0, 0, 7*(weekNumber-1))
	e := s.AddDate(0, 0, 6)
	return &s, &e
}
