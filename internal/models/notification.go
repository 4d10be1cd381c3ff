package models

import "time"

// Notification event types emitted by the core.
const (
	EventWeekSubmitted     = "week.submitted"
	EventWeekReviewed      = "week.reviewed"
	EventAssignmentCreated = "assignment.created"
)

// NotificationEvent is the payload handed to the notification sink. Delivery
// is an external collaborator concern; the core only emits.
type NotificationEvent struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	StudentID    string            `json:"student_id,omitempty"`
	SupervisorID string            `json:"supervisor_id,omitempty"`
	WeekNumber   int               `json:"week_number,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
}
