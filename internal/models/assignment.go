package models

import "time"

// AssignmentType mirrors SupervisorType for the assignment dimension.
type AssignmentType string

const (
	AssignmentTypeSchool   AssignmentType = "SCHOOL"
	AssignmentTypeIndustry AssignmentType = "INDUSTRY"
)

// Valid reports whether the type is a known variant.
func (t AssignmentType) Valid() bool {
	return t == AssignmentTypeSchool || t == AssignmentTypeIndustry
}

// SupervisorAssignment binds a student to a supervisor for a session.
// Unique on (student_id, session_id, assignment_type).
type SupervisorAssignment struct {
	ID           string         `db:"id" json:"id"`
	StudentID    string         `db:"student_id" json:"student_id"`
	SupervisorID string         `db:"supervisor_id" json:"supervisor_id"`
	SessionID    string         `db:"session_id" json:"session_id"`
	Type         AssignmentType `db:"assignment_type" json:"assignment_type"`
	AssignedBy   *string        `db:"assigned_by" json:"assigned_by,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// AssignmentDetail joins student and supervisor names for listings.
type AssignmentDetail struct {
	SupervisorAssignment
	StudentName    string `db:"student_name" json:"student_name"`
	MatricNo       string `db:"matric_no" json:"matric_no"`
	SupervisorName string `db:"supervisor_name" json:"supervisor_name"`
}
