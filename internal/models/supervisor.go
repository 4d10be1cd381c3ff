package models

import "time"

// SupervisorType distinguishes school-side from industry-side supervisors.
type SupervisorType string

const (
	SupervisorTypeSchool   SupervisorType = "SCHOOL"
	SupervisorTypeIndustry SupervisorType = "INDUSTRY"
)

// Valid reports whether the type is one of the known variants.
func (t SupervisorType) Valid() bool {
	return t == SupervisorTypeSchool || t == SupervisorTypeIndustry
}

// Supervisor is a member of the supervision pool. Industry supervisors are
// passive records and carry no user account.
type Supervisor struct {
	ID        string         `db:"id" json:"id"`
	UserID    *string        `db:"user_id" json:"user_id,omitempty"`
	FullName  string         `db:"full_name" json:"full_name"`
	Email     string         `db:"email" json:"email"`
	Phone     string         `db:"phone" json:"phone"`
	Type      SupervisorType `db:"type" json:"type"`
	Active    bool           `db:"active" json:"active"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// SupervisorFilter narrows supervisor listings.
type SupervisorFilter struct {
	Type      SupervisorType
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// SupervisorLoad is the assignment count for one supervisor within a session.
type SupervisorLoad struct {
	SupervisorID string    `db:"supervisor_id" json:"supervisor_id"`
	FullName     string    `db:"full_name" json:"full_name"`
	Email        string    `db:"email" json:"email"`
	Assigned     int       `db:"assigned" json:"assigned"`
	CreatedAt    time.Time `db:"created_at" json:"-"`
}
