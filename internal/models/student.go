package models

import "time"

// Student represents a learner on industrial placement.
//
// The supervisor_* columns are a denormalized cache of the active school
// assignment; they are written only inside assignment transactions so reads
// never join the assignments table on the hot path.
type Student struct {
	ID             string     `db:"id" json:"id"`
	UserID         *string    `db:"user_id" json:"user_id,omitempty"`
	MatricNo       string     `db:"matric_no" json:"matric_no"`
	FullName       string     `db:"full_name" json:"full_name"`
	Department     string     `db:"department" json:"department"`
	Faculty        string     `db:"faculty" json:"faculty"`
	CompanyName    string     `db:"company_name" json:"company_name"`
	CompanyAddress string     `db:"company_address" json:"company_address"`
	PlacementStart *time.Time `db:"placement_start" json:"placement_start,omitempty"`
	SupervisorID   *string    `db:"supervisor_id" json:"supervisor_id,omitempty"`
	SupervisorName *string    `db:"supervisor_name" json:"supervisor_name,omitempty"`
	SupervisorMail *string    `db:"supervisor_email" json:"supervisor_email,omitempty"`
	Locked         bool       `db:"locked" json:"locked"`
	Graded         bool       `db:"graded" json:"graded"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search       string
	Department   string
	SupervisorID string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
