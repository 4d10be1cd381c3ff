package models

import "time"

// AcademicSession models a placement cycle, e.g. "2025/2026".
// At most one session is current at any time; SessionRepository.SetCurrent
// enforces the invariant transactionally.
type AcademicSession struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	IsCurrent bool      `db:"is_current" json:"is_current"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
