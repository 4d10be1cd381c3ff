package repository

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/siwes-logbook-api/internal/models"
)

// AssignmentRepository owns supervisor_assignments rows and the denormalized
// supervisor cache columns on students. Every mutation keeps both in step
// inside a single transaction (write-through, spec'd in the data model).
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// FindActive returns the active assignment for (student, session, type).
func (r *AssignmentRepository) FindActive(ctx context.Context, studentID, sessionID string, assignmentType models.AssignmentType) (*models.SupervisorAssignment, error) {
	const query = `SELECT id, student_id, supervisor_id, session_id, assignment_type, assigned_by, created_at
FROM supervisor_assignments
WHERE student_id = $1 AND session_id = $2 AND assignment_type = $3
LIMIT 1`
	var assignment models.SupervisorAssignment
	if err := r.db.GetContext(ctx, &assignment, query, studentID, sessionID, assignmentType); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListBySupervisor returns assignment details for (supervisor, session, type).
func (r *AssignmentRepository) ListBySupervisor(ctx context.Context, supervisorID, sessionID string, assignmentType models.AssignmentType) ([]models.AssignmentDetail, error) {
	const query = `
SELECT sa.id, sa.student_id, sa.supervisor_id, sa.session_id, sa.assignment_type, sa.assigned_by, sa.created_at,
       st.full_name AS student_name, st.matric_no, sp.full_name AS supervisor_name
FROM supervisor_assignments sa
JOIN students st ON st.id = sa.student_id
JOIN supervisors sp ON sp.id = sa.supervisor_id
WHERE sa.supervisor_id = $1 AND sa.session_id = $2 AND sa.assignment_type = $3
ORDER BY st.matric_no ASC`
	var details []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &details, query, supervisorID, sessionID, assignmentType); err != nil {
		return nil, fmt.Errorf("list assignments by supervisor: %w", err)
	}
	return details, nil
}

// CountBySupervisor returns the supervisor's load within a session.
func (r *AssignmentRepository) CountBySupervisor(ctx context.Context, supervisorID, sessionID string, assignmentType models.AssignmentType) (int, error) {
	const query = `SELECT COUNT(*) FROM supervisor_assignments WHERE supervisor_id = $1 AND session_id = $2 AND assignment_type = $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, supervisorID, sessionID, assignmentType); err != nil {
		return 0, fmt.Errorf("count assignments: %w", err)
	}
	return count, nil
}

// AssignLeastLoaded places a student with the least-loaded active supervisor
// of the given type, all inside one transaction holding the session advisory
// lock: the existing-row re-check, the load-ordered selection and the insert
// cannot interleave with a concurrent caller, so fairness holds and a racing
// duplicate call observes the winner's row instead of a constraint violation.
// Returns the assignment, the chosen supervisor and whether a row was
// created; sql.ErrNoRows means the supervisor pool is empty.
func (r *AssignmentRepository) AssignLeastLoaded(ctx context.Context, studentID, sessionID string, assignedBy *string) (*models.SupervisorAssignment, *models.Supervisor, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, false, fmt.Errorf("begin auto-assign tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, sessionLockKey(sessionID)); err != nil {
		return nil, nil, false, fmt.Errorf("acquire session lock: %w", err)
	}

	// Re-check under the lock: a concurrent caller may have assigned this
	// student between the service's fast path and here.
	var existing models.SupervisorAssignment
	err = tx.GetContext(ctx, &existing, `SELECT id, student_id, supervisor_id, session_id, assignment_type, assigned_by, created_at
FROM supervisor_assignments
WHERE student_id = $1 AND session_id = $2 AND assignment_type = $3
LIMIT 1`, studentID, sessionID, models.AssignmentTypeSchool)
	if err == nil {
		var supervisor models.Supervisor
		if err := tx.GetContext(ctx, &supervisor, fmt.Sprintf(`SELECT %s FROM supervisors WHERE id = $1`, supervisorColumns), existing.SupervisorID); err != nil {
			return nil, nil, false, fmt.Errorf("load assigned supervisor: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, nil, false, fmt.Errorf("commit auto-assign tx: %w", err)
		}
		committed = true
		return &existing, &supervisor, false, nil
	}
	if err != sql.ErrNoRows {
		return nil, nil, false, fmt.Errorf("check existing assignment: %w", err)
	}

	const selectQuery = `
SELECT s.id, s.user_id, s.full_name, s.email, s.phone, s.type, s.active, s.created_at, s.updated_at
FROM supervisors s
LEFT JOIN supervisor_assignments sa
       ON sa.supervisor_id = s.id AND sa.session_id = $1 AND sa.assignment_type = $2
WHERE s.active = TRUE AND s.type = $2
GROUP BY s.id
ORDER BY COUNT(sa.id) ASC, s.created_at ASC, s.id ASC
LIMIT 1`
	var supervisor models.Supervisor
	if err := tx.GetContext(ctx, &supervisor, selectQuery, sessionID, models.AssignmentTypeSchool); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, false, sql.ErrNoRows
		}
		return nil, nil, false, fmt.Errorf("select least-loaded supervisor: %w", err)
	}

	assignment := &models.SupervisorAssignment{
		ID:           uuid.NewString(),
		StudentID:    studentID,
		SupervisorID: supervisor.ID,
		SessionID:    sessionID,
		Type:         models.AssignmentTypeSchool,
		AssignedBy:   assignedBy,
		CreatedAt:    time.Now().UTC(),
	}
	const insert = `INSERT INTO supervisor_assignments (id, student_id, supervisor_id, session_id, assignment_type, assigned_by, created_at)
		VALUES (:id, :student_id, :supervisor_id, :session_id, :assignment_type, :assigned_by, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, assignment); err != nil {
		return nil, nil, false, fmt.Errorf("create assignment: %w", err)
	}

	if err := writeSupervisorCache(ctx, tx, studentID, &supervisor); err != nil {
		return nil, nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, false, fmt.Errorf("commit auto-assign tx: %w", err)
	}
	committed = true
	return assignment, &supervisor, true, nil
}

// CreateWithCache inserts an assignment and writes the supervisor cache onto
// the student row in the same transaction. The session advisory lock orders
// the insert against concurrent bulk replaces on the same session.
func (r *AssignmentRepository) CreateWithCache(ctx context.Context, assignment *models.SupervisorAssignment, supervisor *models.Supervisor) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, sessionLockKey(assignment.SessionID)); err != nil {
		return fmt.Errorf("acquire session lock: %w", err)
	}

	const insert = `INSERT INTO supervisor_assignments (id, student_id, supervisor_id, session_id, assignment_type, assigned_by, created_at)
		VALUES (:id, :student_id, :supervisor_id, :session_id, :assignment_type, :assigned_by, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insert, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}

	if assignment.Type == models.AssignmentTypeSchool {
		if err = writeSupervisorCache(ctx, tx, assignment.StudentID, supervisor); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit assignment tx: %w", err)
	}
	return nil
}

// ReplaceForSupervisor performs the administrative bulk replace: all rows for
// (supervisor, session, type) are deleted, cache columns of students dropped
// from the list are cleared, fresh rows are inserted and caches rewritten.
// One transaction end to end; a crash can never strand assignments deleted
// but not re-inserted.
func (r *AssignmentRepository) ReplaceForSupervisor(ctx context.Context, supervisor *models.Supervisor, studentIDs []string, sessionID string, assignmentType models.AssignmentType, assignedBy *string) ([]models.SupervisorAssignment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, sessionLockKey(sessionID)); err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}

	var previous []string
	if err := tx.SelectContext(ctx, &previous, `SELECT student_id FROM supervisor_assignments WHERE supervisor_id = $1 AND session_id = $2 AND assignment_type = $3`, supervisor.ID, sessionID, assignmentType); err != nil {
		return nil, fmt.Errorf("load previous assignments: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM supervisor_assignments WHERE supervisor_id = $1 AND session_id = $2 AND assignment_type = $3`, supervisor.ID, sessionID, assignmentType); err != nil {
		return nil, fmt.Errorf("delete previous assignments: %w", err)
	}

	keep := make(map[string]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		keep[id] = struct{}{}
	}
	if assignmentType == models.AssignmentTypeSchool {
		for _, studentID := range previous {
			if _, ok := keep[studentID]; ok {
				continue
			}
			if _, err := tx.ExecContext(ctx, `UPDATE students SET supervisor_id = NULL, supervisor_name = NULL, supervisor_email = NULL, updated_at = $2 WHERE id = $1`, studentID, time.Now().UTC()); err != nil {
				return nil, fmt.Errorf("clear supervisor cache: %w", err)
			}
		}
	}

	now := time.Now().UTC()
	created := make([]models.SupervisorAssignment, 0, len(studentIDs))
	const insert = `INSERT INTO supervisor_assignments (id, student_id, supervisor_id, session_id, assignment_type, assigned_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id, session_id, assignment_type)
		DO UPDATE SET supervisor_id = EXCLUDED.supervisor_id, assigned_by = EXCLUDED.assigned_by, created_at = EXCLUDED.created_at`
	for _, studentID := range studentIDs {
		assignment := models.SupervisorAssignment{
			ID:           uuid.NewString(),
			StudentID:    studentID,
			SupervisorID: supervisor.ID,
			SessionID:    sessionID,
			Type:         assignmentType,
			AssignedBy:   assignedBy,
			CreatedAt:    now,
		}
		if _, err := tx.ExecContext(ctx, insert, assignment.ID, assignment.StudentID, assignment.SupervisorID, assignment.SessionID, assignment.Type, assignment.AssignedBy, assignment.CreatedAt); err != nil {
			return nil, fmt.Errorf("insert assignment for %s: %w", studentID, err)
		}
		if assignmentType == models.AssignmentTypeSchool {
			if err := writeSupervisorCache(ctx, tx, studentID, supervisor); err != nil {
				return nil, err
			}
		}
		created = append(created, assignment)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace tx: %w", err)
	}
	committed = true
	return created, nil
}

// ReconcileStudentCache recomputes a student's cached supervisor columns from
// the assignment table. Safety net for the write-through projection.
func (r *AssignmentRepository) ReconcileStudentCache(ctx context.Context, studentID, sessionID string) error {
	const query = `
UPDATE students st SET
	supervisor_id = src.supervisor_id,
	supervisor_name = src.full_name,
	supervisor_email = src.email,
	updated_at = $3
FROM (
	SELECT sa.student_id, sa.supervisor_id, sp.full_name, sp.email
	FROM supervisor_assignments sa
	JOIN supervisors sp ON sp.id = sa.supervisor_id
	WHERE sa.student_id = $1 AND sa.session_id = $2 AND sa.assignment_type = 'SCHOOL'
) src
WHERE st.id = src.student_id`
	result, err := r.db.ExecContext(ctx, query, studentID, sessionID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reconcile supervisor cache: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check reconcile rows: %w", err)
	}
	if affected == 0 {
		// No school assignment in this session: clear the cache instead.
		if _, err := r.db.ExecContext(ctx, `UPDATE students SET supervisor_id = NULL, supervisor_name = NULL, supervisor_email = NULL, updated_at = $2 WHERE id = $1`, studentID, time.Now().UTC()); err != nil {
			return fmt.Errorf("clear supervisor cache: %w", err)
		}
	}
	return nil
}

// Delete removes a single assignment and clears the student cache when a
// school pairing is dropped.
func (r *AssignmentRepository) Delete(ctx context.Context, assignmentID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var assignment models.SupervisorAssignment
	if err = tx.GetContext(ctx, &assignment, `SELECT id, student_id, supervisor_id, session_id, assignment_type, assigned_by, created_at FROM supervisor_assignments WHERE id = $1`, assignmentID); err != nil {
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		return fmt.Errorf("load assignment: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM supervisor_assignments WHERE id = $1`, assignmentID); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}

	if assignment.Type == models.AssignmentTypeSchool {
		if _, err = tx.ExecContext(ctx, `UPDATE students SET supervisor_id = NULL, supervisor_name = NULL, supervisor_email = NULL, updated_at = $2 WHERE id = $1`, assignment.StudentID, time.Now().UTC()); err != nil {
			return fmt.Errorf("clear supervisor cache: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete tx: %w", err)
	}
	return nil
}

func writeSupervisorCache(ctx context.Context, tx *sqlx.Tx, studentID string, supervisor *models.Supervisor) error {
	if _, err := tx.ExecContext(ctx, `UPDATE students SET supervisor_id = $2, supervisor_name = $3, supervisor_email = $4, updated_at = $5 WHERE id = $1`,
		studentID, supervisor.ID, supervisor.FullName, supervisor.Email, time.Now().UTC()); err != nil {
		return fmt.Errorf("write supervisor cache: %w", err)
	}
	return nil
}

// sessionLockKey maps a session id onto a stable advisory-lock key.
func sessionLockKey(sessionID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("assignments:" + sessionID))
	return int64(h.Sum64())
}
