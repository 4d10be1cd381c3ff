package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/siwes-logbook-api/internal/models"
)

func supervisorRowsForAssign(id, name, email string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "full_name", "email", "phone", "type", "active", "created_at", "updated_at"}).
		AddRow(id, nil, name, email, "", models.SupervisorTypeSchool, true, time.Now(), time.Now())
}

func TestAssignmentRepositoryAssignLeastLoaded(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id, student_id, supervisor_id").
		WithArgs("student-1", "session-1", models.AssignmentTypeSchool).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("ORDER BY COUNT\\(sa.id\\) ASC").
		WithArgs("session-1", models.AssignmentTypeSchool).
		WillReturnRows(supervisorRowsForAssign("sup-1", "Dr. Ade", "ade@school.edu"))
	mock.ExpectExec("INSERT INTO supervisor_assignments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE students SET supervisor_id").
		WithArgs("student-1", "sup-1", "Dr. Ade", "ade@school.edu", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	assignment, supervisor, created, err := repo.AssignLeastLoaded(context.Background(), "student-1", "session-1", nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "sup-1", assignment.SupervisorID)
	assert.Equal(t, "sup-1", supervisor.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryAssignLeastLoadedReturnsExisting(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	existing := sqlmock.NewRows([]string{"id", "student_id", "supervisor_id", "session_id", "assignment_type", "assigned_by", "created_at"}).
		AddRow("assign-1", "student-1", "sup-1", "session-1", models.AssignmentTypeSchool, nil, time.Now())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id, student_id, supervisor_id").
		WithArgs("student-1", "session-1", models.AssignmentTypeSchool).
		WillReturnRows(existing)
	mock.ExpectQuery("SELECT (.+) FROM supervisors WHERE id").
		WithArgs("sup-1").
		WillReturnRows(supervisorRowsForAssign("sup-1", "Dr. Ade", "ade@school.edu"))
	mock.ExpectCommit()

	assignment, supervisor, created, err := repo.AssignLeastLoaded(context.Background(), "student-1", "session-1", nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "assign-1", assignment.ID)
	assert.Equal(t, "sup-1", supervisor.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryAssignLeastLoadedEmptyPool(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id, student_id, supervisor_id").
		WithArgs("student-1", "session-1", models.AssignmentTypeSchool).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("ORDER BY COUNT\\(sa.id\\) ASC").
		WithArgs("session-1", models.AssignmentTypeSchool).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, _, _, err := repo.AssignLeastLoaded(context.Background(), "student-1", "session-1", nil)
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCreateWithCache(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	supervisor := &models.Supervisor{ID: "sup-1", FullName: "Dr. Ade", Email: "ade@school.edu"}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO supervisor_assignments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE students SET supervisor_id").
		WithArgs("student-1", "sup-1", "Dr. Ade", "ade@school.edu", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.CreateWithCache(context.Background(), &models.SupervisorAssignment{
		StudentID:    "student-1",
		SupervisorID: "sup-1",
		SessionID:    "session-1",
		Type:         models.AssignmentTypeSchool,
	}, supervisor)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCreateIndustrySkipsCache(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO supervisor_assignments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.CreateWithCache(context.Background(), &models.SupervisorAssignment{
		StudentID:    "student-1",
		SupervisorID: "sup-2",
		SessionID:    "session-1",
		Type:         models.AssignmentTypeIndustry,
	}, &models.Supervisor{ID: "sup-2"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryReplaceForSupervisor(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	supervisor := &models.Supervisor{ID: "sup-1", FullName: "Dr. Ade", Email: "ade@school.edu"}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT student_id FROM supervisor_assignments").
		WithArgs("sup-1", "session-1", models.AssignmentTypeSchool).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("s1").AddRow("s2"))
	mock.ExpectExec("DELETE FROM supervisor_assignments").
		WithArgs("sup-1", "session-1", models.AssignmentTypeSchool).
		WillReturnResult(sqlmock.NewResult(0, 2))
	// s1 drops out of the new list, so its cache is cleared.
	mock.ExpectExec("UPDATE students SET supervisor_id = NULL").
		WithArgs("s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	for range []string{"s2", "s3"} {
		mock.ExpectExec("INSERT INTO supervisor_assignments").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE students SET supervisor_id").
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	created, err := repo.ReplaceForSupervisor(context.Background(), supervisor, []string{"s2", "s3"}, "session-1", models.AssignmentTypeSchool, nil)
	require.NoError(t, err)
	assert.Len(t, created, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCountBySupervisor(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM supervisor_assignments WHERE supervisor_id = $1 AND session_id = $2 AND assignment_type = $3")).
		WithArgs("sup-1", "session-1", models.AssignmentTypeSchool).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountBySupervisor(context.Background(), "sup-1", "session-1", models.AssignmentTypeSchool)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryDeleteClearsSchoolCache(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "supervisor_id", "session_id", "assignment_type", "assigned_by", "created_at"}).
		AddRow("assign-1", "student-1", "sup-1", "session-1", models.AssignmentTypeSchool, nil, time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, student_id, supervisor_id").
		WithArgs("assign-1").
		WillReturnRows(rows)
	mock.ExpectExec("DELETE FROM supervisor_assignments WHERE id = \\$1").
		WithArgs("assign-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE students SET supervisor_id = NULL").
		WithArgs("student-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "assign-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
