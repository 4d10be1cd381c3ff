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

func TestSessionRepositoryFindCurrent(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "is_current", "created_at", "updated_at"}).
		AddRow("session-1", "2025/2026", true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, is_current, created_at, updated_at FROM academic_sessions WHERE is_current = TRUE LIMIT 1")).
		WillReturnRows(rows)

	session, err := repo.FindCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025/2026", session.Name)
	assert.True(t, session.IsCurrent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFindCurrentNone(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery("SELECT id, name, is_current").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindCurrent(context.Background())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositorySetCurrent(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE academic_sessions SET is_current = FALSE").
		WithArgs(sqlmock.AnyArg(), "session-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("UPDATE academic_sessions SET is_current = TRUE").
		WithArgs("session-2", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("session-2"))
	mock.ExpectCommit()

	require.NoError(t, repo.SetCurrent(context.Background(), "session-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositorySetCurrentMissing(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE academic_sessions SET is_current = FALSE").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("UPDATE academic_sessions SET is_current = TRUE").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.SetCurrent(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec("INSERT INTO academic_sessions").
		WillReturnResult(sqlmock.NewResult(1, 1))

	session := &models.AcademicSession{Name: "2026/2027"}
	require.NoError(t, repo.Create(context.Background(), session))
	assert.NotEmpty(t, session.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
