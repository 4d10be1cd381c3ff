package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/siwes-logbook-api/internal/models"
)

func newRepositoryMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func weekRows(status models.WeekStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "student_id", "week_number", "monday_activity", "tuesday_activity", "wednesday_activity",
		"thursday_activity", "friday_activity", "saturday_activity", "comments", "image_urls",
		"start_date", "end_date", "status", "submitted_at", "supervisor_id", "reviewed_at",
		"review_comment", "rejection_reason", "grade", "created_at", "updated_at",
	}).AddRow(
		"week-1", "student-1", 3, "mon", "tue", "wed", "thu", "fri", "sat", "", pq.StringArray{},
		nil, nil, status, now, nil, nil, nil, nil, nil, now, now,
	)
}

func TestWeekRepositoryUpsertSubmission(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewWeekRepository(db)

	mock.ExpectQuery("INSERT INTO weeks").
		WillReturnRows(weekRows(models.WeekStatusSubmitted))

	saved, err := repo.UpsertSubmission(context.Background(), &models.WeekRecord{
		StudentID:      "student-1",
		WeekNumber:     3,
		MondayActivity: "mon",
	})
	require.NoError(t, err)
	assert.Equal(t, models.WeekStatusSubmitted, saved.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWeekRepositoryUpsertSubmissionApprovedRowUntouched(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewWeekRepository(db)

	// The conflict arm's status guard filters the row, so nothing is returned.
	mock.ExpectQuery("INSERT INTO weeks").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.UpsertSubmission(context.Background(), &models.WeekRecord{
		StudentID:  "student-1",
		WeekNumber: 3,
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWeekRepositorySetReview(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewWeekRepository(db)

	mock.ExpectQuery("UPDATE weeks SET").
		WithArgs("week-1", models.WeekStatusApproved, "supervisor-1", sqlmock.AnyArg(), sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
		WillReturnRows(weekRows(models.WeekStatusApproved))

	comment := "good work"
	grade := 85
	saved, err := repo.SetReview(context.Background(), "week-1", "supervisor-1", models.WeekStatusApproved, &comment, nil, &grade)
	require.NoError(t, err)
	assert.Equal(t, models.WeekStatusApproved, saved.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWeekRepositorySetReviewAlreadyReviewed(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewWeekRepository(db)

	mock.ExpectQuery("UPDATE weeks SET").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.SetReview(context.Background(), "week-1", "supervisor-1", models.WeekStatusRejected, nil, nil, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWeekRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewWeekRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM weeks WHERE student_id = \\$1 ORDER BY week_number ASC").
		WithArgs("student-1").
		WillReturnRows(weekRows(models.WeekStatusSubmitted))

	weeks, err := repo.ListByStudent(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Len(t, weeks, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWeekRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewWeekRepository(db)

	mock.ExpectExec("DELETE FROM weeks WHERE id = \\$1").
		WithArgs("week-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "week-9")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
