package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/siwes-logbook-api/internal/models"
)

// WeekRepository persists weekly activity logs. The submission upsert and the
// review update are both conditional on status so an approved week can never
// be overwritten, no matter how requests interleave.
type WeekRepository struct {
	db *sqlx.DB
}

// NewWeekRepository constructs the repository.
func NewWeekRepository(db *sqlx.DB) *WeekRepository {
	return &WeekRepository{db: db}
}

const weekColumns = `id, student_id, week_number, monday_activity, tuesday_activity, wednesday_activity,
	thursday_activity, friday_activity, saturday_activity, comments, image_urls, start_date, end_date,
	status, submitted_at, supervisor_id, reviewed_at, review_comment, rejection_reason, grade, created_at, updated_at`

// UpsertSubmission creates or replaces a week in SUBMITTED state. The update
// arm carries a status guard so approved rows are untouched; in that case no
// row comes back and sql.ErrNoRows is returned. Resubmission after rejection
// clears every review column, including the grade.
func (r *WeekRepository) UpsertSubmission(ctx context.Context, week *models.WeekRecord) (*models.WeekRecord, error) {
	if week.ID == "" {
		week.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	week.Status = models.WeekStatusSubmitted
	week.SubmittedAt = now
	week.CreatedAt = now
	week.UpdatedAt = now

	query := fmt.Sprintf(`INSERT INTO weeks (id, student_id, week_number, monday_activity, tuesday_activity, wednesday_activity,
		thursday_activity, friday_activity, saturday_activity, comments, image_urls, start_date, end_date,
		status, submitted_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (student_id, week_number) DO UPDATE SET
		monday_activity = EXCLUDED.monday_activity,
		tuesday_activity = EXCLUDED.tuesday_activity,
		wednesday_activity = EXCLUDED.wednesday_activity,
		thursday_activity = EXCLUDED.thursday_activity,
		friday_activity = EXCLUDED.friday_activity,
		saturday_activity = EXCLUDED.saturday_activity,
		comments = EXCLUDED.comments,
		image_urls = EXCLUDED.image_urls,
		start_date = EXCLUDED.start_date,
		end_date = EXCLUDED.end_date,
		status = EXCLUDED.status,
		submitted_at = EXCLUDED.submitted_at,
		supervisor_id = NULL,
		reviewed_at = NULL,
		review_comment = NULL,
		rejection_reason = NULL,
		grade = NULL,
		updated_at = EXCLUDED.updated_at
	WHERE weeks.status <> 'APPROVED'
	RETURNING %s`, weekColumns)

	var saved models.WeekRecord
	err := r.db.GetContext(ctx, &saved, query,
		week.ID, week.StudentID, week.WeekNumber,
		week.MondayActivity, week.TuesdayActivity, week.WednesdayActivity,
		week.ThursdayActivity, week.FridayActivity, week.SaturdayActivity,
		week.Comments, week.ImageURLs, week.StartDate, week.EndDate,
		week.Status, week.SubmittedAt, week.CreatedAt, week.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// SetReview transitions a SUBMITTED week to APPROVED or REJECTED. Only weeks
// still in SUBMITTED state are eligible; sql.ErrNoRows signals the week was
// already reviewed or does not exist.
func (r *WeekRepository) SetReview(ctx context.Context, weekID, supervisorID string, status models.WeekStatus, comment, rejectionReason *string, grade *int) (*models.WeekRecord, error) {
	query := fmt.Sprintf(`UPDATE weeks SET
		status = $2, supervisor_id = $3, reviewed_at = $4, review_comment = $5, rejection_reason = $6, grade = $7, updated_at = $4
	WHERE id = $1 AND status = 'SUBMITTED'
	RETURNING %s`, weekColumns)

	var saved models.WeekRecord
	err := r.db.GetContext(ctx, &saved, query, weekID, status, supervisorID, time.Now().UTC(), comment, rejectionReason, grade)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// FindByID loads a week by identifier.
func (r *WeekRepository) FindByID(ctx context.Context, id string) (*models.WeekRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM weeks WHERE id = $1`, weekColumns)
	var week models.WeekRecord
	if err := r.db.GetContext(ctx, &week, query, id); err != nil {
		return nil, err
	}
	return &week, nil
}

// FindByStudentAndWeek loads a student's record for one week number.
func (r *WeekRepository) FindByStudentAndWeek(ctx context.Context, studentID string, weekNumber int) (*models.WeekRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM weeks WHERE student_id = $1 AND week_number = $2`, weekColumns)
	var week models.WeekRecord
	if err := r.db.GetContext(ctx, &week, query, studentID, weekNumber); err != nil {
		return nil, err
	}
	return &week, nil
}

// ListByStudent returns all of a student's weeks ordered by week number.
func (r *WeekRepository) ListByStudent(ctx context.Context, studentID string) ([]models.WeekRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM weeks WHERE student_id = $1 ORDER BY week_number ASC`, weekColumns)
	var weeks []models.WeekRecord
	if err := r.db.SelectContext(ctx, &weeks, query, studentID); err != nil {
		return nil, fmt.Errorf("list weeks by student: %w", err)
	}
	return weeks, nil
}

// PendingForSupervisor returns SUBMITTED weeks of students whose cached
// school supervisor is the given one, oldest submission first.
func (r *WeekRepository) PendingForSupervisor(ctx context.Context, supervisorID string) ([]models.WeekRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM weeks w
	JOIN students st ON st.id = w.student_id
	WHERE w.status = 'SUBMITTED' AND st.supervisor_id = $1
	ORDER BY w.submitted_at ASC`, weekColumnsAliased("w"))
	var weeks []models.WeekRecord
	if err := r.db.SelectContext(ctx, &weeks, query, supervisorID); err != nil {
		return nil, fmt.Errorf("list pending weeks: %w", err)
	}
	return weeks, nil
}

// AdminUpdate rewrites week content without the approved-status guard. Used
// only by the administrative override path.
func (r *WeekRepository) AdminUpdate(ctx context.Context, week *models.WeekRecord) (*models.WeekRecord, error) {
	week.UpdatedAt = time.Now().UTC()
	query := fmt.Sprintf(`UPDATE weeks SET
		monday_activity = $2, tuesday_activity = $3, wednesday_activity = $4, thursday_activity = $5,
		friday_activity = $6, saturday_activity = $7, comments = $8, image_urls = $9,
		start_date = $10, end_date = $11, updated_at = $12
	WHERE id = $1
	RETURNING %s`, weekColumns)

	var saved models.WeekRecord
	err := r.db.GetContext(ctx, &saved, query,
		week.ID, week.MondayActivity, week.TuesdayActivity, week.WednesdayActivity,
		week.ThursdayActivity, week.FridayActivity, week.SaturdayActivity,
		week.Comments, week.ImageURLs, week.StartDate, week.EndDate, week.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// SetStatus forces a status without the SUBMITTED precondition. Administrative
// override only; the regular review path goes through SetReview.
func (r *WeekRepository) SetStatus(ctx context.Context, weekID string, status models.WeekStatus, rejectionReason *string, grade *int) (*models.WeekRecord, error) {
	query := fmt.Sprintf(`UPDATE weeks SET status = $2, rejection_reason = $3, grade = $4, updated_at = $5
	WHERE id = $1
	RETURNING %s`, weekColumns)

	var saved models.WeekRecord
	err := r.db.GetContext(ctx, &saved, query, weekID, status, rejectionReason, grade, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// Delete hard-removes a week row.
func (r *WeekRepository) Delete(ctx context.Context, weekID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM weeks WHERE id = $1`, weekID)
	if err != nil {
		return fmt.Errorf("delete week: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func weekColumnsAliased(alias string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.student_id, %[1]s.week_number, %[1]s.monday_activity, %[1]s.tuesday_activity,
	%[1]s.wednesday_activity, %[1]s.thursday_activity, %[1]s.friday_activity, %[1]s.saturday_activity,
	%[1]s.comments, %[1]s.image_urls, %[1]s.start_date, %[1]s.end_date, %[1]s.status, %[1]s.submitted_at,
	%[1]s.supervisor_id, %[1]s.reviewed_at, %[1]s.review_comment, %[1]s.rejection_reason, %[1]s.grade,
	%[1]s.created_at, %[1]s.updated_at`, alias)
}
