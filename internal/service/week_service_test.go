package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/siwes-logbook-api/internal/models"
	appErrors "github.com/noah-isme/siwes-logbook-api/pkg/errors"
)

// weekRepoStub mirrors the conditional-write semantics of the real
// repository: approved rows reject the submission upsert, and reviews only
// land on SUBMITTED rows.
type weekRepoStub struct {
	mu     sync.Mutex
	weeks  map[string]*models.WeekRecord
	nextID int
}

func newWeekRepoStub() *weekRepoStub {
	return &weekRepoStub{weeks: map[string]*models.WeekRecord{}}
}

func weekKey(studentID string, weekNumber int) string {
	return fmt.Sprintf("%s|%d", studentID, weekNumber)
}

func (s *weekRepoStub) UpsertSubmission(_ context.Context, week *models.WeekRecord) (*models.WeekRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := weekKey(week.StudentID, week.WeekNumber)
	now := time.Now().UTC()
	if existing, ok := s.weeks[key]; ok {
		if existing.Status == models.WeekStatusApproved {
			return nil, sql.ErrNoRows
		}
		existing.MondayActivity = week.MondayActivity
		existing.TuesdayActivity = week.TuesdayActivity
		existing.WednesdayActivity = week.WednesdayActivity
		existing.ThursdayActivity = week.ThursdayActivity
		existing.FridayActivity = week.FridayActivity
		existing.SaturdayActivity = week.SaturdayActivity
		existing.Comments = week.Comments
		existing.ImageURLs = week.ImageURLs
		existing.Status = models.WeekStatusSubmitted
		existing.SubmittedAt = now
		existing.SupervisorID = nil
		existing.ReviewedAt = nil
		existing.ReviewComment = nil
		existing.RejectionReason = nil
		existing.Grade = nil
		cp := *existing
		return &cp, nil
	}
	s.nextID++
	stored := *week
	stored.ID = fmt.Sprintf("week-%d", s.nextID)
	stored.Status = models.WeekStatusSubmitted
	stored.SubmittedAt = now
	s.weeks[key] = &stored
	cp := stored
	return &cp, nil
}

func (s *weekRepoStub) SetReview(_ context.Context, weekID, supervisorID string, status models.WeekStatus, comment, rejectionReason *string, grade *int) (*models.WeekRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, week := range s.weeks {
		if week.ID != weekID {
			continue
		}
		if week.Status != models.WeekStatusSubmitted {
			return nil, sql.ErrNoRows
		}
		now := time.Now().UTC()
		week.Status = status
		week.SupervisorID = &supervisorID
		week.ReviewedAt = &now
		week.ReviewComment = comment
		week.RejectionReason = rejectionReason
		week.Grade = grade
		cp := *week
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *weekRepoStub) FindByID(_ context.Context, id string) (*models.WeekRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, week := range s.weeks {
		if week.ID == id {
			cp := *week
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *weekRepoStub) FindByStudentAndWeek(_ context.Context, studentID string, weekNumber int) (*models.WeekRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if week, ok := s.weeks[weekKey(studentID, weekNumber)]; ok {
		cp := *week
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *weekRepoStub) ListByStudent(_ context.Context, studentID string) ([]models.WeekRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WeekRecord
	for _, week := range s.weeks {
		if week.StudentID == studentID {
			out = append(out, *week)
		}
	}
	return out, nil
}

func (s *weekRepoStub) PendingForSupervisor(context.Context, string) ([]models.WeekRecord, error) {
	return nil, nil
}

func (s *weekRepoStub) AdminUpdate(_ context.Context, week *models.WeekRecord) (*models.WeekRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.weeks[weekKey(week.StudentID, week.WeekNumber)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	*stored = *week
	cp := *stored
	return &cp, nil
}

func (s *weekRepoStub) SetStatus(_ context.Context, weekID string, status models.WeekStatus, rejectionReason *string, grade *int) (*models.WeekRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, week := range s.weeks {
		if week.ID == weekID {
			week.Status = status
			week.RejectionReason = rejectionReason
			week.Grade = grade
			cp := *week
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *weekRepoStub) Delete(_ context.Context, weekID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, week := range s.weeks {
		if week.ID == weekID {
			delete(s.weeks, key)
			return nil
		}
	}
	return sql.ErrNoRows
}

func strPtr(v string) *string { return &v }

func newWeekFixture() (*WeekService, *weekRepoStub, *sinkStub) {
	placement := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	students := newStudentReaderStub(&models.Student{
		ID:             "student-1",
		UserID:         strPtr("user-student-1"),
		MatricNo:       "ENG/2024/001",
		PlacementStart: &placement,
		SupervisorID:   strPtr("sup-1"),
	})
	assignments := &assignmentRepoStub{students: students}
	supervisors := newSupervisorReaderStub(assignments, &models.Supervisor{
		ID:     "sup-1",
		UserID: strPtr("user-sup-1"),
		Type:   models.SupervisorTypeSchool,
		Active: true,
	})
	weeks := newWeekRepoStub()
	sink := &sinkStub{}
	svc := NewWeekService(weeks, students, supervisors, sink, validator.New(), zap.NewNop())
	return svc, weeks, sink
}

func fullSubmission(weekNumber int) SubmitWeekRequest {
	return SubmitWeekRequest{
		WeekNumber:        weekNumber,
		MondayActivity:    "sized pump impellers",
		TuesdayActivity:   "workshop safety briefing",
		WednesdayActivity: "valve maintenance",
		ThursdayActivity:  "site inspection",
		FridayActivity:    "report drafting",
		SaturdayActivity:  "inventory count",
		Comments:          "steady week",
	}
}

func TestWeekServiceSubmitRejectsOutOfRangeWeek(t *testing.T) {
	svc, _, _ := newWeekFixture()

	for _, weekNumber := range []int{0, -3, 25, 120} {
		_, err := svc.Submit(context.Background(), "user-student-1", fullSubmission(weekNumber))
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code, "week %d", weekNumber)
	}
}

func TestWeekServiceSubmitRequiresAllDayFields(t *testing.T) {
	svc, _, _ := newWeekFixture()

	req := fullSubmission(2)
	req.ThursdayActivity = ""
	_, err := svc.Submit(context.Background(), "user-student-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestWeekServiceSubmitDerivesWeekDates(t *testing.T) {
	svc, _, sink := newWeekFixture()

	saved, err := svc.Submit(context.Background(), "user-student-1", fullSubmission(3))
	require.NoError(t, err)
	require.NotNil(t, saved.StartDate)
	require.NotNil(t, saved.EndDate)
	assert.Equal(t, time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC), *saved.StartDate)
	assert.Equal(t, time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC), *saved.EndDate)
	assert.Equal(t, []string{models.EventWeekSubmitted}, sink.eventTypes())
}

func TestWeekServiceApprovedWeekIsImmutable(t *testing.T) {
	svc, _, _ := newWeekFixture()

	saved, err := svc.Submit(context.Background(), "user-student-1", fullSubmission(5))
	require.NoError(t, err)

	grade := 85
	reviewed, err := svc.Review(context.Background(), "user-sup-1", saved.ID, ReviewWeekRequest{
		Status: "APPROVED",
		Grade:  &grade,
	})
	require.NoError(t, err)
	assert.Equal(t, models.WeekStatusApproved, reviewed.Status)
	require.NotNil(t, reviewed.Grade)
	assert.Equal(t, 85, *reviewed.Grade)

	_, err = svc.Submit(context.Background(), "user-student-1", fullSubmission(5))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrImmutableRecord.Code, appErrors.FromError(err).Code)
}

func TestWeekServiceResubmitAfterRejectionClearsVerdict(t *testing.T) {
	svc, _, _ := newWeekFixture()

	saved, err := svc.Submit(context.Background(), "user-student-1", fullSubmission(7))
	require.NoError(t, err)

	rejected, err := svc.Review(context.Background(), "user-sup-1", saved.ID, ReviewWeekRequest{
		Status:          "REJECTED",
		RejectionReason: strPtr("entries too vague"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.WeekStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)

	resubmitted, err := svc.Submit(context.Background(), "user-student-1", fullSubmission(7))
	require.NoError(t, err)
	assert.Equal(t, models.WeekStatusSubmitted, resubmitted.Status)
	assert.Nil(t, resubmitted.RejectionReason)
	assert.Nil(t, resubmitted.ReviewComment)
	assert.Nil(t, resubmitted.Grade)
	assert.Nil(t, resubmitted.ReviewedAt)
	assert.Nil(t, resubmitted.SupervisorID)
}

func TestWeekServiceReviewRequiresRejectionReason(t *testing.T) {
	svc, _, _ := newWeekFixture()

	saved, err := svc.Submit(context.Background(), "user-student-1", fullSubmission(2))
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), "user-sup-1", saved.ID, ReviewWeekRequest{Status: "REJECTED"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestWeekServiceReviewByUnassignedSupervisorForbidden(t *testing.T) {
	placement := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	students := newStudentReaderStub(&models.Student{
		ID:             "student-1",
		UserID:         strPtr("user-student-1"),
		PlacementStart: &placement,
		SupervisorID:   strPtr("sup-1"),
	})
	assignments := &assignmentRepoStub{students: students}
	supervisors := newSupervisorReaderStub(assignments,
		&models.Supervisor{ID: "sup-1", UserID: strPtr("user-sup-1"), Type: models.SupervisorTypeSchool, Active: true},
		&models.Supervisor{ID: "sup-2", UserID: strPtr("user-sup-2"), Type: models.SupervisorTypeSchool, Active: true},
	)
	svc := NewWeekService(newWeekRepoStub(), students, supervisors, &sinkStub{}, validator.New(), zap.NewNop())

	saved, err := svc.Submit(context.Background(), "user-student-1", fullSubmission(1))
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), "user-sup-2", saved.ID, ReviewWeekRequest{Status: "APPROVED"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestWeekServiceReviewAlreadyReviewedConflicts(t *testing.T) {
	svc, _, _ := newWeekFixture()

	saved, err := svc.Submit(context.Background(), "user-student-1", fullSubmission(9))
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), "user-sup-1", saved.ID, ReviewWeekRequest{
		Status:          "REJECTED",
		RejectionReason: strPtr("incomplete"),
	})
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), "user-sup-1", saved.ID, ReviewWeekRequest{
		Status:          "REJECTED",
		RejectionReason: strPtr("again"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestWeekServiceSubmitLockedStudentForbidden(t *testing.T) {
	students := newStudentReaderStub(&models.Student{
		ID:     "student-1",
		UserID: strPtr("user-student-1"),
		Locked: true,
	})
	assignments := &assignmentRepoStub{students: students}
	supervisors := newSupervisorReaderStub(assignments)
	svc := NewWeekService(newWeekRepoStub(), students, supervisors, &sinkStub{}, validator.New(), zap.NewNop())

	_, err := svc.Submit(context.Background(), "user-student-1", fullSubmission(1))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestWeekServiceLifecycleSubmitApproveResubmit(t *testing.T) {
	svc, _, sink := newWeekFixture()

	saved, err := svc.Submit(context.Background(), "user-student-1", fullSubmission(4))
	require.NoError(t, err)

	grade := 85
	reviewed, err := svc.Review(context.Background(), "user-sup-1", saved.ID, ReviewWeekRequest{
		Status:        "APPROVED",
		ReviewComment: strPtr("well documented"),
		Grade:         &grade,
	})
	require.NoError(t, err)
	require.NotNil(t, reviewed.Grade)
	assert.Equal(t, 85, *reviewed.Grade)

	_, err = svc.Submit(context.Background(), "user-student-1", fullSubmission(4))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrImmutableRecord.Code, appErrors.FromError(err).Code)

	assert.Equal(t, []string{models.EventWeekSubmitted, models.EventWeekReviewed}, sink.eventTypes())
}
