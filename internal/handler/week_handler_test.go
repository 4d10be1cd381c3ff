package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/siwes-logbook-api/internal/middleware"
	"github.com/noah-isme/siwes-logbook-api/internal/models"
	"github.com/noah-isme/siwes-logbook-api/internal/service"
)

type fakeWeekRepo struct {
	weeks  map[string]*models.WeekRecord
	nextID int
}

func newFakeWeekRepo() *fakeWeekRepo {
	return &fakeWeekRepo{weeks: map[string]*models.WeekRecord{}}
}

func (f *fakeWeekRepo) UpsertSubmission(_ context.Context, week *models.WeekRecord) (*models.WeekRecord, error) {
	week.Status = models.WeekStatusSubmitted
	week.SubmittedAt = time.Now().UTC()
	for _, existing := range f.weeks {
		if existing.StudentID == week.StudentID && existing.WeekNumber == week.WeekNumber {
			if existing.Status == models.WeekStatusApproved {
				return nil, sql.ErrNoRows
			}
			week.ID = existing.ID
			stored := *week
			f.weeks[existing.ID] = &stored
			cp := stored
			return &cp, nil
		}
	}
	f.nextID++
	week.ID = fmt.Sprintf("week-%d", f.nextID)
	stored := *week
	f.weeks[week.ID] = &stored
	cp := stored
	return &cp, nil
}

func (f *fakeWeekRepo) SetReview(_ context.Context, weekID, supervisorID string, status models.WeekStatus, comment, rejectionReason *string, grade *int) (*models.WeekRecord, error) {
	week, ok := f.weeks[weekID]
	if !ok || week.Status != models.WeekStatusSubmitted {
		return nil, sql.ErrNoRows
	}
	week.Status = status
	week.SupervisorID = &supervisorID
	week.ReviewComment = comment
	week.RejectionReason = rejectionReason
	week.Grade = grade
	cp := *week
	return &cp, nil
}

func (f *fakeWeekRepo) FindByID(_ context.Context, id string) (*models.WeekRecord, error) {
	week, ok := f.weeks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *week
	return &cp, nil
}

func (f *fakeWeekRepo) FindByStudentAndWeek(_ context.Context, studentID string, weekNumber int) (*models.WeekRecord, error) {
	for _, week := range f.weeks {
		if week.StudentID == studentID && week.WeekNumber == weekNumber {
			cp := *week
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeWeekRepo) ListByStudent(_ context.Context, studentID string) ([]models.WeekRecord, error) {
	var out []models.WeekRecord
	for _, week := range f.weeks {
		if week.StudentID == studentID {
			out = append(out, *week)
		}
	}
	return out, nil
}

func (f *fakeWeekRepo) PendingForSupervisor(_ context.Context, supervisorID string) ([]models.WeekRecord, error) {
	return nil, nil
}

func (f *fakeWeekRepo) AdminUpdate(_ context.Context, week *models.WeekRecord) (*models.WeekRecord, error) {
	cp := *week
	return &cp, nil
}

func (f *fakeWeekRepo) SetStatus(_ context.Context, weekID string, status models.WeekStatus, rejectionReason *string, grade *int) (*models.WeekRecord, error) {
	week, ok := f.weeks[weekID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	week.Status = status
	cp := *week
	return &cp, nil
}

func (f *fakeWeekRepo) Delete(_ context.Context, weekID string) error {
	if _, ok := f.weeks[weekID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.weeks, weekID)
	return nil
}

type fakeStudentReader struct {
	student *models.Student
}

func (f *fakeStudentReader) FindByID(_ context.Context, id string) (*models.Student, error) {
	if f.student == nil || f.student.ID != id {
		return nil, sql.ErrNoRows
	}
	cp := *f.student
	return &cp, nil
}

func (f *fakeStudentReader) FindByUserID(_ context.Context, userID string) (*models.Student, error) {
	if f.student == nil || f.student.UserID == nil || *f.student.UserID != userID {
		return nil, sql.ErrNoRows
	}
	cp := *f.student
	return &cp, nil
}

type fakeSupervisorReader struct {
	supervisor *models.Supervisor
}

func (f *fakeSupervisorReader) FindByID(_ context.Context, id string) (*models.Supervisor, error) {
	if f.supervisor == nil || f.supervisor.ID != id {
		return nil, sql.ErrNoRows
	}
	cp := *f.supervisor
	return &cp, nil
}

func (f *fakeSupervisorReader) FindByUserID(_ context.Context, userID string) (*models.Supervisor, error) {
	if f.supervisor == nil || f.supervisor.UserID == nil || *f.supervisor.UserID != userID {
		return nil, sql.ErrNoRows
	}
	cp := *f.supervisor
	return &cp, nil
}

func newWeekHandlerFixture() (*WeekHandler, *fakeWeekRepo) {
	userID := "user-student-1"
	supervisorID := "sup-1"
	placement := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	students := &fakeStudentReader{student: &models.Student{
		ID:             "student-1",
		UserID:         &userID,
		SupervisorID:   &supervisorID,
		PlacementStart: &placement,
	}}
	supUserID := "user-sup-1"
	supervisors := &fakeSupervisorReader{supervisor: &models.Supervisor{
		ID:     "sup-1",
		UserID: &supUserID,
		Type:   models.SupervisorTypeSchool,
		Active: true,
	}}
	repo := newFakeWeekRepo()
	svc := service.NewWeekService(repo, students, supervisors, nil, nil, nil)
	return NewWeekHandler(svc), repo
}

func authedContext(t *testing.T, rec *httptest.ResponseRecorder, method, target string, payload interface{}, userID string, role models.UserRole) *gin.Context {
	t.Helper()
	c, _ := gin.CreateTestContext(rec)

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}
	c.Request = httptest.NewRequest(method, target, body)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: role})
	return c
}

func submissionPayload(week int) service.SubmitWeekRequest {
	return service.SubmitWeekRequest{
		WeekNumber:        week,
		MondayActivity:    "orientation",
		TuesdayActivity:   "setup",
		WednesdayActivity: "shadowing",
		ThursdayActivity:  "drafting",
		FridayActivity:    "review",
		SaturdayActivity:  "reading",
	}
}

func TestWeekHandlerSubmitCreated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newWeekHandlerFixture()

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, http.MethodPost, "/weeks", submissionPayload(1), "user-student-1", models.RoleStudent)

	handler.Submit(c)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var envelope struct {
		Data models.WeekRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, models.WeekStatusSubmitted, envelope.Data.Status)
	assert.Equal(t, "student-1", envelope.Data.StudentID)
}

func TestWeekHandlerSubmitRejectsMissingDays(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newWeekHandlerFixture()

	payload := submissionPayload(1)
	payload.FridayActivity = ""
	rec := httptest.NewRecorder()
	c := authedContext(t, rec, http.MethodPost, "/weeks", payload, "user-student-1", models.RoleStudent)

	handler.Submit(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeekHandlerSubmitWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newWeekHandlerFixture()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	raw, _ := json.Marshal(submissionPayload(1))
	c.Request = httptest.NewRequest(http.MethodPost, "/weeks", bytes.NewBuffer(raw))

	handler.Submit(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWeekHandlerApprovedWeekConflicts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo := newWeekHandlerFixture()

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, http.MethodPost, "/weeks", submissionPayload(2), "user-student-1", models.RoleStudent)
	handler.Submit(c)
	require.Equal(t, http.StatusCreated, rec.Code)

	for _, week := range repo.weeks {
		week.Status = models.WeekStatusApproved
	}

	rec = httptest.NewRecorder()
	c = authedContext(t, rec, http.MethodPost, "/weeks", submissionPayload(2), "user-student-1", models.RoleStudent)
	handler.Submit(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestWeekHandlerReviewFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo := newWeekHandlerFixture()

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, http.MethodPost, "/weeks", submissionPayload(3), "user-student-1", models.RoleStudent)
	handler.Submit(c)
	require.Equal(t, http.StatusCreated, rec.Code)

	var weekID string
	for id := range repo.weeks {
		weekID = id
	}

	grade := 80
	rec = httptest.NewRecorder()
	c = authedContext(t, rec, http.MethodPost, "/weeks/"+weekID+"/review", service.ReviewWeekRequest{
		Status: string(models.WeekStatusApproved),
		Grade:  &grade,
	}, "user-sup-1", models.RoleSupervisor)
	c.Params = gin.Params{{Key: "id", Value: weekID}}

	handler.Review(c)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var envelope struct {
		Data models.WeekRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, models.WeekStatusApproved, envelope.Data.Status)
	require.NotNil(t, envelope.Data.Grade)
	assert.Equal(t, 80, *envelope.Data.Grade)
}
