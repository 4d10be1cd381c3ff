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

type attendanceRepoStub struct {
	mu      sync.Mutex
	records map[string]*models.AttendanceRecord
	nextID  int
}

func newAttendanceRepoStub() *attendanceRepoStub {
	return &attendanceRepoStub{records: map[string]*models.AttendanceRecord{}}
}

func attKey(studentID string, date time.Time) string {
	return studentID + "|" + date.Format("2006-01-02")
}

func (s *attendanceRepoStub) CheckIn(_ context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attKey(record.StudentID, record.Date)
	if _, ok := s.records[key]; ok {
		return nil, sql.ErrNoRows
	}
	s.nextID++
	stored := *record
	stored.ID = fmt.Sprintf("att-%d", s.nextID)
	s.records[key] = &stored
	cp := stored
	return &cp, nil
}

func (s *attendanceRepoStub) CheckOut(_ context.Context, studentID string, date time.Time, checkOut time.Time) (*models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[attKey(studentID, date)]
	if !ok || record.CheckOutTime != nil {
		return nil, sql.ErrNoRows
	}
	record.CheckOutTime = &checkOut
	cp := *record
	return &cp, nil
}

func (s *attendanceRepoStub) FindByStudentAndDate(_ context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[attKey(studentID, date)]; ok {
		cp := *record
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *attendanceRepoStub) HistoryForStudent(_ context.Context, studentID string, from, to time.Time) ([]models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AttendanceRecord
	for _, record := range s.records {
		if record.StudentID == studentID && !record.Date.Before(from) && !record.Date.After(to) {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (s *attendanceRepoStub) SummaryForStudents(_ context.Context, supervisorID string, today time.Time) ([]models.AttendanceSummaryRow, error) {
	return []models.AttendanceSummaryRow{{StudentID: "student-1", TotalDays: 1}}, nil
}

type cacheStub struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
	hits    int
	deletes int
}

func newCacheStub() *cacheStub {
	return &cacheStub{entries: map[string][]byte{}}
}

func (c *cacheStub) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		c.hits++
		// The summary test only counts lookups; no payload decode needed.
		return nil
	}
	return appErrors.ErrCacheMiss
}

func (c *cacheStub) Set(_ context.Context, key string, _ interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = []byte("x")
	c.sets++
	return nil
}

func (c *cacheStub) DeleteByPattern(_ context.Context, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string][]byte{}
	c.deletes++
	return nil
}

func newAttendanceFixture(cache attendanceCache) (*AttendanceService, *attendanceRepoStub) {
	students := newStudentReaderStub(&models.Student{
		ID:           "student-1",
		UserID:       strPtr("user-student-1"),
		SupervisorID: strPtr("sup-1"),
	})
	assignments := &assignmentRepoStub{students: students}
	supervisors := newSupervisorReaderStub(assignments, &models.Supervisor{
		ID:     "sup-1",
		UserID: strPtr("user-sup-1"),
		Type:   models.SupervisorTypeSchool,
		Active: true,
	})
	repo := newAttendanceRepoStub()
	svc := NewAttendanceService(repo, students, supervisors, cache, time.Minute, validator.New(), zap.NewNop())
	return svc, repo
}

func TestAttendanceServiceCheckInOnce(t *testing.T) {
	svc, _ := newAttendanceFixture(nil)

	record, err := svc.CheckIn(context.Background(), "user-student-1", CheckInRequest{})
	require.NoError(t, err)
	assert.NotNil(t, record.CheckInTime)
	assert.Nil(t, record.CheckOutTime)

	_, err = svc.CheckIn(context.Background(), "user-student-1", CheckInRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateCheckIn.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceCheckOutRequiresCheckIn(t *testing.T) {
	svc, _ := newAttendanceFixture(nil)

	_, err := svc.CheckOut(context.Background(), "user-student-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceCheckOutOnce(t *testing.T) {
	svc, _ := newAttendanceFixture(nil)

	_, err := svc.CheckIn(context.Background(), "user-student-1", CheckInRequest{})
	require.NoError(t, err)

	record, err := svc.CheckOut(context.Background(), "user-student-1")
	require.NoError(t, err)
	assert.NotNil(t, record.CheckOutTime)

	_, err = svc.CheckOut(context.Background(), "user-student-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateCheckOut.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceTodayStatusTransitions(t *testing.T) {
	svc, _ := newAttendanceFixture(nil)

	_, status, err := svc.Today(context.Background(), "user-student-1")
	require.NoError(t, err)
	assert.Equal(t, models.DayStatusAbsent, status)

	_, err = svc.CheckIn(context.Background(), "user-student-1", CheckInRequest{})
	require.NoError(t, err)
	_, status, err = svc.Today(context.Background(), "user-student-1")
	require.NoError(t, err)
	assert.Equal(t, models.DayStatusInProgress, status)

	_, err = svc.CheckOut(context.Background(), "user-student-1")
	require.NoError(t, err)
	_, status, err = svc.Today(context.Background(), "user-student-1")
	require.NoError(t, err)
	assert.Equal(t, models.DayStatusComplete, status)
}

func TestAttendanceServiceCheckInValidatesCoordinates(t *testing.T) {
	svc, _ := newAttendanceFixture(nil)

	lat := 120.0
	_, err := svc.CheckIn(context.Background(), "user-student-1", CheckInRequest{Latitude: &lat})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceSummaryUsesCache(t *testing.T) {
	cache := newCacheStub()
	svc, _ := newAttendanceFixture(cache)

	_, err := svc.SummaryForSupervisor(context.Background(), "user-sup-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	_, err = svc.SummaryForSupervisor(context.Background(), "user-sup-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, 1, cache.sets, "second call must be served from cache")
}

func TestAttendanceServiceCheckInInvalidatesSummary(t *testing.T) {
	cache := newCacheStub()
	svc, _ := newAttendanceFixture(cache)

	_, err := svc.SummaryForSupervisor(context.Background(), "user-sup-1")
	require.NoError(t, err)

	_, err = svc.CheckIn(context.Background(), "user-student-1", CheckInRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.deletes)
}

func TestAttendanceServiceHistoryRangeValidation(t *testing.T) {
	svc, _ := newAttendanceFixture(nil)

	from := time.Now().UTC()
	to := from.AddDate(0, 0, -7)
	_, err := svc.HistoryForStudent(context.Background(), "student-1", &from, &to)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
