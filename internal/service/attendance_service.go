package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/siwes-logbook-api/internal/models"
	appErrors "github.com/noah-isme/siwes-logbook-api/pkg/errors"
)

type attendanceRepository interface {
	CheckIn(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	CheckOut(ctx context.Context, studentID string, date time.Time, checkOut time.Time) (*models.AttendanceRecord, error)
	FindByStudentAndDate(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error)
	HistoryForStudent(ctx context.Context, studentID string, from, to time.Time) ([]models.AttendanceRecord, error)
	SummaryForStudents(ctx context.Context, supervisorID string, today time.Time) ([]models.AttendanceSummaryRow, error)
}

type attendanceCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// AttendanceService manages the daily check-in/check-out ledger and the
// supervisor dashboard aggregate.
type AttendanceService struct {
	attendanceRepo attendanceRepository
	studentRepo    weekStudentReader
	supervisorRepo weekSupervisorReader
	cache          attendanceCache
	summaryTTL     time.Duration
	validator      *validator.Validate
	logger         *zap.Logger
}

// NewAttendanceService constructs the attendance service. cache may be nil.
func NewAttendanceService(attendance attendanceRepository, students weekStudentReader, supervisors weekSupervisorReader, cache attendanceCache, summaryTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if summaryTTL <= 0 {
		summaryTTL = 2 * time.Minute
	}
	return &AttendanceService{
		attendanceRepo: attendance,
		studentRepo:    students,
		supervisorRepo: supervisors,
		cache:          cache,
		summaryTTL:     summaryTTL,
		validator:      validate,
		logger:         logger,
	}
}

// CheckInRequest carries optional geolocation captured by the client.
type CheckInRequest struct {
	Latitude  *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CheckIn records today's arrival for the student behind the account. A
// second check-in on the same date is rejected; the original timestamp wins.
func (s *AttendanceService) CheckIn(ctx context.Context, userID string, req CheckInRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-in payload")
	}
	student, err := s.studentRepo.FindByUserID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	now := time.Now().UTC()
	record := &models.AttendanceRecord{
		StudentID:   student.ID,
		Date:        dateOnly(now),
		CheckInTime: &now,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	}
	saved, err := s.attendanceRepo.CheckIn(ctx, record)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrDuplicateCheckIn
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record check-in")
	}

	s.invalidateSummary(ctx, student.SupervisorID)
	return saved, nil
}

// CheckOut stamps today's departure. The day must have an open check-in.
func (s *AttendanceService) CheckOut(ctx context.Context, userID string) (*models.AttendanceRecord, error) {
	student, err := s.studentRepo.FindByUserID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	now := time.Now().UTC()
	saved, err := s.attendanceRepo.CheckOut(ctx, student.ID, dateOnly(now), now)
	if err != nil {
		if err == sql.ErrNoRows {
			// Distinguish the two no-match cases for a precise error code.
			if _, findErr := s.attendanceRepo.FindByStudentAndDate(ctx, student.ID, dateOnly(now)); findErr == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "no check-in recorded for today")
			}
			return nil, appErrors.ErrDuplicateCheckOut
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record check-out")
	}

	s.invalidateSummary(ctx, student.SupervisorID)
	return saved, nil
}

// Today returns the student's record for the current date, with ABSENT
// signalled by a nil record.
func (s *AttendanceService) Today(ctx context.Context, userID string) (*models.AttendanceRecord, models.DayStatus, error) {
	student, err := s.studentRepo.FindByUserID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	record, err := s.attendanceRepo.FindByStudentAndDate(ctx, student.ID, dateOnly(time.Now().UTC()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.DayStatusAbsent, nil
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	status := models.DayStatusInProgress
	if record.CheckOutTime != nil {
		status = models.DayStatusComplete
	}
	return record, status, nil
}

// HistoryForStudent returns a student's ledger for the requested window,
// defaulting to the last thirty days.
func (s *AttendanceService) HistoryForStudent(ctx context.Context, studentID string, from, to *time.Time) ([]models.AttendanceRecord, error) {
	if _, err := s.studentRepo.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	end := dateOnly(time.Now().UTC())
	if to != nil {
		end = dateOnly(*to)
	}
	start := end.AddDate(0, 0, -30)
	if from != nil {
		start = dateOnly(*from)
	}
	if start.After(end) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date range start is after end")
	}

	records, err := s.attendanceRepo.HistoryForStudent(ctx, studentID, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}
	return records, nil
}

// HistoryOwn returns the ledger of the student behind the user account.
func (s *AttendanceService) HistoryOwn(ctx context.Context, userID string, from, to *time.Time) ([]models.AttendanceRecord, error) {
	student, err := s.studentRepo.FindByUserID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return s.HistoryForStudent(ctx, student.ID, from, to)
}

// SummaryForSupervisor returns the per-student attendance aggregate for the
// supervisor's dashboard, cached briefly to keep refreshes cheap.
func (s *AttendanceService) SummaryForSupervisor(ctx context.Context, userID string) ([]models.AttendanceSummaryRow, error) {
	supervisor, err := s.supervisorRepo.FindByUserID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no supervisor profile for this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supervisor")
	}

	today := dateOnly(time.Now().UTC())
	cacheKey := summaryCacheKey(supervisor.ID, today)
	if s.cache != nil {
		var cached []models.AttendanceSummaryRow
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	rows, err := s.attendanceRepo.SummaryForStudents(ctx, supervisor.ID, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build attendance summary")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, rows, s.summaryTTL); err != nil {
			s.logger.Warn("attendance summary cache write failed", zap.Error(err))
		}
	}
	return rows, nil
}

func summaryCacheKey(supervisorID string, day time.Time) string {
	return fmt.Sprintf("attendance:summary:%s:%s", supervisorID, day.Format("2006-01-02"))
}

func (s *AttendanceService) invalidateSummary(ctx context.Context, supervisorID *string) {
	if s.cache == nil || supervisorID == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("attendance:summary:%s:*", *supervisorID)); err != nil {
		s.logger.Warn("attendance summary cache invalidation failed", zap.Error(err))
	}
}
