package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/siwes-logbook-api/internal/models"
	appErrors "github.com/noah-isme/siwes-logbook-api/pkg/errors"
)

type weekRepository interface {
	UpsertSubmission(ctx context.Context, week *models.WeekRecord) (*models.WeekRecord, error)
	SetReview(ctx context.Context, weekID, supervisorID string, status models.WeekStatus, comment, rejectionReason *string, grade *int) (*models.WeekRecord, error)
	FindByID(ctx context.Context, id string) (*models.WeekRecord, error)
	FindByStudentAndWeek(ctx context.Context, studentID string, weekNumber int) (*models.WeekRecord, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.WeekRecord, error)
	PendingForSupervisor(ctx context.Context, supervisorID string) ([]models.WeekRecord, error)
	AdminUpdate(ctx context.Context, week *models.WeekRecord) (*models.WeekRecord, error)
	SetStatus(ctx context.Context, weekID string, status models.WeekStatus, rejectionReason *string, grade *int) (*models.WeekRecord, error)
	Delete(ctx context.Context, weekID string) error
}

type weekStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
}

type weekSupervisorReader interface {
	FindByID(ctx context.Context, id string) (*models.Supervisor, error)
	FindByUserID(ctx context.Context, userID string) (*models.Supervisor, error)
}

// WeekService coordinates the weekly log workflow: submission, review and
// administrative overrides.
type WeekService struct {
	weekRepo       weekRepository
	studentRepo    weekStudentReader
	supervisorRepo weekSupervisorReader
	sink           NotificationSink
	validator      *validator.Validate
	logger         *zap.Logger
}

// NewWeekService constructs the week service.
func NewWeekService(weeks weekRepository, students weekStudentReader, supervisors weekSupervisorReader, sink NotificationSink, validate *validator.Validate, logger *zap.Logger) *WeekService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &WeekService{
		weekRepo:       weeks,
		studentRepo:    students,
		supervisorRepo: supervisors,
		sink:           sink,
		validator:      validate,
		logger:         logger,
	}
}

// SubmitWeekRequest is the student submission payload. Drafts live on the
// client; the first submission of a week is the first time the server sees it.
type SubmitWeekRequest struct {
	WeekNumber        int      `json:"week_number" validate:"required"`
	MondayActivity    string   `json:"monday_activity" validate:"required"`
	TuesdayActivity   string   `json:"tuesday_activity" validate:"required"`
	WednesdayActivity string   `json:"wednesday_activity" validate:"required"`
	ThursdayActivity  string   `json:"thursday_activity" validate:"required"`
	FridayActivity    string   `json:"friday_activity" validate:"required"`
	SaturdayActivity  string   `json:"saturday_activity" validate:"required"`
	Comments          string   `json:"comments"`
	ImageURLs         []string `json:"image_urls"`
}

// ReviewWeekRequest is the supervisor's verdict on a submitted week.
type ReviewWeekRequest struct {
	Status          string  `json:"status" validate:"required"`
	ReviewComment   *string `json:"review_comment"`
	RejectionReason *string `json:"rejection_reason"`
	Grade           *int    `json:"grade" validate:"omitempty,min=0,max=100"`
}

// AdminUpdateWeekRequest rewrites week content regardless of status.
type AdminUpdateWeekRequest struct {
	MondayActivity    string   `json:"monday_activity"`
	TuesdayActivity   string   `json:"tuesday_activity"`
	WednesdayActivity string   `json:"wednesday_activity"`
	ThursdayActivity  string   `json:"thursday_activity"`
	FridayActivity    string   `json:"friday_activity"`
	SaturdayActivity  string   `json:"saturday_activity"`
	Comments          string   `json:"comments"`
	ImageURLs         []string `json:"image_urls"`
}

// AdminSetStatusRequest forces a week status.
type AdminSetStatusRequest struct {
	Status          string  `json:"status" validate:"required"`
	RejectionReason *string `json:"rejection_reason"`
	Grade           *int    `json:"grade" validate:"omitempty,min=0,max=100"`
}

// Submit creates or resubmits a week for the student behind the user account.
// An approved week is immutable; resubmitting after rejection clears the
// previous review verdict including the grade.
func (s *WeekService) Submit(ctx context.Context, userID string, req SubmitWeekRequest) (*models.WeekRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if req.WeekNumber < models.MinWeekNumber || req.WeekNumber > models.MaxWeekNumber {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("week number must be between %d and %d", models.MinWeekNumber, models.MaxWeekNumber))
	}

	student, err := s.studentRepo.FindByUserID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Locked {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "logbook is locked")
	}

	start, end := models.WeekDates(student.PlacementStart, req.WeekNumber)
	week := &models.WeekRecord{
		StudentID:         student.ID,
		WeekNumber:        req.WeekNumber,
		MondayActivity:    req.MondayActivity,
		TuesdayActivity:   req.TuesdayActivity,
		WednesdayActivity: req.WednesdayActivity,
		ThursdayActivity:  req.ThursdayActivity,
		FridayActivity:    req.FridayActivity,
		SaturdayActivity:  req.SaturdayActivity,
		Comments:          req.Comments,
		ImageURLs:         req.ImageURLs,
		StartDate:         start,
		EndDate:           end,
	}

	saved, err := s.weekRepo.UpsertSubmission(ctx, week)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrImmutableRecord
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save week")
	}

	s.sink.Notify(ctx, models.NotificationEvent{
		Type:       models.EventWeekSubmitted,
		StudentID:  student.ID,
		WeekNumber: saved.WeekNumber,
		Data:       map[string]string{"week_id": saved.ID},
	})
	return saved, nil
}

// Review applies a supervisor's verdict to a submitted week. Only the school
// supervisor currently assigned to the student may review; approval freezes
// the record permanently.
func (s *WeekService) Review(ctx context.Context, userID, weekID string, req ReviewWeekRequest) (*models.WeekRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	status := models.WeekStatus(strings.ToUpper(req.Status))
	if status != models.WeekStatusApproved && status != models.WeekStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be APPROVED or REJECTED")
	}
	if status == models.WeekStatusRejected && (req.RejectionReason == nil || strings.TrimSpace(*req.RejectionReason) == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection requires a reason")
	}

	supervisor, err := s.supervisorRepo.FindByUserID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no supervisor profile for this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supervisor")
	}
	if !supervisor.Active {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "supervisor account is inactive")
	}
	if supervisor.Type != models.SupervisorTypeSchool {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only school supervisors review weekly logs")
	}

	week, err := s.weekRepo.FindByID(ctx, weekID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "week not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week")
	}

	student, err := s.studentRepo.FindByID(ctx, week.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.SupervisorID == nil || *student.SupervisorID != supervisor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student is not assigned to this supervisor")
	}

	var rejectionReason *string
	if status == models.WeekStatusRejected {
		rejectionReason = req.RejectionReason
	}
	saved, err := s.weekRepo.SetReview(ctx, weekID, supervisor.ID, status, req.ReviewComment, rejectionReason, req.Grade)
	if err != nil {
		if err == sql.ErrNoRows {
			// The week left SUBMITTED state between load and update.
			if week.Status == models.WeekStatusApproved {
				return nil, appErrors.ErrImmutableRecord
			}
			return nil, appErrors.Clone(appErrors.ErrConflict, "week is not awaiting review")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review week")
	}

	s.sink.Notify(ctx, models.NotificationEvent{
		Type:         models.EventWeekReviewed,
		StudentID:    week.StudentID,
		SupervisorID: supervisor.ID,
		WeekNumber:   saved.WeekNumber,
		Data:         map[string]string{"week_id": saved.ID, "status": string(status)},
	})
	return saved, nil
}

// Get loads a single week with an ownership check for students.
func (s *WeekService) Get(ctx context.Context, weekID string) (*models.WeekRecord, error) {
	week, err := s.weekRepo.FindByID(ctx, weekID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "week not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week")
	}
	return week, nil
}

// ListByStudent returns a student's full logbook ordered by week number.
func (s *WeekService) ListByStudent(ctx context.Context, studentID string) ([]models.WeekRecord, error) {
	if _, err := s.studentRepo.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	weeks, err := s.weekRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list weeks")
	}
	return weeks, nil
}

// ListOwn returns the logbook of the student behind the user account.
func (s *WeekService) ListOwn(ctx context.Context, userID string) ([]models.WeekRecord, error) {
	student, err := s.studentRepo.FindByUserID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return s.ListByStudent(ctx, student.ID)
}

// PendingForSupervisor lists submitted weeks awaiting the supervisor's review,
// oldest first.
func (s *WeekService) PendingForSupervisor(ctx context.Context, userID string) ([]models.WeekRecord, error) {
	supervisor, err := s.supervisorRepo.FindByUserID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no supervisor profile for this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supervisor")
	}
	weeks, err := s.weekRepo.PendingForSupervisor(ctx, supervisor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending weeks")
	}
	return weeks, nil
}

// AdminUpdate rewrites week content. The administrative path bypasses the
// approved-record guard; every call is audited at the handler layer.
func (s *WeekService) AdminUpdate(ctx context.Context, weekID string, req AdminUpdateWeekRequest) (*models.WeekRecord, error) {
	week, err := s.weekRepo.FindByID(ctx, weekID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "week not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week")
	}

	if req.MondayActivity != "" {
		week.MondayActivity = req.MondayActivity
	}
	if req.TuesdayActivity != "" {
		week.TuesdayActivity = req.TuesdayActivity
	}
	if req.WednesdayActivity != "" {
		week.WednesdayActivity = req.WednesdayActivity
	}
	if req.ThursdayActivity != "" {
		week.ThursdayActivity = req.ThursdayActivity
	}
	if req.FridayActivity != "" {
		week.FridayActivity = req.FridayActivity
	}
	if req.SaturdayActivity != "" {
		week.SaturdayActivity = req.SaturdayActivity
	}
	if req.Comments != "" {
		week.Comments = req.Comments
	}
	if req.ImageURLs != nil {
		week.ImageURLs = req.ImageURLs
	}

	saved, err := s.weekRepo.AdminUpdate(ctx, week)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update week")
	}
	return saved, nil
}

// AdminSetStatus forces a week into the given status.
func (s *WeekService) AdminSetStatus(ctx context.Context, weekID string, req AdminSetStatusRequest) (*models.WeekRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	status := models.WeekStatus(strings.ToUpper(req.Status))
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown week status")
	}

	saved, err := s.weekRepo.SetStatus(ctx, weekID, status, req.RejectionReason, req.Grade)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "week not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set week status")
	}
	return saved, nil
}

// AdminDelete removes a week row. Attendance and assignments are untouched.
func (s *WeekService) AdminDelete(ctx context.Context, weekID string) error {
	if err := s.weekRepo.Delete(ctx, weekID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "week not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete week")
	}
	return nil
}
