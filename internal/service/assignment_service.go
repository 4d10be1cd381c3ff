package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/siwes-logbook-api/internal/models"
	appErrors "github.com/noah-isme/siwes-logbook-api/pkg/errors"
)

type assignmentRepository interface {
	FindActive(ctx context.Context, studentID, sessionID string, assignmentType models.AssignmentType) (*models.SupervisorAssignment, error)
	ListBySupervisor(ctx context.Context, supervisorID, sessionID string, assignmentType models.AssignmentType) ([]models.AssignmentDetail, error)
	AssignLeastLoaded(ctx context.Context, studentID, sessionID string, assignedBy *string) (*models.SupervisorAssignment, *models.Supervisor, bool, error)
	CreateWithCache(ctx context.Context, assignment *models.SupervisorAssignment, supervisor *models.Supervisor) error
	ReplaceForSupervisor(ctx context.Context, supervisor *models.Supervisor, studentIDs []string, sessionID string, assignmentType models.AssignmentType, assignedBy *string) ([]models.SupervisorAssignment, error)
	Delete(ctx context.Context, assignmentID string) error
}

type assignmentSupervisorReader interface {
	FindByID(ctx context.Context, id string) (*models.Supervisor, error)
	FindByUserID(ctx context.Context, userID string) (*models.Supervisor, error)
	LoadCounts(ctx context.Context, sessionID string, supervisorType models.SupervisorType) ([]models.SupervisorLoad, error)
}

type assignmentStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type currentSessionReader interface {
	FindCurrent(ctx context.Context) (*models.AcademicSession, error)
}

// AssignmentService runs the supervisor distribution engine: automatic
// least-loaded placement, manual reassignment and the bulk replace operation.
type AssignmentService struct {
	assignmentRepo assignmentRepository
	supervisorRepo assignmentSupervisorReader
	studentRepo    assignmentStudentReader
	sessionRepo    currentSessionReader
	sink           NotificationSink
	validator      *validator.Validate
	logger         *zap.Logger
}

// NewAssignmentService constructs the assignment service.
func NewAssignmentService(assignments assignmentRepository, supervisors assignmentSupervisorReader, students assignmentStudentReader, sessions currentSessionReader, sink NotificationSink, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &AssignmentService{
		assignmentRepo: assignments,
		supervisorRepo: supervisors,
		studentRepo:    students,
		sessionRepo:    sessions,
		sink:           sink,
		validator:      validate,
		logger:         logger,
	}
}

// ManualAssignRequest binds one student to a chosen supervisor.
type ManualAssignRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	SupervisorID string `json:"supervisor_id" validate:"required"`
	Type         string `json:"type" validate:"required"`
}

// BulkReplaceRequest swaps a supervisor's full student list for the session.
type BulkReplaceRequest struct {
	SupervisorID string   `json:"supervisor_id" validate:"required"`
	StudentIDs   []string `json:"student_ids" validate:"required"`
	Type         string   `json:"type" validate:"required"`
}

func (s *AssignmentService) currentSession(ctx context.Context) (*models.AcademicSession, error) {
	session, err := s.sessionRepo.FindCurrent(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrNoActiveSession
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve current session")
	}
	return session, nil
}

// AssignAutomatically places a student with the least-loaded active school
// supervisor in the current session. Idempotent: if the student already has a
// school assignment this session it is returned unchanged. Ties on load break
// towards the supervisor registered earliest.
func (s *AssignmentService) AssignAutomatically(ctx context.Context, studentID string, assignedBy *string) (*models.SupervisorAssignment, error) {
	student, err := s.studentRepo.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	session, err := s.currentSession(ctx)
	if err != nil {
		return nil, err
	}

	// Fast path: an existing assignment short-circuits without taking the
	// session lock. The repository re-checks under the lock regardless.
	existing, err := s.assignmentRepo.FindActive(ctx, student.ID, session.ID, models.AssignmentTypeSchool)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing assignment")
	}

	// Selection and insert run inside one locked transaction so concurrent
	// callers cannot pile onto the same supervisor.
	assignment, supervisor, created, err := s.assignmentRepo.AssignLeastLoaded(ctx, student.ID, session.ID, assignedBy)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrNoSupervisorAvailable
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	if !created {
		// A concurrent call won the race; the stored row is the answer.
		return assignment, nil
	}

	s.logger.Info("student assigned automatically",
		zap.String("student_id", student.ID),
		zap.String("supervisor_id", supervisor.ID))

	s.sink.Notify(ctx, models.NotificationEvent{
		Type:         models.EventAssignmentCreated,
		StudentID:    student.ID,
		SupervisorID: supervisor.ID,
		Data:         map[string]string{"session_id": session.ID, "mode": "automatic"},
	})
	return assignment, nil
}

// ReassignManually binds a student to a specific supervisor, replacing any
// existing assignment of the same type in the current session.
func (s *AssignmentService) ReassignManually(ctx context.Context, req ManualAssignRequest, assignedBy *string) (*models.SupervisorAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	assignmentType := models.AssignmentType(strings.ToUpper(req.Type))
	if !assignmentType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "type must be SCHOOL or INDUSTRY")
	}

	student, err := s.studentRepo.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	supervisor, err := s.supervisorRepo.FindByID(ctx, req.SupervisorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "supervisor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supervisor")
	}
	if !supervisor.Active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "supervisor is inactive")
	}
	if string(supervisor.Type) != string(assignmentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "supervisor type does not match assignment type")
	}

	session, err := s.currentSession(ctx)
	if err != nil {
		return nil, err
	}

	if existing, err := s.assignmentRepo.FindActive(ctx, student.ID, session.ID, assignmentType); err == nil {
		if err := s.assignmentRepo.Delete(ctx, existing.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear previous assignment")
		}
	} else if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing assignment")
	}

	assignment := &models.SupervisorAssignment{
		StudentID:    student.ID,
		SupervisorID: supervisor.ID,
		SessionID:    session.ID,
		Type:         assignmentType,
		AssignedBy:   assignedBy,
	}
	if err := s.assignmentRepo.CreateWithCache(ctx, assignment, supervisor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	s.sink.Notify(ctx, models.NotificationEvent{
		Type:         models.EventAssignmentCreated,
		StudentID:    student.ID,
		SupervisorID: supervisor.ID,
		Data:         map[string]string{"session_id": session.ID, "mode": "manual"},
	})
	return assignment, nil
}

// ReplaceForSupervisor swaps the supervisor's complete student list for the
// current session. Students dropped from the list lose their cached
// supervisor reference atomically with the row changes.
func (s *AssignmentService) ReplaceForSupervisor(ctx context.Context, req BulkReplaceRequest, assignedBy *string) ([]models.SupervisorAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid replace payload")
	}
	assignmentType := models.AssignmentType(strings.ToUpper(req.Type))
	if !assignmentType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "type must be SCHOOL or INDUSTRY")
	}

	seen := make(map[string]struct{}, len(req.StudentIDs))
	for _, id := range req.StudentIDs {
		if _, ok := seen[id]; ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate student in payload")
		}
		seen[id] = struct{}{}
		if _, err := s.studentRepo.FindByID(ctx, id); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "student "+id+" not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify students")
		}
	}

	supervisor, err := s.supervisorRepo.FindByID(ctx, req.SupervisorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "supervisor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supervisor")
	}
	if !supervisor.Active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "supervisor is inactive")
	}

	session, err := s.currentSession(ctx)
	if err != nil {
		return nil, err
	}

	created, err := s.assignmentRepo.ReplaceForSupervisor(ctx, supervisor, req.StudentIDs, session.ID, assignmentType, assignedBy)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace assignments")
	}
	return created, nil
}

// Loads reports the per-supervisor assignment counts for the current session.
func (s *AssignmentService) Loads(ctx context.Context, supervisorType models.SupervisorType) ([]models.SupervisorLoad, error) {
	if !supervisorType.Valid() {
		supervisorType = models.SupervisorTypeSchool
	}
	session, err := s.currentSession(ctx)
	if err != nil {
		return nil, err
	}
	loads, err := s.supervisorRepo.LoadCounts(ctx, session.ID, supervisorType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute supervisor loads")
	}
	return loads, nil
}

// StudentsForSupervisor lists the supervisor's assigned students in the
// current session.
func (s *AssignmentService) StudentsForSupervisor(ctx context.Context, userID string) ([]models.AssignmentDetail, error) {
	supervisor, err := s.supervisorRepo.FindByUserID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no supervisor profile for this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supervisor")
	}
	session, err := s.currentSession(ctx)
	if err != nil {
		return nil, err
	}
	details, err := s.assignmentRepo.ListBySupervisor(ctx, supervisor.ID, session.ID, models.AssignmentTypeSchool)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return details, nil
}
