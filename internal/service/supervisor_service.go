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

type supervisorRepository interface {
	FindByID(ctx context.Context, id string) (*models.Supervisor, error)
	List(ctx context.Context, filter models.SupervisorFilter) ([]models.Supervisor, int, error)
	Create(ctx context.Context, supervisor *models.Supervisor) error
	Update(ctx context.Context, supervisor *models.Supervisor) error
	Deactivate(ctx context.Context, id string) error
}

type supervisorAssignmentCounter interface {
	CountBySupervisor(ctx context.Context, supervisorID, sessionID string, assignmentType models.AssignmentType) (int, error)
}

// SupervisorService manages the supervision pool registry.
type SupervisorService struct {
	supervisorRepo supervisorRepository
	assignmentRepo supervisorAssignmentCounter
	sessionRepo    currentSessionReader
	validator      *validator.Validate
	logger         *zap.Logger
}

// NewSupervisorService constructs the supervisor service.
func NewSupervisorService(supervisors supervisorRepository, assignments supervisorAssignmentCounter, sessions currentSessionReader, validate *validator.Validate, logger *zap.Logger) *SupervisorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupervisorService{
		supervisorRepo: supervisors,
		assignmentRepo: assignments,
		sessionRepo:    sessions,
		validator:      validate,
		logger:         logger,
	}
}

// CreateSupervisorRequest registers a new pool member. Industry supervisors
// have no login; user_id stays empty for them.
type CreateSupervisorRequest struct {
	UserID   *string `json:"user_id"`
	FullName string  `json:"full_name" validate:"required,min=2"`
	Email    string  `json:"email" validate:"required,email"`
	Phone    string  `json:"phone"`
	Type     string  `json:"type" validate:"required"`
}

// UpdateSupervisorRequest modifies mutable fields.
type UpdateSupervisorRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=2"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone"`
	Active   *bool   `json:"active"`
}

// List returns supervisors matching the filter.
func (s *SupervisorService) List(ctx context.Context, filter models.SupervisorFilter) ([]models.Supervisor, *models.Pagination, error) {
	supervisors, total, err := s.supervisorRepo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list supervisors")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return supervisors, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads one supervisor.
func (s *SupervisorService) Get(ctx context.Context, id string) (*models.Supervisor, error) {
	supervisor, err := s.supervisorRepo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "supervisor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supervisor")
	}
	return supervisor, nil
}

// Create registers a supervisor in the pool.
func (s *SupervisorService) Create(ctx context.Context, req CreateSupervisorRequest) (*models.Supervisor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid supervisor payload")
	}
	supervisorType := models.SupervisorType(strings.ToUpper(req.Type))
	if !supervisorType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "type must be SCHOOL or INDUSTRY")
	}

	supervisor := &models.Supervisor{
		UserID:   req.UserID,
		FullName: req.FullName,
		Email:    strings.ToLower(req.Email),
		Phone:    req.Phone,
		Type:     supervisorType,
		Active:   true,
	}
	if err := s.supervisorRepo.Create(ctx, supervisor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create supervisor")
	}
	return supervisor, nil
}

// Update modifies a supervisor's mutable fields.
func (s *SupervisorService) Update(ctx context.Context, id string, req UpdateSupervisorRequest) (*models.Supervisor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid supervisor payload")
	}
	supervisor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		supervisor.FullName = *req.FullName
	}
	if req.Email != nil {
		supervisor.Email = strings.ToLower(*req.Email)
	}
	if req.Phone != nil {
		supervisor.Phone = *req.Phone
	}
	if req.Active != nil {
		supervisor.Active = *req.Active
	}

	if err := s.supervisorRepo.Update(ctx, supervisor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update supervisor")
	}
	return supervisor, nil
}

// Deactivate removes a supervisor from the active pool. Refused while the
// supervisor still carries assignments in the current session; those must be
// reassigned first.
func (s *SupervisorService) Deactivate(ctx context.Context, id string) error {
	supervisor, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	session, err := s.sessionRepo.FindCurrent(ctx)
	if err != nil && err != sql.ErrNoRows {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve current session")
	}
	if session != nil {
		count, err := s.assignmentRepo.CountBySupervisor(ctx, supervisor.ID, session.ID, models.AssignmentType(supervisor.Type))
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assignments")
		}
		if count > 0 {
			return appErrors.Clone(appErrors.ErrConflict, "supervisor still has assigned students in the current session")
		}
	}

	if err := s.supervisorRepo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate supervisor")
	}
	return nil
}
