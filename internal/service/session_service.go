package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/siwes-logbook-api/internal/models"
	appErrors "github.com/noah-isme/siwes-logbook-api/pkg/errors"
)

type sessionRepository interface {
	List(ctx context.Context) ([]models.AcademicSession, error)
	FindByID(ctx context.Context, id string) (*models.AcademicSession, error)
	FindCurrent(ctx context.Context) (*models.AcademicSession, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, session *models.AcademicSession) error
	SetCurrent(ctx context.Context, id string) error
}

// SessionService manages the academic session registry.
type SessionService struct {
	sessionRepo sessionRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSessionService constructs the session service.
func NewSessionService(sessions sessionRepository, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{sessionRepo: sessions, validator: validate, logger: logger}
}

// CreateSessionRequest names a new academic session, e.g. "2025/2026".
type CreateSessionRequest struct {
	Name      string `json:"name" validate:"required,min=4,max=32"`
	IsCurrent bool   `json:"is_current"`
}

// List returns all sessions, newest first.
func (s *SessionService) List(ctx context.Context) ([]models.AcademicSession, error) {
	sessions, err := s.sessionRepo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// Current returns the session flagged as current.
func (s *SessionService) Current(ctx context.Context) (*models.AcademicSession, error) {
	session, err := s.sessionRepo.FindCurrent(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrNoActiveSession
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current session")
	}
	return session, nil
}

// Create registers a session. When flagged current it also flips the single
// current-session marker.
func (s *SessionService) Create(ctx context.Context, req CreateSessionRequest) (*models.AcademicSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	exists, err := s.sessionRepo.ExistsByName(ctx, req.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check session name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a session with this name already exists")
	}

	session := &models.AcademicSession{Name: req.Name}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	if req.IsCurrent {
		if err := s.sessionRepo.SetCurrent(ctx, session.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark session current")
		}
		session.IsCurrent = true
	}
	return session, nil
}

// SetCurrent makes the given session the single current one.
func (s *SessionService) SetCurrent(ctx context.Context, id string) (*models.AcademicSession, error) {
	if err := s.sessionRepo.SetCurrent(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set current session")
	}
	return s.sessionRepo.FindByID(ctx, id)
}
