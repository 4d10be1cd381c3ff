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

// SessionRepository handles persistence for academic sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository instantiates a session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// List returns all sessions, newest first.
func (r *SessionRepository) List(ctx context.Context) ([]models.AcademicSession, error) {
	const query = `SELECT id, name, is_current, created_at, updated_at FROM academic_sessions ORDER BY created_at DESC`
	var sessions []models.AcademicSession
	if err := r.db.SelectContext(ctx, &sessions, query); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// FindByID loads a session by identifier.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.AcademicSession, error) {
	const query = `SELECT id, name, is_current, created_at, updated_at FROM academic_sessions WHERE id = $1`
	var session models.AcademicSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindCurrent returns the session flagged as current.
func (r *SessionRepository) FindCurrent(ctx context.Context) (*models.AcademicSession, error) {
	const query = `SELECT id, name, is_current, created_at, updated_at FROM academic_sessions WHERE is_current = TRUE LIMIT 1`
	var session models.AcademicSession
	if err := r.db.GetContext(ctx, &session, query); err != nil {
		return nil, err
	}
	return &session, nil
}

// ExistsByName checks whether a session with the name already exists.
func (r *SessionRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	const query = `SELECT 1 FROM academic_sessions WHERE name = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, name); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check session name: %w", err)
	}
	return true, nil
}

// Create inserts a new session record.
func (r *SessionRepository) Create(ctx context.Context, session *models.AcademicSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	const query = `INSERT INTO academic_sessions (id, name, is_current, created_at, updated_at) VALUES (:id, :name, :is_current, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// SetCurrent marks the provided session as current and clears the flag on
// every other session inside one transaction, so at most one current session
// can ever be observed.
func (r *SessionRepository) SetCurrent(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set current tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE academic_sessions SET is_current = FALSE, updated_at = $1 WHERE is_current = TRUE AND id <> $2`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("clear current sessions: %w", err)
	}

	var updated string
	if err = tx.QueryRowxContext(ctx, `UPDATE academic_sessions SET is_current = TRUE, updated_at = $2 WHERE id = $1 RETURNING id`, id, time.Now().UTC()).Scan(&updated); err != nil {
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		return fmt.Errorf("set current session: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit set current tx: %w", err)
	}
	return nil
}
