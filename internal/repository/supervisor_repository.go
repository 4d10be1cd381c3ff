package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/siwes-logbook-api/internal/models"
)

// SupervisorRepository handles persistence for the supervision pool.
type SupervisorRepository struct {
	db *sqlx.DB
}

// NewSupervisorRepository constructs the repository.
func NewSupervisorRepository(db *sqlx.DB) *SupervisorRepository {
	return &SupervisorRepository{db: db}
}

const supervisorColumns = `id, user_id, full_name, email, phone, type, active, created_at, updated_at`

// FindByID loads a supervisor by identifier.
func (r *SupervisorRepository) FindByID(ctx context.Context, id string) (*models.Supervisor, error) {
	query := fmt.Sprintf(`SELECT %s FROM supervisors WHERE id = $1`, supervisorColumns)
	var supervisor models.Supervisor
	if err := r.db.GetContext(ctx, &supervisor, query, id); err != nil {
		return nil, err
	}
	return &supervisor, nil
}

// FindByUserID resolves the supervisor record backing a login account.
func (r *SupervisorRepository) FindByUserID(ctx context.Context, userID string) (*models.Supervisor, error) {
	query := fmt.Sprintf(`SELECT %s FROM supervisors WHERE user_id = $1 LIMIT 1`, supervisorColumns)
	var supervisor models.Supervisor
	if err := r.db.GetContext(ctx, &supervisor, query, userID); err != nil {
		return nil, err
	}
	return &supervisor, nil
}

// List returns supervisors matching the filter with a total count.
func (r *SupervisorRepository) List(ctx context.Context, filter models.SupervisorFilter) ([]models.Supervisor, int, error) {
	base := "FROM supervisors WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(email) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"full_name":  true,
		"email":      true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", supervisorColumns, base, sortBy, order, size, offset)

	var supervisors []models.Supervisor
	if err := r.db.SelectContext(ctx, &supervisors, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list supervisors: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count supervisors: %w", err)
	}

	return supervisors, total, nil
}

// Create inserts a new supervisor.
func (r *SupervisorRepository) Create(ctx context.Context, supervisor *models.Supervisor) error {
	if supervisor.ID == "" {
		supervisor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if supervisor.CreatedAt.IsZero() {
		supervisor.CreatedAt = now
	}
	supervisor.UpdatedAt = now

	const query = `INSERT INTO supervisors (id, user_id, full_name, email, phone, type, active, created_at, updated_at)
		VALUES (:id, :user_id, :full_name, :email, :phone, :type, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, supervisor); err != nil {
		return fmt.Errorf("create supervisor: %w", err)
	}
	return nil
}

// Update modifies mutable supervisor fields.
func (r *SupervisorRepository) Update(ctx context.Context, supervisor *models.Supervisor) error {
	supervisor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE supervisors SET full_name = :full_name, email = :email, phone = :phone, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, supervisor); err != nil {
		return fmt.Errorf("update supervisor: %w", err)
	}
	return nil
}

// Deactivate soft-disables a supervisor. Rows are never hard-deleted while
// assignments may reference them.
func (r *SupervisorRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE supervisors SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate supervisor: %w", err)
	}
	return nil
}

// LoadCounts returns per-supervisor assignment counts for active supervisors
// of the given type within a session. Supervisors with zero assignments are
// included so the selector can see the whole pool; ordering matches the
// automatic-assignment tie-break (fewest assigned, then earliest registered).
func (r *SupervisorRepository) LoadCounts(ctx context.Context, sessionID string, supervisorType models.SupervisorType) ([]models.SupervisorLoad, error) {
	const query = `
SELECT s.id AS supervisor_id, s.full_name, s.email, s.created_at,
       COUNT(sa.id) AS assigned
FROM supervisors s
LEFT JOIN supervisor_assignments sa
       ON sa.supervisor_id = s.id AND sa.session_id = $1 AND sa.assignment_type = $2
WHERE s.active = TRUE AND s.type = $2
GROUP BY s.id, s.full_name, s.email, s.created_at
ORDER BY assigned ASC, s.created_at ASC, s.id ASC`
	var loads []models.SupervisorLoad
	if err := r.db.SelectContext(ctx, &loads, query, sessionID, supervisorType); err != nil {
		return nil, fmt.Errorf("supervisor load counts: %w", err)
	}
	return loads, nil
}
