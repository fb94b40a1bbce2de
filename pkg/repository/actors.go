package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mwpdesign/PP2-sub001/pkg/logger"
	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

// ActorRepository handles actor persistence in the organizational directory
type ActorRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewActorRepository creates a new actor repository
func NewActorRepository(db *sql.DB, log *logger.Logger) *ActorRepository {
	return &ActorRepository{
		db:     db,
		logger: log,
	}
}

// Create inserts a new actor
func (r *ActorRepository) Create(ctx context.Context, actor *types.Actor) error {
	if actor.ID == "" {
		actor.ID = uuid.New().String()
	}
	actor.CreatedAt = time.Now()
	actor.UpdatedAt = time.Now()

	query := `
		INSERT INTO actors (id, name, email, role, parent_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		actor.ID,
		actor.Name,
		actor.Email,
		string(actor.Role),
		nullableID(actor.ParentID),
		actor.IsActive,
		actor.CreatedAt,
		actor.UpdatedAt,
	).Scan(&actor.CreatedAt, &actor.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create actor: %w", err)
	}

	r.logger.Info("Created actor", "actorID", actor.ID, "role", actor.Role)
	return nil
}

// GetByID retrieves an actor by ID
func (r *ActorRepository) GetByID(ctx context.Context, id string) (*types.Actor, error) {
	query := `
		SELECT id, name, email, role, parent_id, is_active, created_at, updated_at
		FROM actors
		WHERE id = $1`

	actor, err := r.scanActor(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("actor not found: %s", id))
		}
		return nil, fmt.Errorf("failed to get actor: %w", err)
	}

	return actor, nil
}

// GetByEmail retrieves an actor by email address
func (r *ActorRepository) GetByEmail(ctx context.Context, email string) (*types.Actor, error) {
	query := `
		SELECT id, name, email, role, parent_id, is_active, created_at, updated_at
		FROM actors
		WHERE email = $1`

	actor, err := r.scanActor(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("actor not found: %s", email))
		}
		return nil, fmt.Errorf("failed to get actor by email: %w", err)
	}

	return actor, nil
}

// GetChildren retrieves the active actors directly reporting to a parent
func (r *ActorRepository) GetChildren(ctx context.Context, parentID string) ([]*types.Actor, error) {
	query := `
		SELECT id, name, email, role, parent_id, is_active, created_at, updated_at
		FROM actors
		WHERE parent_id = $1 AND is_active = TRUE
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get children: %w", err)
	}
	defer rows.Close()

	return r.collectActors(rows)
}

// GetActor retrieves an actor by ID for directory traversal
func (r *ActorRepository) GetActor(ctx context.Context, actorID string) (*types.Actor, error) {
	return r.GetByID(ctx, actorID)
}

// Update applies partial updates to an actor
func (r *ActorRepository) Update(ctx context.Context, id string, updates *types.ActorUpdates) error {
	query := "UPDATE actors SET updated_at = $1"
	args := []interface{}{time.Now()}
	argIndex := 2

	if updates.Name != "" {
		query += fmt.Sprintf(", name = $%d", argIndex)
		args = append(args, updates.Name)
		argIndex++
	}

	if updates.Email != "" {
		query += fmt.Sprintf(", email = $%d", argIndex)
		args = append(args, updates.Email)
		argIndex++
	}

	if updates.IsActive != nil {
		query += fmt.Sprintf(", is_active = $%d", argIndex)
		args = append(args, *updates.IsActive)
		argIndex++
	}

	query += fmt.Sprintf(" WHERE id = $%d", argIndex)
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update actor: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("actor not found: %s", id))
	}

	r.logger.Info("Updated actor", "actorID", id)
	return nil
}

// SetParent reassigns an actor to a new parent. A nil parentID detaches the
// actor from the hierarchy.
func (r *ActorRepository) SetParent(ctx context.Context, id string, parentID *string) error {
	query := `UPDATE actors SET parent_id = $1, updated_at = $2 WHERE id = $3`

	var parent sql.NullString
	if parentID != nil {
		parent = sql.NullString{String: *parentID, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query, parent, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set parent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("actor not found: %s", id))
	}

	r.logger.Info("Reassigned actor parent", "actorID", id)
	return nil
}

// Deactivate marks an actor inactive
func (r *ActorRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE actors SET is_active = FALSE, updated_at = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate actor: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("actor not found: %s", id))
	}

	r.logger.Info("Deactivated actor", "actorID", id)
	return nil
}

// List searches for actors based on criteria and returns the total match count
func (r *ActorRepository) List(ctx context.Context, criteria *types.ActorSearchCriteria) ([]*types.Actor, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argIndex := 1

	if criteria.Name != "" {
		where += fmt.Sprintf(" AND name ILIKE $%d", argIndex)
		args = append(args, "%"+criteria.Name+"%")
		argIndex++
	}

	if criteria.Role != "" {
		where += fmt.Sprintf(" AND role = $%d", argIndex)
		args = append(args, string(criteria.Role))
		argIndex++
	}

	if criteria.ParentID != "" {
		where += fmt.Sprintf(" AND parent_id = $%d", argIndex)
		args = append(args, criteria.ParentID)
		argIndex++
	}

	if criteria.IsActive != nil {
		where += fmt.Sprintf(" AND is_active = $%d", argIndex)
		args = append(args, *criteria.IsActive)
		argIndex++
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM actors" + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count actors: %w", err)
	}

	query := `
		SELECT id, name, email, role, parent_id, is_active, created_at, updated_at
		FROM actors` + where + " ORDER BY created_at DESC"

	if criteria.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, criteria.Limit)
		argIndex++
	}

	if criteria.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, criteria.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list actors: %w", err)
	}
	defer rows.Close()

	actors, err := r.collectActors(rows)
	if err != nil {
		return nil, 0, err
	}

	return actors, total, nil
}

// IsDescendant reports whether candidateID sits anywhere in the subtree
// rooted at ancestorID. Used to reject parent reassignments that would form
// a cycle.
func (r *ActorRepository) IsDescendant(ctx context.Context, ancestorID, candidateID string) (bool, error) {
	query := `
		WITH RECURSIVE downline AS (
			SELECT id FROM actors WHERE parent_id = $1
			UNION
			SELECT a.id FROM actors a INNER JOIN downline d ON a.parent_id = d.id
		)
		SELECT EXISTS(SELECT 1 FROM downline WHERE id = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, ancestorID, candidateID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check descendants: %w", err)
	}

	return exists, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *ActorRepository) scanActor(row rowScanner) (*types.Actor, error) {
	var actor types.Actor
	var role string
	var parentID sql.NullString

	err := row.Scan(
		&actor.ID,
		&actor.Name,
		&actor.Email,
		&role,
		&parentID,
		&actor.IsActive,
		&actor.CreatedAt,
		&actor.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	actor.Role = types.Role(role)
	if parentID.Valid {
		actor.ParentID = parentID.String
	}

	return &actor, nil
}

func (r *ActorRepository) collectActors(rows *sql.Rows) ([]*types.Actor, error) {
	var actors []*types.Actor
	for rows.Next() {
		actor, err := r.scanActor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan actor row: %w", err)
		}
		actors = append(actors, actor)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating actor rows: %w", err)
	}

	return actors, nil
}

func nullableID(id string) sql.NullString {
	if id == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: id, Valid: true}
}
