package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mwpdesign/PP2-sub001/pkg/access"
	"github.com/mwpdesign/PP2-sub001/pkg/logger"
	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

// AuditRepository persists append-only access audit entries
type AuditRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, log *logger.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: log,
	}
}

// WriteEntry appends one audit entry. Entries are never updated or deleted.
func (r *AuditRepository) WriteEntry(ctx context.Context, entry *access.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	var metadata []byte
	if entry.Metadata != nil {
		var err error
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
	}

	query := `
		INSERT INTO access_audit_log (id, actor_id, actor_role, action, resource, target_role, on_behalf_of, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ActorID,
		string(entry.ActorRole),
		entry.Action,
		entry.Resource,
		string(entry.TargetRole),
		entry.OnBehalfOf,
		metadata,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}

	return nil
}

// QueryEntries retrieves audit entries matching the filter, newest first
func (r *AuditRepository) QueryEntries(ctx context.Context, filter *access.AuditFilter) ([]*access.AuditEntry, error) {
	query := `
		SELECT id, actor_id, actor_role, action, resource, target_role, on_behalf_of, metadata, created_at
		FROM access_audit_log
		WHERE 1=1`

	args := []interface{}{}
	argIndex := 1

	if filter.ActorID != "" {
		query += fmt.Sprintf(" AND actor_id = $%d", argIndex)
		args = append(args, filter.ActorID)
		argIndex++
	}

	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argIndex)
		args = append(args, filter.Action)
		argIndex++
	}

	if filter.Resource != "" {
		query += fmt.Sprintf(" AND resource = $%d", argIndex)
		args = append(args, filter.Resource)
		argIndex++
	}

	if filter.TargetRole != "" {
		query += fmt.Sprintf(" AND target_role = $%d", argIndex)
		args = append(args, filter.TargetRole)
		argIndex++
	}

	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIndex)
		args = append(args, filter.StartTime)
		argIndex++
	}

	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIndex)
		args = append(args, filter.EndTime)
		argIndex++
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = access.DefaultAuditQueryLimit
	}
	query += fmt.Sprintf(" LIMIT $%d", argIndex)
	args = append(args, limit)
	argIndex++

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*access.AuditEntry
	for rows.Next() {
		var entry access.AuditEntry
		var actorRole, targetRole string
		var resource, onBehalfOf sql.NullString
		var metadata []byte

		err := rows.Scan(
			&entry.ID,
			&entry.ActorID,
			&actorRole,
			&entry.Action,
			&resource,
			&targetRole,
			&onBehalfOf,
			&metadata,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}

		entry.ActorRole = types.Role(actorRole)
		entry.TargetRole = types.Role(targetRole)
		entry.Resource = resource.String
		entry.OnBehalfOf = onBehalfOf.String

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				r.logger.Warn("Failed to unmarshal audit metadata", "entryID", entry.ID)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}

	return entries, nil
}
