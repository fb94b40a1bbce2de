package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mwpdesign/PP2-sub001/pkg/logger"
	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

// Sortable columns for record listings. Anything else falls back to
// created_at.
var recordSortColumns = map[string]string{
	"created_at":  "created_at",
	"updated_at":  "updated_at",
	"status":      "status",
	"record_type": "record_type",
}

// RecordRepository handles workflow record retrieval. It applies business
// narrowing only; visibility decisions happen downstream in the access
// filter.
type RecordRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *sql.DB, log *logger.Logger) *RecordRepository {
	return &RecordRepository{
		db:     db,
		logger: log,
	}
}

// List retrieves workflow records matching the search criteria, up to limit
func (r *RecordRepository) List(ctx context.Context, criteria *types.RecordSearchCriteria, limit int) ([]*types.WorkflowRecord, error) {
	query := `
		SELECT id, record_type, status, owner_doctor_id, sales_rep_id,
			   distributor_id, regional_distributor_id, created_by,
			   patient_ref, summary, carrier, region, created_at, updated_at
		FROM workflow_records
		WHERE 1=1`

	args := []interface{}{}
	argIndex := 1

	if criteria.RecordType != "" {
		query += fmt.Sprintf(" AND record_type = $%d", argIndex)
		args = append(args, string(criteria.RecordType))
		argIndex++
	}

	if criteria.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, string(criteria.Status))
		argIndex++
	}

	if criteria.Search != "" {
		query += fmt.Sprintf(" AND (summary ILIKE $%d OR patient_ref ILIKE $%d OR carrier ILIKE $%d)", argIndex, argIndex, argIndex)
		args = append(args, "%"+criteria.Search+"%")
		argIndex++
	}

	sortColumn := recordSortColumns[criteria.SortBy]
	if sortColumn == "" {
		sortColumn = "created_at"
	}
	sortOrder := "DESC"
	if criteria.SortOrder == "asc" {
		sortOrder = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortColumn, sortOrder)

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*types.WorkflowRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating record rows: %w", err)
	}

	return records, nil
}

// GetByID retrieves a single workflow record
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*types.WorkflowRecord, error) {
	query := `
		SELECT id, record_type, status, owner_doctor_id, sales_rep_id,
			   distributor_id, regional_distributor_id, created_by,
			   patient_ref, summary, carrier, region, created_at, updated_at
		FROM workflow_records
		WHERE id = $1`

	record, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("record not found: %s", id))
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return record, nil
}

func scanRecord(row rowScanner) (*types.WorkflowRecord, error) {
	var record types.WorkflowRecord
	var recordType, status string
	var ownerDoctorID, salesRepID, distributorID, regionalDistributorID sql.NullString
	var patientRef, summary, carrier, region sql.NullString

	err := row.Scan(
		&record.ID,
		&recordType,
		&status,
		&ownerDoctorID,
		&salesRepID,
		&distributorID,
		&regionalDistributorID,
		&record.CreatedBy,
		&patientRef,
		&summary,
		&carrier,
		&region,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.RecordType = types.RecordType(recordType)
	record.Status = types.RecordStatus(status)
	record.OwnerDoctorID = ownerDoctorID.String
	record.SalesRepID = salesRepID.String
	record.DistributorID = distributorID.String
	record.RegionalDistributorID = regionalDistributorID.String
	record.PatientRef = patientRef.String
	record.Summary = summary.String
	record.Carrier = carrier.String
	record.Region = region.String

	return &record, nil
}
