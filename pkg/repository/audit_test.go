package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwpdesign/PP2-sub001/pkg/access"
	"github.com/mwpdesign/PP2-sub001/pkg/logger"
	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

func setupAuditRepository(t *testing.T) (*AuditRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewAuditRepository(db, logger.New("debug"))

	cleanup := func() {
		db.Close()
	}

	return repo, mock, cleanup
}

func auditColumns() []string {
	return []string{"id", "actor_id", "actor_role", "action", "resource", "target_role", "on_behalf_of", "metadata", "created_at"}
}

func TestAuditRepository_WriteEntry(t *testing.T) {
	repo, mock, cleanup := setupAuditRepository(t)
	defer cleanup()

	entry := &access.AuditEntry{
		ActorID:    "dist-1",
		ActorRole:  types.RoleDistributor,
		Action:     access.ActionReadOnlyView,
		Resource:   "/doctor/orders",
		TargetRole: types.RoleDoctor,
		OnBehalfOf: "healthcare providers",
		Metadata:   map[string]interface{}{"control_count": 4},
	}

	mock.ExpectExec("INSERT INTO access_audit_log").
		WithArgs(
			sqlmock.AnyArg(), // generated id
			"dist-1",
			"distributor",
			access.ActionReadOnlyView,
			"/doctor/orders",
			"doctor",
			"healthcare providers",
			[]byte(`{"control_count":4}`),
			sqlmock.AnyArg(), // assigned timestamp
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.WriteEntry(context.Background(), entry)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_WriteEntry_PreservesCallerIdentity(t *testing.T) {
	repo, mock, cleanup := setupAuditRepository(t)
	defer cleanup()

	stamped := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	entry := &access.AuditEntry{
		ID:         "entry-1",
		ActorID:    "mdist-1",
		ActorRole:  types.RoleMasterDistributor,
		Action:     access.ActionReadOnlyView,
		Resource:   "/sales/pipeline",
		TargetRole: types.RoleSales,
		OnBehalfOf: "sales representatives",
		Timestamp:  stamped,
	}

	mock.ExpectExec("INSERT INTO access_audit_log").
		WithArgs(
			"entry-1",
			"mdist-1",
			"master_distributor",
			access.ActionReadOnlyView,
			"/sales/pipeline",
			"sales",
			"sales representatives",
			nil, // no metadata
			stamped,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.WriteEntry(context.Background(), entry))
	assert.Equal(t, "entry-1", entry.ID)
	assert.Equal(t, stamped, entry.Timestamp)
}

func TestAuditRepository_QueryEntries(t *testing.T) {
	repo, mock, cleanup := setupAuditRepository(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows(auditColumns()).
		AddRow("entry-1", "dist-1", "distributor", access.ActionReadOnlyView, "/doctor/orders", "doctor", "healthcare providers", []byte(`{"control_count":4}`), now).
		AddRow("entry-2", "mdist-1", "master_distributor", access.ActionReadOnlyView, "/sales/pipeline", "sales", "sales representatives", nil, now.Add(-time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM access_audit_log WHERE 1=1 ORDER BY created_at DESC LIMIT \\$1").
		WithArgs(access.DefaultAuditQueryLimit).
		WillReturnRows(rows)

	entries, err := repo.QueryEntries(context.Background(), &access.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "entry-1", entries[0].ID)
	assert.Equal(t, types.RoleDistributor, entries[0].ActorRole)
	assert.Equal(t, "healthcare providers", entries[0].OnBehalfOf)
	assert.Equal(t, float64(4), entries[0].Metadata["control_count"])
	assert.Nil(t, entries[1].Metadata)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_QueryEntries_ActorFilter(t *testing.T) {
	repo, mock, cleanup := setupAuditRepository(t)
	defer cleanup()

	rows := sqlmock.NewRows(auditColumns()).
		AddRow("entry-1", "dist-1", "distributor", access.ActionReadOnlyView, "/doctor/orders", "doctor", "healthcare providers", nil, time.Now())

	mock.ExpectQuery("SELECT (.+) FROM access_audit_log WHERE 1=1 AND actor_id = \\$1 ORDER BY created_at DESC LIMIT \\$2").
		WithArgs("dist-1", 10).
		WillReturnRows(rows)

	filter := &access.AuditFilter{ActorID: "dist-1", Limit: 10}
	entries, err := repo.QueryEntries(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dist-1", entries[0].ActorID)
}

func TestAuditRepository_QueryEntries_TimeWindow(t *testing.T) {
	repo, mock, cleanup := setupAuditRepository(t)
	defer cleanup()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM access_audit_log WHERE 1=1 AND created_at >= \\$1 AND created_at <= \\$2 ORDER BY created_at DESC LIMIT \\$3").
		WithArgs(start, end, access.DefaultAuditQueryLimit).
		WillReturnRows(sqlmock.NewRows(auditColumns()))

	filter := &access.AuditFilter{StartTime: start, EndTime: end}
	entries, err := repo.QueryEntries(context.Background(), filter)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}
