// +build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accesssvc "github.com/mwpdesign/PP2-sub001/internal/access"
	"github.com/mwpdesign/PP2-sub001/pkg/access"
	"github.com/mwpdesign/PP2-sub001/pkg/repository"
	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

// newAccessEngine builds the decision engine over the container database,
// with the audit pipeline running for real.
func newAccessEngine(t *testing.T) (*accesssvc.Engine, *accesssvc.OrgDirectory) {
	t.Helper()

	auditRepo := repository.NewAuditRepository(testDB.DB, testLog)
	directory := accesssvc.NewOrgDirectory(actorStore, nil, time.Minute, 5*time.Second, testLog, nil)

	monitor := accesssvc.NewAuditMonitor(auditRepo, nil, 64, 25*time.Millisecond, testLog, nil)
	require.NoError(t, monitor.Start())
	t.Cleanup(func() { monitor.Stop() })

	filter := accesssvc.NewFilter(directory, testLog, nil)
	enforcer := accesssvc.NewEnforcer(monitor, testLog, nil)

	engine := accesssvc.NewEngine(directory, filter, enforcer, auditRepo, testLog)
	return engine, directory
}

func recordIDs(records []*types.WorkflowRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestHierarchicalVisibilityFlow(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()

	admin := seedActor(t, types.RoleAdmin, "")
	mdist := seedActor(t, types.RoleMasterDistributor, "")
	dist := seedActor(t, types.RoleDistributor, mdist.ID)
	sales := seedActor(t, types.RoleSales, dist.ID)
	docA := seedActor(t, types.RoleDoctor, dist.ID)

	otherDist := seedActor(t, types.RoleDistributor, "")
	docB := seedActor(t, types.RoleDoctor, otherDist.ID)

	recA := seedRecord(t, docA.ID, dist.ID, mdist.ID, sales.ID)
	recB := seedRecord(t, docB.ID, otherDist.ID, "", docB.ID)

	engine, _ := newAccessEngine(t)
	records, err := recordStore.List(ctx, &types.RecordSearchCriteria{}, 100)
	require.NoError(t, err)
	require.Len(t, records, 2)

	t.Run("DistributorSeesOwnBranchOnly", func(t *testing.T) {
		result := engine.FilterVisibleRecords(ctx, dist, records)
		assert.ElementsMatch(t, []string{recA.ID}, recordIDs(result.Visible))
		assert.Equal(t, 1, result.Dropped)
	})

	t.Run("MasterDistributorSeesTransitively", func(t *testing.T) {
		result := engine.FilterVisibleRecords(ctx, mdist, records)
		assert.ElementsMatch(t, []string{recA.ID}, recordIDs(result.Visible))
	})

	t.Run("SalesSeesRecordsTheyCreated", func(t *testing.T) {
		result := engine.FilterVisibleRecords(ctx, sales, records)
		assert.ElementsMatch(t, []string{recA.ID}, recordIDs(result.Visible))
	})

	t.Run("DoctorSeesOwnRecords", func(t *testing.T) {
		result := engine.FilterVisibleRecords(ctx, docA, records)
		assert.ElementsMatch(t, []string{recA.ID}, recordIDs(result.Visible))

		result = engine.FilterVisibleRecords(ctx, docB, records)
		assert.ElementsMatch(t, []string{recB.ID}, recordIDs(result.Visible))
	})

	t.Run("AdminBypassesFiltering", func(t *testing.T) {
		result := engine.FilterVisibleRecords(ctx, admin, records)
		assert.Len(t, result.Visible, 2)
		assert.Zero(t, result.Dropped)
	})

	t.Run("UnknownActorFailsClosed", func(t *testing.T) {
		ghost := &types.Actor{
			ID:       uuid.New().String(),
			Role:     types.RoleDistributor,
			IsActive: true,
		}
		result := engine.FilterVisibleRecords(ctx, ghost, records)
		assert.Empty(t, result.Visible)
		assert.Equal(t, 2, result.Dropped)
	})
}

func TestDownlineResolutionFlow(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()

	mdist := seedActor(t, types.RoleMasterDistributor, "")
	dist := seedActor(t, types.RoleDistributor, mdist.ID)
	seedActor(t, types.RoleSales, dist.ID)
	docA := seedActor(t, types.RoleDoctor, dist.ID)
	docB := seedActor(t, types.RoleDoctor, dist.ID)

	engine, directory := newAccessEngine(t)

	ids, err := engine.ResolveDownline(ctx, mdist.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{docA.ID, docB.ID}, ids)

	// Deactivation prunes the branch once the cache generation moves on.
	require.NoError(t, actorStore.Deactivate(ctx, docB.ID))
	require.NoError(t, directory.Invalidate(ctx))

	ids, err = engine.ResolveDownline(ctx, mdist.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{docA.ID}, ids)
}

func TestReadOnlyActivationAuditedOnce(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()

	dist := seedActor(t, types.RoleDistributor, "")
	engine, _ := newAccessEngine(t)

	grant := engine.ActivateView(ctx, dist, &access.GrantRequest{
		Resource:   "/doctor/orders",
		TargetRole: types.RoleDoctor,
		Controls: []access.Control{
			{ID: "send-message", Category: access.ControlCommunication},
			{ID: "save-order"},
		},
	})

	require.Equal(t, access.ModeReadOnly, grant.Mode)
	assert.True(t, grant.IsControlEnabled("send-message"))
	assert.False(t, grant.IsControlEnabled("save-order"))

	entries := waitForAuditEntries(t, engine, &access.AuditFilter{
		ActorID: dist.ID,
		Action:  access.ActionReadOnlyView,
	}, 1)

	entry := entries[0]
	assert.Equal(t, dist.ID, entry.ActorID)
	assert.Equal(t, types.RoleDistributor, entry.ActorRole)
	assert.Equal(t, "/doctor/orders", entry.Resource)
	assert.Equal(t, types.RoleDoctor, entry.TargetRole)
	assert.NotEmpty(t, entry.OnBehalfOf)

	// The pipeline must not deliver duplicates after the first flush.
	time.Sleep(200 * time.Millisecond)
	entries, err := engine.QueryAuditTrail(ctx, &access.AuditFilter{
		ActorID: dist.ID,
		Action:  access.ActionReadOnlyView,
	})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFullAccessIsNeverAudited(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()

	docA := seedActor(t, types.RoleDoctor, "")
	engine, _ := newAccessEngine(t)

	grant := engine.ActivateView(ctx, docA, &access.GrantRequest{
		Resource:   "/doctor/orders",
		TargetRole: types.RoleDoctor,
	})
	require.Equal(t, access.ModeFullAccess, grant.Mode)

	time.Sleep(200 * time.Millisecond)
	entries, err := engine.QueryAuditTrail(ctx, &access.AuditFilter{ActorID: docA.ID})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// waitForAuditEntries polls the trail until the expected number of entries
// lands. The audit pipeline is asynchronous, so writes trail the activation.
func waitForAuditEntries(t *testing.T, engine *accesssvc.Engine, filter *access.AuditFilter, want int) []*access.AuditEntry {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for {
		entries, err := engine.QueryAuditTrail(context.Background(), filter)
		require.NoError(t, err)
		if len(entries) >= want {
			return entries
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d audit entries, got %d", want, len(entries))
		}
		time.Sleep(50 * time.Millisecond)
	}
}
