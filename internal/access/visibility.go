package access

import (
	"context"

	"github.com/mwpdesign/PP2-sub001/pkg/access"
	"github.com/mwpdesign/PP2-sub001/pkg/logger"
	"github.com/mwpdesign/PP2-sub001/pkg/monitoring"
	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

// Filter decides which workflow records an actor is allowed to see based on
// their position in the organizational hierarchy. It never returns an error:
// any failure to establish the actor's branch collapses to an empty result.
type Filter struct {
	resolver access.DownlineResolver
	logger   *logger.Logger
	metrics  *monitoring.MetricsCollector
}

// NewFilter creates a visibility filter backed by the given downline resolver
func NewFilter(resolver access.DownlineResolver, log *logger.Logger, metrics *monitoring.MetricsCollector) *Filter {
	return &Filter{
		resolver: resolver,
		logger:   log,
		metrics:  metrics,
	}
}

// FilterVisibleRecords returns the subset of records the actor may see.
// Global roles see everything. Everyone else sees records owned by doctors
// in their downline, records where they are the named distributor or
// regional distributor, and records they created themselves.
func (f *Filter) FilterVisibleRecords(ctx context.Context, actor *types.Actor, records []*types.WorkflowRecord) *access.FilterResult {
	result := &access.FilterResult{
		Visible: make([]*types.WorkflowRecord, 0, len(records)),
	}

	if access.IsGlobalRole(actor.Role) {
		result.Visible = append(result.Visible, records...)
		f.recordFilter(actor.Role, "bypass")
		f.recordRecords("visible", len(records))
		return result
	}

	downline, err := f.resolver.ResolveDownline(ctx, actor.ID)
	if err != nil {
		result.Dropped = len(records)
		f.logger.Security("visibility_fail_closed", actor.ID, map[string]interface{}{
			"role":         string(actor.Role),
			"record_count": len(records),
			"error":        err.Error(),
		})
		f.recordFilter(actor.Role, "fail_closed")
		f.recordRecords("dropped", len(records))
		return result
	}

	// The resolver's map is a shared cache snapshot. Doctors additionally
	// see their own records, so their allowed set is a private copy.
	allowed := downline
	if actor.Role == types.RoleDoctor {
		allowed = make(map[string]bool, len(downline)+1)
		for id := range downline {
			allowed[id] = true
		}
		allowed[actor.ID] = true
	}

	allowedIDs := make([]string, 0, len(allowed))
	for id := range allowed {
		allowedIDs = append(allowedIDs, id)
	}
	result.AllowedDoctorIDs = allowedIDs

	var visible, dropped, excluded int
	for _, record := range records {
		if record.OwnerDoctorID == "" {
			f.logger.DataIntegrity("record_missing_owner", record.ID, map[string]interface{}{
				"actor_id": actor.ID,
			})
			excluded++
			continue
		}

		if isVisibleTo(actor, allowed, record) {
			result.Visible = append(result.Visible, record)
			visible++
		} else {
			dropped++
		}
	}
	result.Dropped = dropped + excluded

	f.recordFilter(actor.Role, "filtered")
	f.recordRecords("visible", visible)
	f.recordRecords("dropped", dropped)
	f.recordRecords("integrity_excluded", excluded)

	return result
}

// isVisibleTo checks one record against the actor's allowed doctor set and
// the record's direct associations.
func isVisibleTo(actor *types.Actor, allowed map[string]bool, record *types.WorkflowRecord) bool {
	if allowed[record.OwnerDoctorID] {
		return true
	}
	if record.DistributorID == actor.ID {
		return true
	}
	if record.RegionalDistributorID == actor.ID {
		return true
	}
	if record.CreatedBy == actor.ID {
		return true
	}
	return false
}

func (f *Filter) recordFilter(role types.Role, outcome string) {
	if f.metrics != nil {
		f.metrics.RecordVisibilityFilter(string(role), outcome)
	}
}

func (f *Filter) recordRecords(decision string, count int) {
	if f.metrics != nil && count > 0 {
		f.metrics.RecordVisibilityRecords(decision, count)
	}
}
