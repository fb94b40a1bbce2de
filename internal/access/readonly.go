package access

import (
	"context"
	"time"

	"github.com/mwpdesign/PP2-sub001/pkg/access"
	"github.com/mwpdesign/PP2-sub001/pkg/logger"
	"github.com/mwpdesign/PP2-sub001/pkg/monitoring"
	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

// Enforcer computes the access mode for a wrapped view and freezes it into
// a grant. The decision is made once per activation; views hold their grant
// for their whole lifetime and re-activate when the acting role changes.
type Enforcer struct {
	recorder access.AuditRecorder
	logger   *logger.Logger
	metrics  *monitoring.MetricsCollector
}

// NewEnforcer creates a read-only view enforcer that emits audit entries
// through the given recorder
func NewEnforcer(recorder access.AuditRecorder, log *logger.Logger, metrics *monitoring.MetricsCollector) *Enforcer {
	return &Enforcer{
		recorder: recorder,
		logger:   log,
		metrics:  metrics,
	}
}

// EvaluateMode returns READ_ONLY when the acting role outranks the role the
// view belongs to, FULL_ACCESS otherwise. Roles outside the hierarchy rank
// lowest, so an unrecognized actor never gains a senior view; the anomaly
// is logged for investigation.
func (e *Enforcer) EvaluateMode(actorRole, targetRole types.Role) access.ViewPermissionMode {
	if !access.KnownRole(actorRole) || !access.KnownRole(targetRole) {
		e.logger.Security("unknown_role_in_mode_evaluation", "", map[string]interface{}{
			"actor_role":  string(actorRole),
			"target_role": string(targetRole),
		})
	}

	if access.ShouldApplyReadOnly(actorRole, targetRole) {
		return access.ModeReadOnly
	}
	return access.ModeFullAccess
}

// ActivateView computes the grant for one view activation. A FULL_ACCESS
// grant carries no control map and no banner and is never audited. A
// READ_ONLY grant resolves every declared control against the category
// allow-list, builds the on-behalf-of banner, and records exactly one
// audit entry.
func (e *Enforcer) ActivateView(ctx context.Context, actor *types.Actor, req *access.GrantRequest) *access.ViewGrant {
	mode := e.EvaluateMode(actor.Role, req.TargetRole)

	grant := &access.ViewGrant{
		Mode:        mode,
		Resource:    req.Resource,
		ActorRole:   actor.Role,
		TargetRole:  req.TargetRole,
		ActivatedAt: time.Now().UTC(),
	}

	if mode == access.ModeFullAccess {
		return grant
	}

	grant.Controls = make(map[string]bool, len(req.Controls))
	for _, control := range req.Controls {
		grant.Controls[control.ID] = access.AllowedControlCategories[control.Category]
	}
	grant.OnBehalfOf = access.OnBehalfOfText(actor.Role, req.TargetRole, req.SpecificActor)
	grant.Banner = access.BannerText(actor.Role, req.TargetRole, req.SpecificActor)

	e.recorder.Record(&access.AuditEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     access.ActionReadOnlyView,
		Resource:   req.Resource,
		TargetRole: req.TargetRole,
		OnBehalfOf: grant.OnBehalfOf,
		Timestamp:  grant.ActivatedAt,
		Metadata: map[string]interface{}{
			"control_count": len(req.Controls),
		},
	})

	if e.metrics != nil {
		e.metrics.RecordReadOnlyActivation(string(actor.Role), string(req.TargetRole))
	}

	return grant
}
