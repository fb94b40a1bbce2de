package access

import (
	"context"
	"sort"

	"github.com/mwpdesign/PP2-sub001/pkg/access"
	"github.com/mwpdesign/PP2-sub001/pkg/logger"
	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

// Engine combines the visibility filter, the read-only enforcer, the
// downline directory and the audit trail behind the single facade that
// transport code consumes.
type Engine struct {
	directory *OrgDirectory
	filter    *Filter
	enforcer  *Enforcer
	sink      access.AuditSink
	logger    *logger.Logger
}

// NewEngine creates the access decision engine
func NewEngine(directory *OrgDirectory, filter *Filter, enforcer *Enforcer, sink access.AuditSink, log *logger.Logger) *Engine {
	return &Engine{
		directory: directory,
		filter:    filter,
		enforcer:  enforcer,
		sink:      sink,
		logger:    log,
	}
}

// FilterVisibleRecords applies hierarchical visibility to a record set
func (e *Engine) FilterVisibleRecords(ctx context.Context, actor *types.Actor, records []*types.WorkflowRecord) *access.FilterResult {
	return e.filter.FilterVisibleRecords(ctx, actor, records)
}

// ActivateView computes and freezes the access mode for one view
func (e *Engine) ActivateView(ctx context.Context, actor *types.Actor, req *access.GrantRequest) *access.ViewGrant {
	return e.enforcer.ActivateView(ctx, actor, req)
}

// EvaluateMode answers the mode question without activating a view
func (e *Engine) EvaluateMode(actorRole, targetRole types.Role) access.ViewPermissionMode {
	return e.enforcer.EvaluateMode(actorRole, targetRole)
}

// ResolveDownline returns the sorted doctor IDs beneath the actor
func (e *Engine) ResolveDownline(ctx context.Context, actorID string) ([]string, error) {
	doctors, err := e.directory.ResolveDownline(ctx, actorID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(doctors))
	for id := range doctors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// QueryAuditTrail reads back audit entries matching the filter. The page
// size is clamped to keep trail reviews from scanning unbounded history.
func (e *Engine) QueryAuditTrail(ctx context.Context, filter *access.AuditFilter) ([]*access.AuditEntry, error) {
	if filter == nil {
		filter = &access.AuditFilter{}
	}
	if filter.Limit <= 0 {
		filter.Limit = access.DefaultAuditQueryLimit
	}
	if filter.Limit > access.MaxAuditQueryLimit {
		filter.Limit = access.MaxAuditQueryLimit
	}

	return e.sink.QueryEntries(ctx, filter)
}
