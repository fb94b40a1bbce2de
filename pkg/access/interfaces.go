package access

import (
	"context"

	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

// ActorSource provides actor-by-id lookup and parent-link traversal over
// the organizational directory
type ActorSource interface {
	GetActor(ctx context.Context, actorID string) (*types.Actor, error)
	GetChildren(ctx context.Context, parentID string) ([]*types.Actor, error)
}

// DownlineResolver resolves the transitive set of doctor identities beneath
// an actor in the organizational hierarchy
type DownlineResolver interface {
	ResolveDownline(ctx context.Context, actorID string) (map[string]bool, error)
	Invalidate(ctx context.Context) error
}

// AuditSink accepts append-only audit entry writes and filtered reads
type AuditSink interface {
	WriteEntry(ctx context.Context, entry *AuditEntry) error
	QueryEntries(ctx context.Context, filter *AuditFilter) ([]*AuditEntry, error)
}

// AuditRecorder is the asynchronous pipeline the enforcer hands entries to.
// Record never blocks the caller; delivery failures are retried once and
// then escalated through the operational alert channel.
type AuditRecorder interface {
	Record(entry *AuditEntry)
}

// Engine is the facade exposed to transport code. All visibility decisions
// fail closed: directory failures surface as empty results, never as
// elevated access.
type Engine interface {
	FilterVisibleRecords(ctx context.Context, actor *types.Actor, records []*types.WorkflowRecord) *FilterResult
	ActivateView(ctx context.Context, actor *types.Actor, req *GrantRequest) *ViewGrant
	EvaluateMode(actorRole, targetRole types.Role) ViewPermissionMode
	ResolveDownline(ctx context.Context, actorID string) ([]string, error)
	QueryAuditTrail(ctx context.Context, filter *AuditFilter) ([]*AuditEntry, error)
}
