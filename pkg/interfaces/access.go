package interfaces

import (
	"context"

	"github.com/mwpdesign/PP2-sub001/pkg/access"
	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

// AccessService defines the interface for the record access service
type AccessService interface {
	// Record visibility
	ListVisibleRecords(ctx context.Context, actor *types.ActorClaims, criteria *types.RecordSearchCriteria, limit, offset int) ([]*types.WorkflowRecord, *types.PaginationMeta, error)
	FilterRecords(ctx context.Context, actor *types.ActorClaims, records []*types.WorkflowRecord) *access.FilterResult

	// View mode enforcement
	ActivateView(ctx context.Context, actor *types.ActorClaims, req *access.GrantRequest) (*access.ViewGrant, error)
	EvaluateMode(actorRole, targetRole types.Role) access.ViewPermissionMode

	// Hierarchy inspection
	GetDownline(ctx context.Context, actorID string) ([]string, error)
	InvalidateDirectory(ctx context.Context) error

	// Audit trail
	QueryAuditTrail(ctx context.Context, filter *access.AuditFilter) ([]*access.AuditEntry, error)

	// Service management
	Start(addr string) error
	Stop() error
}

// TokenValidator defines the interface for token validation
type TokenValidator interface {
	ValidateJWT(token string) (*types.ActorClaims, error)
}

// AuditPipeline defines the interface for asynchronous audit delivery
type AuditPipeline interface {
	Record(entry *access.AuditEntry)
	Start() error
	Stop() error
}

// AlertNotifier defines the interface for operational alert delivery
type AlertNotifier interface {
	Notify(ctx context.Context, severity, component, message string, details map[string]interface{})
}
