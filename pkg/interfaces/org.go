package interfaces

import (
	"context"

	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

// OrgService defines the interface for organization hierarchy administration
type OrgService interface {
	// Actor management
	RegisterActor(ctx context.Context, req *types.ActorRegistrationRequest) (*types.Actor, error)
	GetActor(ctx context.Context, actorID string) (*types.Actor, error)
	UpdateActor(ctx context.Context, actorID string, updates *types.ActorUpdates) (*types.Actor, error)
	DeactivateActor(ctx context.Context, actorID string) error

	// Hierarchy management
	ReassignParent(ctx context.Context, actorID, newParentID string) error
	GetDirectReports(ctx context.Context, actorID string) ([]*types.Actor, error)

	// Search
	ListActors(ctx context.Context, criteria *types.ActorSearchCriteria) ([]*types.Actor, int, error)

	// Service management
	Start(addr string) error
	Stop() error
}

// ActorRepository defines the interface for actor data persistence
type ActorRepository interface {
	Create(ctx context.Context, actor *types.Actor) error
	GetByID(ctx context.Context, id string) (*types.Actor, error)
	GetByEmail(ctx context.Context, email string) (*types.Actor, error)
	GetChildren(ctx context.Context, parentID string) ([]*types.Actor, error)
	Update(ctx context.Context, id string, updates *types.ActorUpdates) error
	SetParent(ctx context.Context, id string, parentID *string) error
	Deactivate(ctx context.Context, id string) error
	List(ctx context.Context, criteria *types.ActorSearchCriteria) ([]*types.Actor, int, error)
	IsDescendant(ctx context.Context, ancestorID, candidateID string) (bool, error)
}

// RecordRepository defines the interface for workflow record retrieval
type RecordRepository interface {
	List(ctx context.Context, criteria *types.RecordSearchCriteria, limit int) ([]*types.WorkflowRecord, error)
	GetByID(ctx context.Context, id string) (*types.WorkflowRecord, error)
}
