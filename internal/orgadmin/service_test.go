package orgadmin

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwpdesign/PP2-sub001/pkg/logger"
	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

// fakeActorRepo keeps the directory in memory
type fakeActorRepo struct {
	actors    map[string]*types.Actor
	createErr error
}

func newFakeActorRepo(actors ...*types.Actor) *fakeActorRepo {
	repo := &fakeActorRepo{actors: make(map[string]*types.Actor)}
	for _, actor := range actors {
		repo.actors[actor.ID] = actor
	}
	return repo
}

func (f *fakeActorRepo) Create(ctx context.Context, actor *types.Actor) error {
	if f.createErr != nil {
		return f.createErr
	}
	if actor.ID == "" {
		actor.ID = uuid.New().String()
	}
	f.actors[actor.ID] = actor
	return nil
}

func (f *fakeActorRepo) GetByID(ctx context.Context, id string) (*types.Actor, error) {
	actor, ok := f.actors[id]
	if !ok {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("actor not found: %s", id))
	}
	return actor, nil
}

func (f *fakeActorRepo) GetByEmail(ctx context.Context, email string) (*types.Actor, error) {
	for _, actor := range f.actors {
		if actor.Email == email {
			return actor, nil
		}
	}
	return nil, types.NewNotFoundError(types.ErrCodeNotFound, "actor not found")
}

func (f *fakeActorRepo) GetChildren(ctx context.Context, parentID string) ([]*types.Actor, error) {
	var children []*types.Actor
	for _, actor := range f.actors {
		if actor.ParentID == parentID && actor.IsActive {
			children = append(children, actor)
		}
	}
	return children, nil
}

func (f *fakeActorRepo) Update(ctx context.Context, id string, updates *types.ActorUpdates) error {
	actor, ok := f.actors[id]
	if !ok {
		return types.NewNotFoundError(types.ErrCodeNotFound, "actor not found")
	}
	if updates.Name != "" {
		actor.Name = updates.Name
	}
	if updates.Email != "" {
		actor.Email = updates.Email
	}
	if updates.IsActive != nil {
		actor.IsActive = *updates.IsActive
	}
	return nil
}

func (f *fakeActorRepo) SetParent(ctx context.Context, id string, parentID *string) error {
	actor, ok := f.actors[id]
	if !ok {
		return types.NewNotFoundError(types.ErrCodeNotFound, "actor not found")
	}
	if parentID == nil {
		actor.ParentID = ""
	} else {
		actor.ParentID = *parentID
	}
	return nil
}

func (f *fakeActorRepo) Deactivate(ctx context.Context, id string) error {
	actor, ok := f.actors[id]
	if !ok {
		return types.NewNotFoundError(types.ErrCodeNotFound, "actor not found")
	}
	actor.IsActive = false
	return nil
}

func (f *fakeActorRepo) List(ctx context.Context, criteria *types.ActorSearchCriteria) ([]*types.Actor, int, error) {
	var matched []*types.Actor
	for _, actor := range f.actors {
		if criteria.Role != "" && actor.Role != criteria.Role {
			continue
		}
		if criteria.ParentID != "" && actor.ParentID != criteria.ParentID {
			continue
		}
		matched = append(matched, actor)
	}
	return matched, len(matched), nil
}

func (f *fakeActorRepo) IsDescendant(ctx context.Context, ancestorID, candidateID string) (bool, error) {
	current := f.actors[candidateID]
	for current != nil && current.ParentID != "" {
		if current.ParentID == ancestorID {
			return true, nil
		}
		current = f.actors[current.ParentID]
	}
	return false, nil
}

// fakeInvalidator counts directory invalidations
type fakeInvalidator struct {
	calls int
	err   error
}

func (f *fakeInvalidator) Invalidate(ctx context.Context) error {
	f.calls++
	return f.err
}

func orgActor(id string, role types.Role, parentID string) *types.Actor {
	return &types.Actor{
		ID:       id,
		Name:     "Actor " + id,
		Email:    id + "@example.com",
		Role:     role,
		ParentID: parentID,
		IsActive: true,
	}
}

func newTestOrgService(repo *fakeActorRepo, invalidator *fakeInvalidator) *Service {
	return &Service{
		logger:      logger.New("debug"),
		repo:        repo,
		invalidator: invalidator,
	}
}

func TestRegisterActor(t *testing.T) {
	repo := newFakeActorRepo(orgActor("dist-1", types.RoleDistributor, ""))
	invalidator := &fakeInvalidator{}
	service := newTestOrgService(repo, invalidator)

	actor, err := service.RegisterActor(context.Background(), &types.ActorRegistrationRequest{
		Name:     "Dr. Sarah Chen",
		Email:    "sarah.chen@example.com",
		Role:     types.RoleDoctor,
		ParentID: "dist-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, actor.ID)
	assert.True(t, actor.IsActive)
	assert.Equal(t, "dist-1", actor.ParentID)
	assert.Equal(t, 1, invalidator.calls)
}

func TestRegisterActor_Validation(t *testing.T) {
	repo := newFakeActorRepo(orgActor("dist-1", types.RoleDistributor, ""))
	service := newTestOrgService(repo, &fakeInvalidator{})

	tests := []struct {
		name string
		req  *types.ActorRegistrationRequest
	}{
		{"missing name", &types.ActorRegistrationRequest{Email: "x@example.com", Role: types.RoleDoctor}},
		{"missing email", &types.ActorRegistrationRequest{Name: "Dr. X", Role: types.RoleDoctor}},
		{"unknown role", &types.ActorRegistrationRequest{Name: "Dr. X", Email: "x@example.com", Role: "janitor"}},
		{"parent not found", &types.ActorRegistrationRequest{Name: "Dr. X", Email: "x@example.com", Role: types.RoleDoctor, ParentID: "ghost"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.RegisterActor(context.Background(), tt.req)
			require.Error(t, err)

			portalErr, ok := err.(*types.PortalError)
			require.True(t, ok)
			assert.Equal(t, types.ErrorTypeValidation, portalErr.Type)
		})
	}
}

func TestRegisterActor_DuplicateEmail(t *testing.T) {
	existing := orgActor("doc-a", types.RoleDoctor, "")
	existing.Email = "taken@example.com"
	service := newTestOrgService(newFakeActorRepo(existing), &fakeInvalidator{})

	_, err := service.RegisterActor(context.Background(), &types.ActorRegistrationRequest{
		Name:  "Dr. X",
		Email: "taken@example.com",
		Role:  types.RoleDoctor,
	})
	require.Error(t, err)

	portalErr, ok := err.(*types.PortalError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeConflict, portalErr.Type)
}

func TestRegisterActor_ParentMustBeSenior(t *testing.T) {
	// A doctor cannot parent a distributor
	repo := newFakeActorRepo(orgActor("doc-a", types.RoleDoctor, ""))
	service := newTestOrgService(repo, &fakeInvalidator{})

	_, err := service.RegisterActor(context.Background(), &types.ActorRegistrationRequest{
		Name:     "New Distributor",
		Email:    "d@example.com",
		Role:     types.RoleDistributor,
		ParentID: "doc-a",
	})
	require.Error(t, err)

	portalErr, ok := err.(*types.PortalError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeValidation, portalErr.Type)
}

func TestRegisterActor_EqualRankParentRejected(t *testing.T) {
	repo := newFakeActorRepo(orgActor("dist-1", types.RoleDistributor, ""))
	service := newTestOrgService(repo, &fakeInvalidator{})

	_, err := service.RegisterActor(context.Background(), &types.ActorRegistrationRequest{
		Name:     "Peer Distributor",
		Email:    "peer@example.com",
		Role:     types.RoleDistributor,
		ParentID: "dist-1",
	})
	require.Error(t, err)
}

func TestRegisterActor_InactiveParentRejected(t *testing.T) {
	parent := orgActor("dist-1", types.RoleDistributor, "")
	parent.IsActive = false
	service := newTestOrgService(newFakeActorRepo(parent), &fakeInvalidator{})

	_, err := service.RegisterActor(context.Background(), &types.ActorRegistrationRequest{
		Name:     "Dr. X",
		Email:    "x@example.com",
		Role:     types.RoleDoctor,
		ParentID: "dist-1",
	})
	require.Error(t, err)
}

func TestRegisterActor_TopLevelNeedsNoParent(t *testing.T) {
	invalidator := &fakeInvalidator{}
	service := newTestOrgService(newFakeActorRepo(), invalidator)

	actor, err := service.RegisterActor(context.Background(), &types.ActorRegistrationRequest{
		Name:  "Root Admin",
		Email: "admin@example.com",
		Role:  types.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Empty(t, actor.ParentID)
	assert.Equal(t, 1, invalidator.calls)
}

func TestReassignParent(t *testing.T) {
	repo := newFakeActorRepo(
		orgActor("dist-1", types.RoleDistributor, ""),
		orgActor("dist-2", types.RoleDistributor, ""),
		orgActor("doc-a", types.RoleDoctor, "dist-1"),
	)
	invalidator := &fakeInvalidator{}
	service := newTestOrgService(repo, invalidator)

	require.NoError(t, service.ReassignParent(context.Background(), "doc-a", "dist-2"))
	assert.Equal(t, "dist-2", repo.actors["doc-a"].ParentID)
	assert.Equal(t, 1, invalidator.calls)
}

func TestReassignParent_SelfParentRejected(t *testing.T) {
	repo := newFakeActorRepo(orgActor("dist-1", types.RoleDistributor, ""))
	service := newTestOrgService(repo, &fakeInvalidator{})

	err := service.ReassignParent(context.Background(), "dist-1", "dist-1")
	require.Error(t, err)

	portalErr, ok := err.(*types.PortalError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeValidation, portalErr.Type)
}

func TestReassignParent_CycleRejected(t *testing.T) {
	// Role changes can leave a senior actor inside a junior subtree. Moving
	// mdist-1 under chp-2 would pass the seniority check but close a loop
	// through dist-1.
	repo := newFakeActorRepo(
		orgActor("mdist-1", types.RoleMasterDistributor, ""),
		orgActor("dist-1", types.RoleDistributor, "mdist-1"),
		orgActor("chp-2", types.RoleCHPAdmin, "dist-1"),
	)
	invalidator := &fakeInvalidator{}
	service := newTestOrgService(repo, invalidator)

	err := service.ReassignParent(context.Background(), "mdist-1", "chp-2")
	require.Error(t, err)

	portalErr, ok := err.(*types.PortalError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeConflict, portalErr.Type)
	assert.Zero(t, invalidator.calls)
	// Hierarchy unchanged
	assert.Empty(t, repo.actors["mdist-1"].ParentID)
}

func TestReassignParent_JuniorParentRejected(t *testing.T) {
	repo := newFakeActorRepo(
		orgActor("mdist-1", types.RoleMasterDistributor, ""),
		orgActor("dist-1", types.RoleDistributor, "mdist-1"),
		orgActor("sales-1", types.RoleSales, "dist-1"),
	)
	service := newTestOrgService(repo, &fakeInvalidator{})

	err := service.ReassignParent(context.Background(), "mdist-1", "sales-1")
	require.Error(t, err)

	portalErr, ok := err.(*types.PortalError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeValidation, portalErr.Type)
}

func TestReassignParent_DetachClearsParent(t *testing.T) {
	repo := newFakeActorRepo(
		orgActor("dist-1", types.RoleDistributor, ""),
		orgActor("doc-a", types.RoleDoctor, "dist-1"),
	)
	invalidator := &fakeInvalidator{}
	service := newTestOrgService(repo, invalidator)

	require.NoError(t, service.ReassignParent(context.Background(), "doc-a", ""))
	assert.Empty(t, repo.actors["doc-a"].ParentID)
	assert.Equal(t, 1, invalidator.calls)
}

func TestReassignParent_ActorNotFound(t *testing.T) {
	service := newTestOrgService(newFakeActorRepo(), &fakeInvalidator{})

	err := service.ReassignParent(context.Background(), "ghost", "dist-1")
	require.Error(t, err)

	portalErr, ok := err.(*types.PortalError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeNotFound, portalErr.Type)
}

func TestDeactivateActor(t *testing.T) {
	repo := newFakeActorRepo(orgActor("doc-a", types.RoleDoctor, "dist-1"))
	invalidator := &fakeInvalidator{}
	service := newTestOrgService(repo, invalidator)

	require.NoError(t, service.DeactivateActor(context.Background(), "doc-a"))
	assert.False(t, repo.actors["doc-a"].IsActive)
	assert.Equal(t, 1, invalidator.calls)
}

func TestUpdateActor(t *testing.T) {
	repo := newFakeActorRepo(orgActor("doc-a", types.RoleDoctor, "dist-1"))
	invalidator := &fakeInvalidator{}
	service := newTestOrgService(repo, invalidator)

	updated, err := service.UpdateActor(context.Background(), "doc-a", &types.ActorUpdates{Name: "Dr. Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Dr. Renamed", updated.Name)
	// Renames do not touch the hierarchy
	assert.Zero(t, invalidator.calls)
}

func TestUpdateActor_ActivationChangeInvalidates(t *testing.T) {
	repo := newFakeActorRepo(orgActor("doc-a", types.RoleDoctor, "dist-1"))
	invalidator := &fakeInvalidator{}
	service := newTestOrgService(repo, invalidator)

	inactive := false
	_, err := service.UpdateActor(context.Background(), "doc-a", &types.ActorUpdates{IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, 1, invalidator.calls)
}

func TestUpdateActor_NoUpdates(t *testing.T) {
	service := newTestOrgService(newFakeActorRepo(), &fakeInvalidator{})

	_, err := service.UpdateActor(context.Background(), "doc-a", &types.ActorUpdates{})
	require.Error(t, err)

	portalErr, ok := err.(*types.PortalError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeValidation, portalErr.Type)
}

func TestUpdateActor_EmailConflict(t *testing.T) {
	other := orgActor("doc-b", types.RoleDoctor, "dist-1")
	other.Email = "taken@example.com"
	repo := newFakeActorRepo(orgActor("doc-a", types.RoleDoctor, "dist-1"), other)
	service := newTestOrgService(repo, &fakeInvalidator{})

	_, err := service.UpdateActor(context.Background(), "doc-a", &types.ActorUpdates{Email: "taken@example.com"})
	require.Error(t, err)

	portalErr, ok := err.(*types.PortalError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeConflict, portalErr.Type)
}

func TestUpdateActor_KeepingOwnEmailIsNotAConflict(t *testing.T) {
	actor := orgActor("doc-a", types.RoleDoctor, "dist-1")
	actor.Email = "mine@example.com"
	repo := newFakeActorRepo(actor)
	service := newTestOrgService(repo, &fakeInvalidator{})

	_, err := service.UpdateActor(context.Background(), "doc-a", &types.ActorUpdates{Email: "mine@example.com"})
	assert.NoError(t, err)
}

func TestGetDirectReports(t *testing.T) {
	repo := newFakeActorRepo(
		orgActor("dist-1", types.RoleDistributor, ""),
		orgActor("doc-a", types.RoleDoctor, "dist-1"),
		orgActor("doc-b", types.RoleDoctor, "dist-1"),
		orgActor("doc-c", types.RoleDoctor, "dist-2"),
	)
	service := newTestOrgService(repo, &fakeInvalidator{})

	reports, err := service.GetDirectReports(context.Background(), "dist-1")
	require.NoError(t, err)
	assert.Len(t, reports, 2)
}

func TestGetDirectReports_UnknownActor(t *testing.T) {
	service := newTestOrgService(newFakeActorRepo(), &fakeInvalidator{})

	_, err := service.GetDirectReports(context.Background(), "ghost")
	require.Error(t, err)
}

func TestListActors_DefaultsAndCaps(t *testing.T) {
	repo := newFakeActorRepo(orgActor("doc-a", types.RoleDoctor, "dist-1"))
	service := newTestOrgService(repo, &fakeInvalidator{})

	criteria := &types.ActorSearchCriteria{Limit: 10000}
	_, _, err := service.ListActors(context.Background(), criteria)
	require.NoError(t, err)
	assert.Equal(t, 200, criteria.Limit)

	criteria = &types.ActorSearchCriteria{}
	_, _, err = service.ListActors(context.Background(), criteria)
	require.NoError(t, err)
	assert.Equal(t, 50, criteria.Limit)
}

func TestInvalidationFailureDoesNotFailMutation(t *testing.T) {
	repo := newFakeActorRepo(orgActor("doc-a", types.RoleDoctor, "dist-1"))
	invalidator := &fakeInvalidator{err: fmt.Errorf("redis unavailable")}
	service := newTestOrgService(repo, invalidator)

	// The mutation is already durable; a failed cache bump only extends
	// staleness to the reader TTL.
	require.NoError(t, service.DeactivateActor(context.Background(), "doc-a"))
	assert.Equal(t, 1, invalidator.calls)
}
