package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcore-backend/shared/database/models"
)

type fakeRoleSource struct {
	roles map[uuid.UUID][]models.Role
	err   error
}

func (f *fakeRoleSource) ActiveRolesForUser(_ context.Context, userID, _ uuid.UUID) ([]models.Role, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.roles[userID], nil
}

type fakeAssignmentSource struct {
	assignments map[uuid.UUID]*models.PropertyAssignment // keyed by property id
	err         error
}

func (f *fakeAssignmentSource) ActiveAssignment(_ context.Context, _, propertyID uuid.UUID) (*models.PropertyAssignment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.assignments[propertyID], nil
}

type fakeDecisionCache struct {
	entries map[string]*Decision
	sets    int
}

func newFakeDecisionCache() *fakeDecisionCache {
	return &fakeDecisionCache{entries: make(map[string]*Decision)}
}

func (f *fakeDecisionCache) GetDecision(_ context.Context, key string) (*Decision, bool) {
	d, ok := f.entries[key]
	return d, ok
}

func (f *fakeDecisionCache) SetDecision(_ context.Context, key string, decision *Decision) {
	f.entries[key] = decision
	f.sets++
}

func roleWith(permissions models.PermissionMap) models.Role {
	return models.Role{
		ID:          uuid.New(),
		Name:        "test-role",
		Permissions: permissions,
		Level:       models.RoleLevelManager,
	}
}

func TestCheckPermissionNoRolesDenies(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()

	evaluator := NewEvaluator(&fakeRoleSource{}, &fakeAssignmentSource{}, nil)

	decision := evaluator.CheckPermission(context.Background(), userID, orgID, ResourceProperties, models.ActionRead, nil)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonNoPermission, decision.Reason)
	assert.Equal(t, ScopeOrganization, decision.ScopeLevel)
}

func TestCheckPermissionAllSentinelAllowsEverything(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()
	unassignedProperty := uuid.New()

	roles := &fakeRoleSource{roles: map[uuid.UUID][]models.Role{
		userID: {roleWith(models.AllowAll())},
	}}
	evaluator := NewEvaluator(roles, &fakeAssignmentSource{}, nil)

	decision := evaluator.CheckPermission(context.Background(), userID, orgID, ResourceLeases, models.ActionDelete, nil)
	require.True(t, decision.Allowed)
	assert.Equal(t, ReasonRoleAll, decision.Reason)

	// The superuser short-circuit wins even for a property the user was
	// never assigned to.
	decision = evaluator.CheckPermission(context.Background(), userID, orgID, ResourceLeases, models.ActionDelete, &unassignedProperty)
	require.True(t, decision.Allowed)
	assert.Equal(t, ReasonRoleAll, decision.Reason)
	assert.Equal(t, ScopeOrganization, decision.ScopeLevel)
}

func TestCheckPermissionRoleGrantAtOrganizationScope(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()

	roles := &fakeRoleSource{roles: map[uuid.UUID][]models.Role{
		userID: {roleWith(models.PermissionMap{Resources: map[string][]models.Action{
			ResourceProperties: {models.ActionRead, models.ActionUpdate},
		}})},
	}}
	evaluator := NewEvaluator(roles, &fakeAssignmentSource{}, nil)

	decision := evaluator.CheckPermission(context.Background(), userID, orgID, ResourceProperties, models.ActionRead, nil)
	require.True(t, decision.Allowed)
	assert.Equal(t, ReasonRolePermission, decision.Reason)

	decision = evaluator.CheckPermission(context.Background(), userID, orgID, ResourceProperties, models.ActionDelete, nil)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonNoPermission, decision.Reason)
}

func TestCheckPermissionPropertyScopeRequiresAssignment(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()
	propertyID := uuid.New()

	// A role grant on the resource is not sufficient once the check is
	// scoped to a property.
	roles := &fakeRoleSource{roles: map[uuid.UUID][]models.Role{
		userID: {roleWith(models.PermissionMap{Resources: map[string][]models.Action{
			ResourceProperties: {models.ActionAll},
		}})},
	}}
	evaluator := NewEvaluator(roles, &fakeAssignmentSource{}, nil)

	decision := evaluator.CheckPermission(context.Background(), userID, orgID, ResourceProperties, models.ActionRead, &propertyID)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonNoAssignment, decision.Reason)
	assert.Equal(t, ScopeProperty, decision.ScopeLevel)
}

func TestCheckPermissionAssignmentRoleType(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()
	propertyID := uuid.New()

	assignments := &fakeAssignmentSource{assignments: map[uuid.UUID]*models.PropertyAssignment{
		propertyID: {
			UserID:     userID,
			PropertyID: propertyID,
			RoleType:   models.RoleTypeViewer,
			IsActive:   true,
		},
	}}
	evaluator := NewEvaluator(&fakeRoleSource{}, assignments, nil)

	decision := evaluator.CheckPermission(context.Background(), userID, orgID, ResourceProperties, models.ActionRead, &propertyID)
	require.True(t, decision.Allowed)
	assert.Equal(t, ReasonAssignmentRoleType, decision.Reason)

	decision = evaluator.CheckPermission(context.Background(), userID, orgID, ResourceProperties, models.ActionUpdate, &propertyID)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonNoPermission, decision.Reason)
}

func TestCheckPermissionManagerRoleTypeSet(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()
	propertyID := uuid.New()

	assignments := &fakeAssignmentSource{assignments: map[uuid.UUID]*models.PropertyAssignment{
		propertyID: {
			UserID:     userID,
			PropertyID: propertyID,
			RoleType:   models.RoleTypeManager,
			IsActive:   true,
		},
	}}
	evaluator := NewEvaluator(&fakeRoleSource{}, assignments, nil)

	decision := evaluator.CheckPermission(context.Background(), userID, orgID, ResourceLeases, models.ActionUpdate, &propertyID)
	assert.True(t, decision.Allowed)

	decision = evaluator.CheckPermission(context.Background(), userID, orgID, ResourceLeases, models.ActionDelete, &propertyID)
	assert.False(t, decision.Allowed)
}

func TestCheckPermissionAssignmentOverride(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()
	propertyID := uuid.New()

	override := models.AllowAll()
	assignments := &fakeAssignmentSource{assignments: map[uuid.UUID]*models.PropertyAssignment{
		propertyID: {
			UserID:      userID,
			PropertyID:  propertyID,
			RoleType:    models.RoleTypeViewer,
			Permissions: &override,
			IsActive:    true,
		},
	}}
	evaluator := NewEvaluator(&fakeRoleSource{}, assignments, nil)

	// The override widens beyond the viewer's static set.
	decision := evaluator.CheckPermission(context.Background(), userID, orgID, ResourceLeases, models.ActionDelete, &propertyID)
	require.True(t, decision.Allowed)
	assert.Equal(t, ReasonAssignmentOverride, decision.Reason)
}

func TestCheckPermissionOverrideFallsBackToRoleType(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()
	propertyID := uuid.New()

	override := models.PermissionMap{Resources: map[string][]models.Action{
		ResourceDocuments: {models.ActionCreate},
	}}
	assignments := &fakeAssignmentSource{assignments: map[uuid.UUID]*models.PropertyAssignment{
		propertyID: {
			UserID:      userID,
			PropertyID:  propertyID,
			RoleType:    models.RoleTypeCoordinator,
			Permissions: &override,
			IsActive:    true,
		},
	}}
	evaluator := NewEvaluator(&fakeRoleSource{}, assignments, nil)

	// Granted by the override, outside the coordinator's static set.
	decision := evaluator.CheckPermission(context.Background(), userID, orgID, ResourceDocuments, models.ActionCreate, &propertyID)
	require.True(t, decision.Allowed)
	assert.Equal(t, ReasonAssignmentOverride, decision.Reason)

	// Not in the override, still covered by the coordinator's static set.
	decision = evaluator.CheckPermission(context.Background(), userID, orgID, ResourceLeases, models.ActionUpdate, &propertyID)
	require.True(t, decision.Allowed)
	assert.Equal(t, ReasonAssignmentRoleType, decision.Reason)
}

func TestCheckPermissionStoreFailureDenies(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()
	propertyID := uuid.New()

	storeErr := errors.New("connection refused")

	evaluator := NewEvaluator(&fakeRoleSource{err: storeErr}, &fakeAssignmentSource{}, nil)
	decision := evaluator.CheckPermission(context.Background(), userID, orgID, ResourceProperties, models.ActionRead, nil)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonStoreUnavailable, decision.Reason)

	evaluator = NewEvaluator(&fakeRoleSource{}, &fakeAssignmentSource{err: storeErr}, nil)
	decision = evaluator.CheckPermission(context.Background(), userID, orgID, ResourceProperties, models.ActionRead, &propertyID)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonStoreUnavailable, decision.Reason)
}

func TestCheckPermissionCachesDecisions(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()

	cache := newFakeDecisionCache()
	roles := &fakeRoleSource{roles: map[uuid.UUID][]models.Role{
		userID: {roleWith(models.AllowAll())},
	}}
	evaluator := NewEvaluator(roles, &fakeAssignmentSource{}, cache)

	first := evaluator.CheckPermission(context.Background(), userID, orgID, ResourceProperties, models.ActionRead, nil)
	require.True(t, first.Allowed)
	assert.Equal(t, 1, cache.sets)

	// Second check is answered from the cache, not recomputed.
	roles.err = errors.New("store down")
	second := evaluator.CheckPermission(context.Background(), userID, orgID, ResourceProperties, models.ActionRead, nil)
	assert.True(t, second.Allowed)
	assert.Equal(t, 1, cache.sets)
}

func TestCheckPermissionRevocationStopsAccess(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()

	reportsRole := roleWith(models.PermissionMap{Resources: map[string][]models.Action{
		ResourceReports: {models.ActionRead},
	}})
	leasesRole := roleWith(models.PermissionMap{Resources: map[string][]models.Action{
		ResourceLeases: {models.ActionCreate, models.ActionRead},
	}})
	roles := &fakeRoleSource{roles: map[uuid.UUID][]models.Role{
		userID: {reportsRole, leasesRole},
	}}
	evaluator := NewEvaluator(roles, &fakeAssignmentSource{}, nil)

	require.True(t, evaluator.CheckPermission(context.Background(), userID, orgID, ResourceLeases, models.ActionCreate, nil).Allowed)
	require.True(t, evaluator.CheckPermission(context.Background(), userID, orgID, ResourceReports, models.ActionRead, nil).Allowed)

	// Revoking the leases role removes it from the active set; the next
	// check must come back denied while the remaining role keeps working.
	roles.roles[userID] = []models.Role{reportsRole}

	denied := evaluator.CheckPermission(context.Background(), userID, orgID, ResourceLeases, models.ActionCreate, nil)
	assert.False(t, denied.Allowed)
	assert.Equal(t, ReasonNoPermission, denied.Reason)
	assert.True(t, evaluator.CheckPermission(context.Background(), userID, orgID, ResourceReports, models.ActionRead, nil).Allowed)
}

func TestCheckPermissionRevocationVisibleAfterCacheInvalidation(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()

	cache := newFakeDecisionCache()
	roles := &fakeRoleSource{roles: map[uuid.UUID][]models.Role{
		userID: {roleWith(models.PermissionMap{Resources: map[string][]models.Action{
			ResourceLeases: {models.ActionRead},
		}})},
	}}
	evaluator := NewEvaluator(roles, &fakeAssignmentSource{}, cache)

	require.True(t, evaluator.CheckPermission(context.Background(), userID, orgID, ResourceLeases, models.ActionRead, nil).Allowed)
	require.Equal(t, 1, cache.sets)

	// The binding is revoked but the stale allow still sits in the cache.
	roles.roles[userID] = nil
	assert.True(t, evaluator.CheckPermission(context.Background(), userID, orgID, ResourceLeases, models.ActionRead, nil).Allowed)

	// Revocation drops the user's cached decisions; the recomputed answer
	// reflects the revoked binding.
	for key := range cache.entries {
		delete(cache.entries, key)
	}
	denied := evaluator.CheckPermission(context.Background(), userID, orgID, ResourceLeases, models.ActionRead, nil)
	assert.False(t, denied.Allowed)
	assert.Equal(t, ReasonNoPermission, denied.Reason)
}

func TestCheckPermissionNeverCachesStoreFailures(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()

	cache := newFakeDecisionCache()
	roles := &fakeRoleSource{err: errors.New("store down")}
	evaluator := NewEvaluator(roles, &fakeAssignmentSource{}, cache)

	decision := evaluator.CheckPermission(context.Background(), userID, orgID, ResourceProperties, models.ActionRead, nil)
	assert.Equal(t, ReasonStoreUnavailable, decision.Reason)
	assert.Equal(t, 0, cache.sets)

	// Store recovers; the next check sees it immediately.
	roles.err = nil
	roles.roles = map[uuid.UUID][]models.Role{userID: {roleWith(models.AllowAll())}}
	decision = evaluator.CheckPermission(context.Background(), userID, orgID, ResourceProperties, models.ActionRead, nil)
	assert.True(t, decision.Allowed)
}

func TestDecisionCacheKey(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()
	propertyID := uuid.New()

	orgKey := decisionCacheKey(userID, orgID, ResourceProperties, models.ActionRead, nil)
	propKey := decisionCacheKey(userID, orgID, ResourceProperties, models.ActionRead, &propertyID)
	assert.NotEqual(t, orgKey, propKey)

	// Both match the per-user invalidation prefix.
	prefix := DecisionKeyPrefixForUser(userID)
	assert.Contains(t, orgKey, "authz:user:"+userID.String()+":")
	assert.Contains(t, propKey, "authz:user:"+userID.String()+":")
	assert.Equal(t, "authz:user:"+userID.String()+":*", prefix)
}
