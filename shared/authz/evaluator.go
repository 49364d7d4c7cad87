package authz

import (
	"context"
	"log"

	"github.com/google/uuid"

	"rentcore-backend/shared/database/models"
)

// ScopeLevel tells a denied caller which authorization tier failed.
type ScopeLevel string

const (
	ScopeOrganization ScopeLevel = "organization"
	ScopeProperty     ScopeLevel = "property"
)

// Decision reasons. Reasons starting with "no_" are denials; the store
// reason marks an operational failure that was converted into a denial.
const (
	ReasonRoleAll            = "role_all"
	ReasonRolePermission     = "role_permission"
	ReasonAssignmentOverride = "assignment_override"
	ReasonAssignmentRoleType = "assignment_role_type"
	ReasonNoAssignment       = "no_property_assignment"
	ReasonNoPermission       = "no_permission"
	ReasonStoreUnavailable   = "store_unavailable"
)

// Decision is the evaluator's answer plus the structured denial detail the
// gateway returns to callers.
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Reason     string        `json:"reason"`
	Resource   string        `json:"resource"`
	Action     models.Action `json:"action"`
	ScopeLevel ScopeLevel    `json:"scope_level"`
}

// RoleSource supplies a user's active roles in an organization.
type RoleSource interface {
	ActiveRolesForUser(ctx context.Context, userID, orgID uuid.UUID) ([]models.Role, error)
}

// AssignmentSource supplies a user's active property assignment.
type AssignmentSource interface {
	ActiveAssignment(ctx context.Context, userID, propertyID uuid.UUID) (*models.PropertyAssignment, error)
}

// DecisionCache is an optional read-through cache for computed decisions.
// Implementations must be safe for concurrent use; a nil cache disables
// caching entirely.
type DecisionCache interface {
	GetDecision(ctx context.Context, key string) (*Decision, bool)
	SetDecision(ctx context.Context, key string, decision *Decision)
}

// Evaluator computes allow/deny decisions. It holds no mutable state of its
// own and is safe to share across concurrent requests.
type Evaluator struct {
	roles       RoleSource
	assignments AssignmentSource
	cache       DecisionCache
}

// NewEvaluator creates an Evaluator. cache may be nil.
func NewEvaluator(roles RoleSource, assignments AssignmentSource, cache DecisionCache) *Evaluator {
	return &Evaluator{
		roles:       roles,
		assignments: assignments,
		cache:       cache,
	}
}

// CheckPermission decides whether a user may perform action on resource
// within an organization, optionally scoped to a single property.
//
// Decision order:
//  1. Any active role with the "all" sentinel allows unconditionally.
//  2. Without a property id, any active role granting (resource, action)
//     allows at organization scope.
//  3. With a property id, the active property assignment decides: a missing
//     assignment denies, an override map or the role type's static action
//     set allows.
//
// Store failures deny (fail-closed) and are logged as operational errors.
func (e *Evaluator) CheckPermission(ctx context.Context, userID, orgID uuid.UUID, resource string, action models.Action, propertyID *uuid.UUID) Decision {
	cacheKey := decisionCacheKey(userID, orgID, resource, action, propertyID)
	if e.cache != nil {
		if cached, found := e.cache.GetDecision(ctx, cacheKey); found {
			return *cached
		}
	}

	decision := e.evaluate(ctx, userID, orgID, resource, action, propertyID)

	// Operational failures are never cached; the next check should see a
	// recovered store immediately.
	if e.cache != nil && decision.Reason != ReasonStoreUnavailable {
		e.cache.SetDecision(ctx, cacheKey, &decision)
	}

	return decision
}

func (e *Evaluator) evaluate(ctx context.Context, userID, orgID uuid.UUID, resource string, action models.Action, propertyID *uuid.UUID) Decision {
	deny := func(reason string, scope ScopeLevel) Decision {
		return Decision{Reason: reason, Resource: resource, Action: action, ScopeLevel: scope}
	}
	allow := func(reason string, scope ScopeLevel) Decision {
		return Decision{Allowed: true, Reason: reason, Resource: resource, Action: action, ScopeLevel: scope}
	}

	roles, err := e.roles.ActiveRolesForUser(ctx, userID, orgID)
	if err != nil {
		log.Printf("❌ Permission check failed, denying: user=%s org=%s resource=%s action=%s: %v",
			userID, orgID, resource, action, err)
		return deny(ReasonStoreUnavailable, ScopeOrganization)
	}

	// Organization-wide superuser short-circuit. Wins over every narrower
	// grant, including missing property assignments.
	for _, role := range roles {
		if role.Permissions.All {
			return allow(ReasonRoleAll, ScopeOrganization)
		}
	}

	if propertyID == nil {
		// Resource-level grant, not property-scoped.
		for _, role := range roles {
			if role.Permissions.Allows(resource, action) {
				return allow(ReasonRolePermission, ScopeOrganization)
			}
		}
		return deny(ReasonNoPermission, ScopeOrganization)
	}

	return e.checkPropertyAssignment(ctx, userID, *propertyID, resource, action)
}

// checkPropertyAssignment confirms property-level authorization. Only a
// direct assignment (or the role "all" short-circuit handled by the caller)
// allows; an org-role resource grant does not reach into property scope.
func (e *Evaluator) checkPropertyAssignment(ctx context.Context, userID, propertyID uuid.UUID, resource string, action models.Action) Decision {
	deny := func(reason string) Decision {
		return Decision{Reason: reason, Resource: resource, Action: action, ScopeLevel: ScopeProperty}
	}

	assignment, err := e.assignments.ActiveAssignment(ctx, userID, propertyID)
	if err != nil {
		log.Printf("❌ Assignment check failed, denying: user=%s property=%s: %v", userID, propertyID, err)
		return deny(ReasonStoreUnavailable)
	}
	if assignment == nil {
		return deny(ReasonNoAssignment)
	}

	if assignment.Permissions != nil {
		if assignment.Permissions.All {
			return Decision{Allowed: true, Reason: ReasonAssignmentOverride, Resource: resource, Action: action, ScopeLevel: ScopeProperty}
		}
		if assignment.Permissions.Allows(resource, action) {
			return Decision{Allowed: true, Reason: ReasonAssignmentOverride, Resource: resource, Action: action, ScopeLevel: ScopeProperty}
		}
	}

	if assignment.RoleType.Allows(action) {
		return Decision{Allowed: true, Reason: ReasonAssignmentRoleType, Resource: resource, Action: action, ScopeLevel: ScopeProperty}
	}

	return deny(ReasonNoPermission)
}

// decisionCacheKey builds the redis key for a computed decision.
func decisionCacheKey(userID, orgID uuid.UUID, resource string, action models.Action, propertyID *uuid.UUID) string {
	key := "authz:user:" + userID.String() + ":org:" + orgID.String() + ":res:" + resource + ":act:" + string(action)
	if propertyID != nil {
		key += ":prop:" + propertyID.String()
	}
	return key
}

// DecisionKeyPrefixForUser is the pattern covering every cached decision of
// a user; mutations to roles or assignments invalidate with it.
func DecisionKeyPrefixForUser(userID uuid.UUID) string {
	return "authz:user:" + userID.String() + ":*"
}
