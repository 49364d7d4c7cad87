package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rentcore-backend/shared/authz"
	"rentcore-backend/shared/database/models"
)

// Context keys set by the gateway middleware chain.
const (
	ContextUserKey           = "authUser"
	ContextUserIDKey         = "userID"
	ContextOrganizationIDKey = "organizationID"
)

// UserSource resolves authenticated principals to user records.
type UserSource interface {
	UserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// PermissionChecker answers permission questions (the evaluator).
type PermissionChecker interface {
	CheckPermission(ctx context.Context, userID, orgID uuid.UUID, resource string, action models.Action, propertyID *uuid.UUID) authz.Decision
}

// RoleLevelSource supplies the user's effective role level.
type RoleLevelSource interface {
	MaxRoleLevel(ctx context.Context, userID, orgID uuid.UUID) (int, error)
}

// Gateway is the request-side authorization boundary. Requests pass
// Authenticate, then ScopeOrganization, then the Require* guards before any
// business handler runs. All dependencies are injected, nothing is
// process-global.
type Gateway struct {
	users   UserSource
	checker PermissionChecker
	levels  RoleLevelSource
}

// NewGateway creates the gateway middleware set.
func NewGateway(users UserSource, checker PermissionChecker, levels RoleLevelSource) *Gateway {
	return &Gateway{
		users:   users,
		checker: checker,
		levels:  levels,
	}
}

// CurrentUser returns the authenticated user set by Authenticate.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

// CurrentUserID returns the authenticated user's id.
func CurrentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(ContextUserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// CurrentOrganizationID returns the organization the request is scoped to.
func CurrentOrganizationID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(ContextOrganizationIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
