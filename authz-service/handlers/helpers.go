package handlers

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rentcore-backend/authz-service/middleware"
	"rentcore-backend/shared/authz"
	"rentcore-backend/shared/database/models"
)

// DecisionInvalidator drops cached decisions after a mutation. nil-safe
// implementations come from the cache package.
type DecisionInvalidator interface {
	InvalidateUserDecisions(ctx context.Context, userID uuid.UUID) (int, error)
}

// snapshot converts an entity into the jsonb shape stored in audit rows.
func snapshot(v interface{}) models.JSONMap {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m models.JSONMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

// auditEvent builds an audit event with the requester metadata from the
// gateway context. Called only after the mutation succeeded.
func auditEvent(c *gin.Context, entityType, entityID string, oldValues, newValues models.JSONMap) authz.Event {
	event := authz.Event{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     models.ActionFromMethod(c.Request.Method),
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	}

	if userID, ok := middleware.CurrentUserID(c); ok {
		event.UserID = &userID
	}
	if orgID, ok := middleware.CurrentOrganizationID(c); ok {
		event.OrganizationID = &orgID
	}

	return event
}

// invalidateDecisions best-effort drops a user's cached decisions.
func invalidateDecisions(c *gin.Context, inv DecisionInvalidator, userID uuid.UUID) {
	if inv == nil {
		return
	}
	// Invalidation failure only widens the revocation race window already
	// accepted by the consistency model.
	_, _ = inv.InvalidateUserDecisions(c.Request.Context(), userID)
}
