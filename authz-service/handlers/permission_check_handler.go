package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rentcore-backend/authz-service/middleware"
	"rentcore-backend/shared/authz"
	"rentcore-backend/shared/database/models"
)

// PermissionChecker answers permission questions (the evaluator).
type PermissionChecker interface {
	CheckPermission(ctx context.Context, userID, orgID uuid.UUID, resource string, action models.Action, propertyID *uuid.UUID) authz.Decision
}

// PermissionCheckHandler exposes the decision API to the business-logic
// layer and other services.
type PermissionCheckHandler struct {
	checker PermissionChecker
}

// NewPermissionCheckHandler creates the handler.
func NewPermissionCheckHandler(checker PermissionChecker) *PermissionCheckHandler {
	return &PermissionCheckHandler{checker: checker}
}

// PermissionCheckRequest represents a single permission check request
type PermissionCheckRequest struct {
	UserID         string `json:"user_id" binding:"required"`
	OrganizationID string `json:"organization_id" binding:"required"`
	Resource       string `json:"resource" binding:"required"`
	Action         string `json:"action" binding:"required"`
	PropertyID     string `json:"property_id"`
}

// PermissionCheckResponse represents the decision returned to callers
type PermissionCheckResponse struct {
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason,omitempty"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	ScopeLevel string `json:"scope_level"`
}

// BatchPermissionCheckRequest represents batch permission check request
type BatchPermissionCheckRequest struct {
	UserID         string                `json:"user_id" binding:"required"`
	OrganizationID string                `json:"organization_id" binding:"required"`
	Checks         []ResourceActionCheck `json:"checks" binding:"required,min=1"`
}

type ResourceActionCheck struct {
	Resource   string `json:"resource" binding:"required"`
	Action     string `json:"action" binding:"required"`
	PropertyID string `json:"property_id"`
}

// BatchPermissionCheckResponse represents batch permission check response
type BatchPermissionCheckResponse struct {
	Results map[string]bool `json:"results"`
}

// requireScopedOrganization rejects decision requests naming an
// organization other than the one the request is scoped to. Decisions for
// foreign tenants must stay unobservable.
func requireScopedOrganization(c *gin.Context, requested uuid.UUID) bool {
	scoped, ok := middleware.CurrentOrganizationID(c)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "User is not a member of any organization",
			"code":  "NO_ORGANIZATION_MEMBERSHIP",
		})
		return false
	}
	if requested != scoped {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Cannot query permissions for another organization",
			"code":  "CROSS_ORGANIZATION_ACCESS_DENIED",
		})
		return false
	}
	return true
}

// CheckPermission checks if a user may perform an action on a resource
// @Summary Check single permission
// @Description Decide whether a user may perform an action on a resource, optionally scoped to a property
// @Tags permission-checks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param check body PermissionCheckRequest true "Permission check request"
// @Success 200 {object} PermissionCheckResponse "Permission decision"
// @Failure 400 {object} map[string]interface{} "Invalid request format"
// @Failure 403 {object} map[string]interface{} "Organization scope mismatch"
// @Router /authz/check [post]
func (h *PermissionCheckHandler) CheckPermission(c *gin.Context) {
	var req PermissionCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid organization ID"})
		return
	}
	if !requireScopedOrganization(c, orgID) {
		return
	}

	action, err := models.ParseAction(req.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action"})
		return
	}

	var propertyID *uuid.UUID
	if req.PropertyID != "" {
		id, err := uuid.Parse(req.PropertyID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID"})
			return
		}
		propertyID = &id
	}

	decision := h.checker.CheckPermission(c.Request.Context(), userID, orgID, req.Resource, action, propertyID)

	c.JSON(http.StatusOK, PermissionCheckResponse{
		Allowed:    decision.Allowed,
		Reason:     decision.Reason,
		Resource:   decision.Resource,
		Action:     string(decision.Action),
		ScopeLevel: string(decision.ScopeLevel),
	})
}

// BatchCheckPermissions checks multiple permissions at once
// @Summary Check multiple permissions
// @Description Check multiple resource-action permissions for a user in a single request
// @Tags permission-checks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param batch body BatchPermissionCheckRequest true "Batch permission check request"
// @Success 200 {object} BatchPermissionCheckResponse "Batch permission check results"
// @Failure 400 {object} map[string]interface{} "Invalid request format"
// @Failure 403 {object} map[string]interface{} "Organization scope mismatch"
// @Router /authz/batch-check [post]
func (h *PermissionCheckHandler) BatchCheckPermissions(c *gin.Context) {
	var req BatchPermissionCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid organization ID"})
		return
	}
	if !requireScopedOrganization(c, orgID) {
		return
	}

	results := make(map[string]bool)

	for _, check := range req.Checks {
		key := check.Resource + ":" + check.Action
		if check.PropertyID != "" {
			key += ":" + check.PropertyID
		}

		action, err := models.ParseAction(check.Action)
		if err != nil {
			results[key] = false
			continue
		}

		var propertyID *uuid.UUID
		if check.PropertyID != "" {
			id, err := uuid.Parse(check.PropertyID)
			if err != nil {
				results[key] = false
				continue
			}
			propertyID = &id
		}

		decision := h.checker.CheckPermission(c.Request.Context(), userID, orgID, check.Resource, action, propertyID)
		results[key] = decision.Allowed
	}

	c.JSON(http.StatusOK, BatchPermissionCheckResponse{Results: results})
}
