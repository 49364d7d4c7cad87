package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"rentcore-backend/authz-service/middleware"
	"rentcore-backend/shared/authz"
	"rentcore-backend/shared/database/models"
)

// RoleHandler manages organization roles and user-role bindings.
type RoleHandler struct {
	db       *gorm.DB
	registry *authz.Registry
	store    *authz.Store
	recorder *authz.Recorder
	cache    DecisionInvalidator
}

// NewRoleHandler creates the handler.
func NewRoleHandler(db *gorm.DB, registry *authz.Registry, store *authz.Store, recorder *authz.Recorder, cache DecisionInvalidator) *RoleHandler {
	return &RoleHandler{
		db:       db,
		registry: registry,
		store:    store,
		recorder: recorder,
		cache:    cache,
	}
}

// CreateRoleRequest represents request body for creating a custom role
type CreateRoleRequest struct {
	Name        string               `json:"name" binding:"required"`
	Description string               `json:"description"`
	Level       int                  `json:"level" binding:"required,min=1"`
	Permissions models.PermissionMap `json:"permissions"`
}

// UpdateRoleRequest represents request body for updating a custom role
type UpdateRoleRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Level       *int                  `json:"level"`
	Permissions *models.PermissionMap `json:"permissions"`
}

// AssignRoleRequest binds a user to a role in the current organization
type AssignRoleRequest struct {
	UserID string `json:"user_id" binding:"required"`
	RoleID string `json:"role_id" binding:"required"`
}

// GetRoles lists roles available to the current organization
// @Summary List roles
// @Description Get system roles plus the organization's custom roles, ordered by level
// @Tags roles
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]string
// @Router /authz/roles [get]
func (h *RoleHandler) GetRoles(c *gin.Context) {
	orgID, _ := middleware.CurrentOrganizationID(c)

	roles, err := h.registry.RolesForOrganization(c.Request.Context(), orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve roles",
			"code":  "STORE_UNAVAILABLE",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": roles})
}

// CreateRole creates a custom organization role
// @Summary Create custom role
// @Description Create an organization-specific role at or below the caller's own level
// @Tags roles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param role body CreateRoleRequest true "Role definition"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /authz/roles [post]
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	orgID, _ := middleware.CurrentOrganizationID(c)

	if !h.levelAllows(c, userID, orgID, req.Level) {
		return
	}

	role := models.Role{
		Name:           req.Name,
		Description:    req.Description,
		Level:          req.Level,
		Permissions:    req.Permissions,
		IsSystemRole:   false,
		OrganizationID: &orgID,
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&role).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create role",
			"code":  "STORE_UNAVAILABLE",
		})
		return
	}

	h.recorder.Record(auditEvent(c, "role", role.ID.String(), nil, snapshot(role)))

	c.JSON(http.StatusCreated, gin.H{"data": role})
}

// UpdateRole mutates a custom organization role
// @Summary Update custom role
// @Description Update an organization-specific role; system roles are immutable
// @Tags roles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Role ID"
// @Param role body UpdateRoleRequest true "Role changes"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /authz/roles/{id} [put]
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	roleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role ID"})
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	orgID, _ := middleware.CurrentOrganizationID(c)

	var role models.Role
	err = h.db.WithContext(c.Request.Context()).First(&role, "id = ?", roleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Role not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load role",
			"code":  "STORE_UNAVAILABLE",
		})
		return
	}

	if role.IsSystemRole || role.OrganizationID == nil || *role.OrganizationID != orgID {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "System roles and foreign roles cannot be modified",
			"code":  "FORBIDDEN",
		})
		return
	}

	oldValues := snapshot(role)

	if req.Name != "" {
		role.Name = req.Name
	}
	if req.Description != "" {
		role.Description = req.Description
	}
	if req.Level != nil {
		if !h.levelAllows(c, userID, orgID, *req.Level) {
			return
		}
		role.Level = *req.Level
	}
	if req.Permissions != nil {
		role.Permissions = *req.Permissions
	}

	if err := h.db.WithContext(c.Request.Context()).Save(&role).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to update role",
			"code":  "STORE_UNAVAILABLE",
		})
		return
	}

	h.recorder.Record(auditEvent(c, "role", role.ID.String(), oldValues, snapshot(role)))

	c.JSON(http.StatusOK, gin.H{"data": role})
}

// AssignRole binds a user to a role
// @Summary Assign role to user
// @Description Create an active user-role binding; the role's level must not exceed the caller's
// @Tags roles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param assignment body AssignRoleRequest true "Assignment"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /authz/user-roles [post]
func (h *RoleHandler) AssignRole(c *gin.Context) {
	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	targetUserID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	roleID, err := uuid.Parse(req.RoleID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role ID"})
		return
	}

	callerID, _ := middleware.CurrentUserID(c)
	orgID, _ := middleware.CurrentOrganizationID(c)

	role, err := h.registry.RoleByID(c.Request.Context(), roleID)
	if err != nil {
		if errors.Is(err, authz.ErrRoleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Role not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load role",
			"code":  "STORE_UNAVAILABLE",
		})
		return
	}

	// Custom roles from other organizations are invisible here.
	if role.OrganizationID != nil && *role.OrganizationID != orgID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Role not found"})
		return
	}

	if !h.levelAllows(c, callerID, orgID, role.Level) {
		return
	}

	binding, err := h.store.AssignRole(c.Request.Context(), targetUserID, roleID, orgID, &callerID)
	if err != nil {
		if authz.IsDuplicateAssignment(err) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "User already holds this role",
				"code":  "DUPLICATE_ASSIGNMENT",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to assign role",
			"code":  "STORE_UNAVAILABLE",
		})
		return
	}

	h.recorder.Record(auditEvent(c, "user_role", binding.ID.String(), nil, snapshot(binding)))
	invalidateDecisions(c, h.cache, targetUserID)

	c.JSON(http.StatusCreated, gin.H{"data": binding})
}

// RevokeRole deactivates a user-role binding
// @Summary Revoke role from user
// @Description Deactivate a user-role binding; rows are kept for the audit trail
// @Tags roles
// @Produce json
// @Security BearerAuth
// @Param id path string true "Binding ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /authz/user-roles/{id} [delete]
func (h *RoleHandler) RevokeRole(c *gin.Context) {
	bindingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid binding ID"})
		return
	}

	orgID, _ := middleware.CurrentOrganizationID(c)
	binding, err := h.store.RevokeUserRole(c.Request.Context(), bindingID, orgID)
	if err != nil {
		if errors.Is(err, authz.ErrAssignmentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Binding not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to revoke role",
			"code":  "STORE_UNAVAILABLE",
		})
		return
	}

	oldValues := snapshot(binding)
	binding.IsActive = false

	h.recorder.Record(auditEvent(c, "user_role", binding.ID.String(), oldValues, snapshot(binding)))
	invalidateDecisions(c, h.cache, binding.UserID)

	c.JSON(http.StatusOK, gin.H{"message": "Role revoked"})
}

// levelAllows enforces the hierarchy invariant: a caller may only create or
// assign roles at or below their own highest active level.
func (h *RoleHandler) levelAllows(c *gin.Context, callerID, orgID uuid.UUID, requiredLevel int) bool {
	callerLevel, err := h.store.MaxRoleLevel(c.Request.Context(), callerID, orgID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Insufficient role level",
			"code":  "INSUFFICIENT_ROLE_LEVEL",
		})
		c.Abort()
		return false
	}
	if requiredLevel > callerLevel {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Cannot grant a role above your own level",
			"code":  "INSUFFICIENT_ROLE_LEVEL",
			"details": gin.H{
				"required_level": requiredLevel,
				"current_level":  callerLevel,
			},
		})
		c.Abort()
		return false
	}
	return true
}
