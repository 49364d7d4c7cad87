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

// AssignmentHandler manages per-property assignments.
type AssignmentHandler struct {
	db       *gorm.DB
	store    *authz.Store
	recorder *authz.Recorder
	cache    DecisionInvalidator
}

// NewAssignmentHandler creates the handler.
func NewAssignmentHandler(db *gorm.DB, store *authz.Store, recorder *authz.Recorder, cache DecisionInvalidator) *AssignmentHandler {
	return &AssignmentHandler{
		db:       db,
		store:    store,
		recorder: recorder,
		cache:    cache,
	}
}

// CreateAssignmentRequest represents request body for assigning a user to a property
type CreateAssignmentRequest struct {
	UserID      string                `json:"user_id" binding:"required"`
	PropertyID  string                `json:"property_id" binding:"required"`
	RoleType    string                `json:"role_type" binding:"required"`
	Permissions *models.PermissionMap `json:"permissions"`
}

// GetAssignments lists a user's active property assignments
// @Summary List property assignments
// @Description Get active property assignments for a user in the current organization
// @Tags assignments
// @Produce json
// @Security BearerAuth
// @Param user_id query string false "User ID (defaults to caller)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /authz/assignments [get]
func (h *AssignmentHandler) GetAssignments(c *gin.Context) {
	orgID, _ := middleware.CurrentOrganizationID(c)

	userID, _ := middleware.CurrentUserID(c)
	if raw := c.Query("user_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
			return
		}
		userID = parsed
	}

	assignments, err := h.store.ActiveAssignmentsForUser(c.Request.Context(), userID, orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve assignments",
			"code":  "STORE_UNAVAILABLE",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": assignments})
}

// CreateAssignment assigns a user to a property
// @Summary Assign user to property
// @Description Create an active property assignment with a role type and optional permission override
// @Tags assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param assignment body CreateAssignmentRequest true "Assignment"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /authz/assignments [post]
func (h *AssignmentHandler) CreateAssignment(c *gin.Context) {
	var req CreateAssignmentRequest
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
	propertyID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID"})
		return
	}
	roleType, err := models.ParseRoleType(req.RoleType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid role type",
			"details": err.Error(),
		})
		return
	}

	callerID, _ := middleware.CurrentUserID(c)
	orgID, _ := middleware.CurrentOrganizationID(c)

	// The property must belong to the caller's organization.
	var property models.Property
	err = h.db.WithContext(c.Request.Context()).
		First(&property, "id = ? AND organization_id = ?", propertyID, orgID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load property",
			"code":  "STORE_UNAVAILABLE",
		})
		return
	}

	assignment, err := h.store.AssignProperty(c.Request.Context(), targetUserID, propertyID, roleType, orgID, &callerID, req.Permissions)
	if err != nil {
		if authz.IsDuplicateAssignment(err) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "User is already assigned to this property",
				"code":  "DUPLICATE_ASSIGNMENT",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create assignment",
			"code":  "STORE_UNAVAILABLE",
		})
		return
	}

	h.recorder.Record(auditEvent(c, "property_assignment", assignment.ID.String(), nil, snapshot(assignment)))
	invalidateDecisions(c, h.cache, targetUserID)

	c.JSON(http.StatusCreated, gin.H{"data": assignment})
}

// RevokeAssignment deactivates a property assignment
// @Summary Revoke property assignment
// @Description Deactivate a property assignment; rows are kept for the audit trail
// @Tags assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /authz/assignments/{id} [delete]
func (h *AssignmentHandler) RevokeAssignment(c *gin.Context) {
	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid assignment ID"})
		return
	}

	orgID, _ := middleware.CurrentOrganizationID(c)
	assignment, err := h.store.RevokeAssignment(c.Request.Context(), assignmentID, orgID)
	if err != nil {
		if errors.Is(err, authz.ErrAssignmentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Assignment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to revoke assignment",
			"code":  "STORE_UNAVAILABLE",
		})
		return
	}

	oldValues := snapshot(assignment)
	assignment.IsActive = false

	h.recorder.Record(auditEvent(c, "property_assignment", assignment.ID.String(), oldValues, snapshot(assignment)))
	invalidateDecisions(c, h.cache, assignment.UserID)

	c.JSON(http.StatusOK, gin.H{"message": "Assignment revoked"})
}
