package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"rentcore-backend/authz-service/middleware"
	"rentcore-backend/authz-service/services"
	"rentcore-backend/shared/database/models"
	"rentcore-backend/shared/utils/query"
)

// AuditHandler serves the organization's audit trail.
type AuditHandler struct {
	db      *gorm.DB
	stream  *services.AuditStreamManager
	archive *services.AuditArchiveService
}

// NewAuditHandler creates the handler. archive may be nil when object
// storage is not configured.
func NewAuditHandler(db *gorm.DB, stream *services.AuditStreamManager, archive *services.AuditArchiveService) *AuditHandler {
	return &AuditHandler{
		db:      db,
		stream:  stream,
		archive: archive,
	}
}

// ExportAuditRequest selects the time range to archive
type ExportAuditRequest struct {
	Since string `json:"since" binding:"required"`
	Until string `json:"until" binding:"required"`
}

// GetAuditLogs lists audit entries in chronological order
// @Summary List audit logs
// @Description Get the organization's audit trail with filtering and pagination
// @Tags audit
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Param since query string false "RFC3339 lower bound"
// @Param until query string false "RFC3339 upper bound"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]string
// @Router /authz/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	orgID, _ := middleware.CurrentOrganizationID(c)
	params := query.ParseQueryParams(c)

	baseQuery := h.db.WithContext(c.Request.Context()).
		Model(&models.AuditLog{}).
		Where("organization_id = ?", orgID)

	allowedFilters := map[string]string{
		"entity_type": "entity_type",
		"entity_id":   "entity_id",
		"user_id":     "user_id",
		"action":      "action",
	}
	baseQuery = query.ApplyFilters(baseQuery, params.Filters, allowedFilters)
	baseQuery = query.ApplyTimeRange(baseQuery, "created_at", params.Since, params.Until)

	var total int64
	if err := baseQuery.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count audit logs",
			"code":  "STORE_UNAVAILABLE",
		})
		return
	}

	allowedSort := map[string]string{
		"created_at":  "created_at",
		"entity_type": "entity_type",
		"action":      "action",
	}
	baseQuery = query.ApplySort(baseQuery, params.Sort, allowedSort)
	baseQuery = query.ApplyPagination(baseQuery, params.Page, params.Limit)

	var entries []models.AuditLog
	if err := baseQuery.Find(&entries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve audit logs",
			"code":  "STORE_UNAVAILABLE",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       entries,
		"pagination": query.BuildPaginationResponse(params.Page, params.Limit, total),
	})
}

// GetEntityHistory lists the audit trail of a single entity
// @Summary Entity audit history
// @Description Get all audit entries for one entity, oldest first
// @Tags audit
// @Produce json
// @Security BearerAuth
// @Param entity_type path string true "Entity type"
// @Param entity_id path string true "Entity ID"
// @Success 200 {object} map[string]interface{}
// @Router /authz/audit-logs/{entity_type}/{entity_id} [get]
func (h *AuditHandler) GetEntityHistory(c *gin.Context) {
	orgID, _ := middleware.CurrentOrganizationID(c)
	entityType := c.Param("entity_type")
	entityID := c.Param("entity_id")

	var entries []models.AuditLog
	err := h.db.WithContext(c.Request.Context()).
		Where("organization_id = ? AND entity_type = ? AND entity_id = ?", orgID, entityType, entityID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve entity history",
			"code":  "STORE_UNAVAILABLE",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries})
}

// StreamAuditLogs upgrades to a websocket that receives live audit entries
// @Summary Live audit stream
// @Description Upgrade to a websocket delivering audit entries as they are recorded
// @Tags audit
// @Security BearerAuth
// @Router /authz/audit-logs/stream [get]
func (h *AuditHandler) StreamAuditLogs(c *gin.Context) {
	h.stream.HandleConnection(c)
}

// ExportAuditLogs archives a time range of audit entries to object storage
// @Summary Export audit logs
// @Description Write the selected range as JSON lines to the archive bucket
// @Tags audit
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param range body ExportAuditRequest true "Time range"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /authz/audit-logs/export [post]
func (h *AuditHandler) ExportAuditLogs(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Audit archive storage is not configured",
			"code":  "ARCHIVE_UNAVAILABLE",
		})
		return
	}

	var req ExportAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	since, err := time.Parse(time.RFC3339, req.Since)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid since timestamp, expected RFC3339"})
		return
	}
	until, err := time.Parse(time.RFC3339, req.Until)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid until timestamp, expected RFC3339"})
		return
	}
	if until.Before(since) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "until must not precede since"})
		return
	}

	orgID, _ := middleware.CurrentOrganizationID(c)

	result, err := h.archive.ExportRange(c.Request.Context(), orgID, since, until)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to export audit logs",
			"code":  "ARCHIVE_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
