package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rentcore-backend/shared/utils/cache"
)

// CacheHandler exposes decision-cache maintenance endpoints.
type CacheHandler struct{}

// NewCacheHandler creates the handler.
func NewCacheHandler() *CacheHandler {
	return &CacheHandler{}
}

// GetCacheStats returns Redis connection and key statistics
// @Summary Cache statistics
// @Description Get decision cache statistics
// @Tags cache
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]string
// @Router /authz/cache/stats [get]
func (h *CacheHandler) GetCacheStats(c *gin.Context) {
	manager := cache.GetCacheManager()
	if manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Cache is not available",
			"code":  "CACHE_UNAVAILABLE",
		})
		return
	}

	stats, err := manager.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to read cache stats",
			"code":  "CACHE_UNAVAILABLE",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// InvalidateUserCache drops all cached decisions for one user
// @Summary Invalidate user decisions
// @Description Remove every cached permission decision for the given user
// @Tags cache
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "User ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /authz/cache/users/{user_id} [delete]
func (h *CacheHandler) InvalidateUserCache(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	manager := cache.GetCacheManager()
	if manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Cache is not available",
			"code":  "CACHE_UNAVAILABLE",
		})
		return
	}

	removed, err := manager.InvalidateUserDecisions(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to invalidate user decisions",
			"code":  "CACHE_UNAVAILABLE",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User decisions invalidated",
		"removed": removed,
	})
}

// InvalidateAllCache drops every cached decision
// @Summary Invalidate all decisions
// @Description Remove every cached permission decision
// @Tags cache
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /authz/cache [delete]
func (h *CacheHandler) InvalidateAllCache(c *gin.Context) {
	manager := cache.GetCacheManager()
	if manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Cache is not available",
			"code":  "CACHE_UNAVAILABLE",
		})
		return
	}

	removed, err := manager.InvalidateAllDecisions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to invalidate decisions",
			"code":  "CACHE_UNAVAILABLE",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "All decisions invalidated",
		"removed": removed,
	})
}
