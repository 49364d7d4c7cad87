package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OrganizationHeader optionally carries the caller's claimed organization.
// It can only ever confirm the user's real organization, never widen it.
const OrganizationHeader = "X-Organization-ID"

// ScopeOrganization binds the request to the authenticated user's
// organization. A conflicting organization header is a hard boundary
// violation, never silently reassigned.
func (g *Gateway) ScopeOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
				"code":  "INVALID_CREDENTIAL",
			})
			c.Abort()
			return
		}

		requested := c.GetHeader(OrganizationHeader)
		if requested != "" {
			requestedID, err := uuid.Parse(requested)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Invalid organization ID header",
					"code":  "BAD_REQUEST",
				})
				c.Abort()
				return
			}

			if user.OrganizationID == nil || *user.OrganizationID != requestedID {
				c.JSON(http.StatusForbidden, gin.H{
					"error": "Access to the requested organization is denied",
					"code":  "CROSS_ORGANIZATION_ACCESS_DENIED",
				})
				c.Abort()
				return
			}
		}

		if user.OrganizationID != nil {
			c.Set(ContextOrganizationIDKey, *user.OrganizationID)
		}

		c.Next()
	}
}

// RequireOrganization rejects users without a bound organization
// (pre-migration accounts).
func (g *Gateway) RequireOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentOrganizationID(c); !ok {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "User is not a member of any organization",
				"code":  "NO_ORGANIZATION_MEMBERSHIP",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
