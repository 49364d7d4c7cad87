package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rentcore-backend/shared/authz"
	utils "rentcore-backend/shared/utils/auth"
)

// Authenticate validates the bearer credential and resolves the principal.
// Failures are terminal: the request never reaches business logic.
func (g *Gateway) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header is required",
				"code":  "INVALID_CREDENTIAL",
			})
			c.Abort()
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization format. Expected Bearer {token}",
				"code":  "INVALID_CREDENTIAL",
			})
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(tokenParts[1])
		if err != nil {
			if errors.Is(err, utils.ErrTokenExpired) {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error": "Credential expired",
					"code":  "EXPIRED_CREDENTIAL",
				})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error": "Invalid credential",
					"code":  "INVALID_CREDENTIAL",
				})
			}
			c.Abort()
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid user ID in token",
				"code":  "INVALID_CREDENTIAL",
			})
			c.Abort()
			return
		}

		user, err := g.users.UserByID(c.Request.Context(), userID)
		if err != nil {
			if authz.IsStoreUnavailable(err) {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"error": "User store unavailable",
					"code":  "STORE_UNAVAILABLE",
				})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error": "Invalid credential",
					"code":  "INVALID_CREDENTIAL",
				})
			}
			c.Abort()
			return
		}

		if !user.IsActive() {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Account is deactivated",
				"code":  "INACTIVE_ACCOUNT",
			})
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextUserIDKey, user.ID)

		c.Next()
	}
}
