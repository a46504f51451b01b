package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/transcript-api/internal/models"
	appErrors "github.com/noah-isme/transcript-api/pkg/errors"
	"github.com/noah-isme/transcript-api/pkg/response"
)

// RBAC enforces role-based access control for routes.
func RBAC(allowed ...models.UserRole) gin.HandlerFunc {
	allowedRoles := make(map[models.UserRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedRoles[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok || claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		if claims.Role == models.RoleStudent && !claims.IsStudent() {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "token carries no matriculation number"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireStudent admits only student sessions.
func RequireStudent() gin.HandlerFunc {
	return RBAC(models.RoleStudent)
}

// RequireStaff admits records-office staff and admins.
func RequireStaff() gin.HandlerFunc {
	return RBAC(models.RoleStaff, models.RoleAdmin)
}
