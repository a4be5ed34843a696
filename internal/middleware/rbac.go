package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/provadm-api/internal/models"
	appErrors "github.com/noah-isme/provadm-api/pkg/errors"
	"github.com/noah-isme/provadm-api/pkg/response"
)

// RequireRoles enforces a coarse route-level role allow-list. The
// fine-grained scope decision stays in the authorization service; this only
// keeps obviously-unqualified roles off reviewer routes.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if _, ok := allowed[claims.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireReviewer admits district and province reviewers plus system
// administrators.
func RequireReviewer() gin.HandlerFunc {
	return RequireRoles(models.RoleDistrictReviewer, models.RoleProvinceReviewer, models.RoleSystemAdmin)
}
