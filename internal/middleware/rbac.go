package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/loan-portal-api/internal/models"
	appErrors "github.com/noah-isme/loan-portal-api/pkg/errors"
	"github.com/noah-isme/loan-portal-api/pkg/response"
)

// RequireRoles admits staff-namespace sessions holding one of roles. An
// applicant token never passes, even if its role claim were forged to match.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		claims := Claims(c)
		switch {
		case claims == nil:
			response.Error(c, appErrors.ErrUnauthorized)
		case claims.Namespace != models.NamespaceStaff || !allowed[claims.Role]:
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "staff access required"))
		default:
			c.Next()
			return
		}
		c.Abort()
	}
}
