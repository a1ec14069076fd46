package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/shopcore/admin-guard/internal/response"
	"github.com/shopcore/admin-guard/internal/service"
)

// RequirePrincipal lets only principal administrators through.
// It must run after RequireAdmin.
func RequirePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := GetPrincipal(c)
		if p == nil {
			response.AbortError(c, service.ErrNoToken)
			return
		}
		if err := service.RequirePrincipal(p); err != nil {
			response.AbortError(c, err)
			return
		}
		c.Next()
	}
}
