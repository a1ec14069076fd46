package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore forbids caching of responses. Every admin-auth response carries
// tokens, profiles or session data.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")
		c.Next()
	}
}
