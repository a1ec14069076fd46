package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shopcore/admin-guard/internal/response"
	"github.com/shopcore/admin-guard/internal/service"
)

const (
	// ContextKeyPrincipal is the Gin context key for the authenticated admin.
	ContextKeyPrincipal = "principal"
	// ContextKeyToken holds the raw token the principal was resolved from.
	ContextKeyToken = "auth_token"
)

// Authenticator resolves a raw token to the admin it belongs to.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*service.Principal, error)
}

// RequireAdmin validates the session-bound token and loads the live account.
// The token is read from the Authorization header, then the auth cookie, and
// for WebSocket upgrades from ?token= as well.
func RequireAdmin(auth Authenticator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c, cookieName)

		principal, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.AbortError(c, err)
			return
		}

		c.Set(ContextKeyPrincipal, principal)
		c.Set(ContextKeyToken, token)
		c.Next()
	}
}

// ExtractToken returns the bearer token carried by the request, or "".
func ExtractToken(c *gin.Context, cookieName string) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	if cookieName != "" {
		if v, err := c.Cookie(cookieName); err == nil && v != "" {
			return v
		}
	}

	// Browsers cannot set headers on a WebSocket handshake.
	if c.IsWebsocket() {
		return c.Query("token")
	}
	return ""
}

// GetPrincipal retrieves the authenticated admin from the Gin context.
func GetPrincipal(c *gin.Context) *service.Principal {
	val, exists := c.Get(ContextKeyPrincipal)
	if !exists {
		return nil
	}
	p, ok := val.(*service.Principal)
	if !ok {
		return nil
	}
	return p
}

// GetToken returns the token RequireAdmin accepted, or "".
func GetToken(c *gin.Context) string {
	return c.GetString(ContextKeyToken)
}
