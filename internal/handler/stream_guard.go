package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopcore/admin-guard/internal/middleware"
	"github.com/shopcore/admin-guard/internal/service"
)

// streamRecheckInterval bounds how long a stream outlives its session.
const streamRecheckInterval = 15 * time.Second

// streamGuard re-validates the principal behind a long-lived stream with the
// token presented at connect time.
type streamGuard struct {
	auth  middleware.Authenticator
	token string
}

func newStreamGuard(auth middleware.Authenticator, c *gin.Context) streamGuard {
	return streamGuard{auth: auth, token: middleware.GetToken(c)}
}

// check fails once the session is revoked or expired, or the account can no
// longer act as principal.
func (g streamGuard) check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	p, err := g.auth.Authenticate(ctx, g.token)
	if err != nil {
		return err
	}
	return service.RequirePrincipal(p)
}
