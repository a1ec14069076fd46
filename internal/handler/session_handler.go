package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopcore/admin-guard/internal/middleware"
	"github.com/shopcore/admin-guard/internal/response"
	"github.com/shopcore/admin-guard/internal/service"
)

// SessionHandler lets an admin inspect and revoke their own sessions.
type SessionHandler struct {
	authService *service.AuthService
}

func NewSessionHandler(authService *service.AuthService) *SessionHandler {
	return &SessionHandler{authService: authService}
}

// List godoc
// GET /api/v1/admin-auth/sessions
// Lists usable sessions, most recently active first, flagging the caller's.
func (h *SessionHandler) List(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	sessions, err := h.authService.ListSessions(c.Request.Context(), p.Account.ID, p.SessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// Revoke godoc
// DELETE /api/v1/admin-auth/sessions/:id
func (h *SessionHandler) Revoke(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	p := middleware.GetPrincipal(c)
	if err := h.authService.RevokeSession(c.Request.Context(), p.Account.ID, sessionID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"current": sessionID == p.SessionID})
}
