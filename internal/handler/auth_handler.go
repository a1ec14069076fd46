package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopcore/admin-guard/internal/config"
	"github.com/shopcore/admin-guard/internal/middleware"
	"github.com/shopcore/admin-guard/internal/model"
	"github.com/shopcore/admin-guard/internal/response"
	"github.com/shopcore/admin-guard/internal/service"
	"github.com/shopcore/admin-guard/internal/validator"
)

// AuthHandler handles registration, login, logout and the caller's profile.
type AuthHandler struct {
	authService     *service.AuthService
	approvalService *service.ApprovalService
	cookieName      string
	cookieSecure    bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(cfg *config.Config, authService *service.AuthService, approvalService *service.ApprovalService) *AuthHandler {
	return &AuthHandler{
		authService:     authService,
		approvalService: approvalService,
		cookieName:      cfg.CookieName,
		cookieSecure:    cfg.CookieSecure,
	}
}

// Register godoc
// POST /api/v1/admin-auth/register
// Creates a pending admin account. The reply is the same whether or not the
// email was already registered.
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.approvalService.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{
		"message": "Registration received. A principal administrator must approve the account before you can sign in.",
	})
}

// Login godoc
// POST /api/v1/admin-auth/login
// Verifies credentials, opens a session and returns a session-bound token.
// The token is also set as an HttpOnly cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), service.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setCookie(c, result.Token, time.Until(result.ExpiresAt))
	response.Success(c, http.StatusOK, result)
}

// Logout godoc
// POST /api/v1/admin-auth/logout
// Ends the session the request was made with.
func (h *AuthHandler) Logout(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	if err := h.authService.Logout(c.Request.Context(), p.Account.ID, p.SessionID); err != nil {
		response.Error(c, err)
		return
	}
	h.clearCookie(c)
	response.Success(c, http.StatusOK, gin.H{})
}

// LogoutAll godoc
// POST /api/v1/admin-auth/logout-all
// Ends every session of the caller, including the current one.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	n, err := h.authService.LogoutAll(c.Request.Context(), p.Account.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.clearCookie(c)
	response.Success(c, http.StatusOK, gin.H{"revoked_sessions": n})
}

// Me godoc
// GET /api/v1/admin-auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	profile, err := h.authService.Profile(c.Request.Context(), p.Account.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"admin": profile})
}

// UpdateNotifications godoc
// PATCH /api/v1/admin-auth/me/notifications
// Toggles email notifications. Omitted fields keep their value.
func (h *AuthHandler) UpdateNotifications(c *gin.Context) {
	var req model.NotificationPreferencesRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	p := middleware.GetPrincipal(c)
	profile, err := h.authService.UpdatePreferences(c.Request.Context(), p.Account.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"admin": profile})
}

func (h *AuthHandler) setCookie(c *gin.Context, token string, ttl time.Duration) {
	if h.cookieName == "" {
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookieName, token, int(ttl.Seconds()), "/", "", h.cookieSecure, true)
}

func (h *AuthHandler) clearCookie(c *gin.Context) {
	if h.cookieName == "" {
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", h.cookieSecure, true)
}
