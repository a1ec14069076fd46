package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopcore/admin-guard/internal/middleware"
	"github.com/shopcore/admin-guard/internal/model"
	"github.com/shopcore/admin-guard/internal/response"
	"github.com/shopcore/admin-guard/internal/service"
	"github.com/shopcore/admin-guard/internal/validator"
)

const resetRequestedMessage = "If an active account uses this email, a reset code has been sent."

// PasswordHandler handles password change and the reset-code flow.
type PasswordHandler struct {
	authService  *service.AuthService
	resetService *service.PasswordResetService
}

// NewPasswordHandler creates a new PasswordHandler.
func NewPasswordHandler(authService *service.AuthService, resetService *service.PasswordResetService) *PasswordHandler {
	return &PasswordHandler{authService: authService, resetService: resetService}
}

// Change godoc
// POST /api/v1/admin-auth/password/change
// Replaces the password and signs out every other session.
func (h *PasswordHandler) Change(c *gin.Context) {
	var req model.ChangePasswordRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	p := middleware.GetPrincipal(c)
	revoked, err := h.authService.ChangePassword(c.Request.Context(), service.ChangePasswordInput{
		AccountID:        p.Account.ID,
		CurrentSessionID: p.SessionID,
		CurrentPassword:  req.CurrentPassword,
		NewPassword:      req.NewPassword,
		IP:               c.ClientIP(),
		UserAgent:        c.Request.UserAgent(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked_sessions": revoked})
}

// RequestReset godoc
// POST /api/v1/admin-auth/password/reset-request
// Always answers the same way so the endpoint cannot be used to probe emails.
func (h *PasswordHandler) RequestReset(c *gin.Context) {
	var req model.ResetRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.resetService.RequestReset(c.Request.Context(), req.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"message": resetRequestedMessage})
}

// VerifyCode godoc
// POST /api/v1/admin-auth/password/verify-code
// Checks a code without consuming it.
func (h *PasswordHandler) VerifyCode(c *gin.Context) {
	var req model.VerifyResetCodeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.resetService.VerifyCode(c.Request.Context(), req.Email, req.Code); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"valid": true})
}

// Reset godoc
// POST /api/v1/admin-auth/password/reset
// Consumes the code, sets the new password and signs out every session.
func (h *PasswordHandler) Reset(c *gin.Context) {
	var req model.ResetPasswordRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.resetService.ResetPassword(c.Request.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Password updated. Please sign in again."})
}
