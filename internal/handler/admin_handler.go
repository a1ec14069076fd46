package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shopcore/admin-guard/internal/middleware"
	"github.com/shopcore/admin-guard/internal/model"
	"github.com/shopcore/admin-guard/internal/response"
	"github.com/shopcore/admin-guard/internal/service"
	"github.com/shopcore/admin-guard/internal/validator"
)

// AdminHandler exposes the principal-only account management endpoints.
type AdminHandler struct {
	approvalService *service.ApprovalService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(approvalService *service.ApprovalService) *AdminHandler {
	return &AdminHandler{approvalService: approvalService}
}

// List godoc
// GET /api/v1/admin-auth/admins?status=pending
func (h *AdminHandler) List(c *gin.Context) {
	var status *model.Status
	if raw := c.Query("status"); raw != "" {
		s := model.Status(raw)
		if !s.Valid() {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
				"status": "status must be one of pending, approved, rejected, suspended",
			})
			return
		}
		status = &s
	}

	admins, err := h.approvalService.ListAccounts(c.Request.Context(), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"admins": admins})
}

// Pending godoc
// GET /api/v1/admin-auth/admins/pending
func (h *AdminHandler) Pending(c *gin.Context) {
	admins, err := h.approvalService.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"admins": admins})
}

// Approve godoc
// POST /api/v1/admin-auth/admins/:id/approve
func (h *AdminHandler) Approve(c *gin.Context) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}
	p := middleware.GetPrincipal(c)
	profile, err := h.approvalService.Approve(c.Request.Context(), p.Account, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"admin": profile})
}

// Reject godoc
// POST /api/v1/admin-auth/admins/:id/reject
func (h *AdminHandler) Reject(c *gin.Context) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}

	var req model.RejectRequest
	// The body is optional; an empty one means no reason.
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	p := middleware.GetPrincipal(c)
	profile, err := h.approvalService.Reject(c.Request.Context(), p.Account, id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"admin": profile})
}

// ToggleStatus godoc
// POST /api/v1/admin-auth/admins/:id/toggle-status
// Suspends an approved admin or reinstates a suspended one.
func (h *AdminHandler) ToggleStatus(c *gin.Context) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}
	p := middleware.GetPrincipal(c)
	profile, err := h.approvalService.ToggleStatus(c.Request.Context(), p.Account, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"admin": profile})
}

// Unlock godoc
// POST /api/v1/admin-auth/admins/:id/unlock
func (h *AdminHandler) Unlock(c *gin.Context) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}
	p := middleware.GetPrincipal(c)
	profile, err := h.approvalService.Unlock(c.Request.Context(), p.Account, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"admin": profile})
}

// Delete godoc
// DELETE /api/v1/admin-auth/admins/:id
// Soft-deletes the account and ends its sessions.
func (h *AdminHandler) Delete(c *gin.Context) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}
	p := middleware.GetPrincipal(c)
	if err := h.approvalService.Delete(c.Request.Context(), p.Account, id); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseAccountID(c *gin.Context) (string, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return "", false
	}
	return id.String(), true
}
