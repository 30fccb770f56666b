package httpapi

import (
	"net/http"
	"sync/atomic"
	"time"

	"catalog-platform/internal/bootstrap"
	"catalog-platform/internal/idp"
	"catalog-platform/internal/tenant"
	"catalog-platform/internal/token"
	"catalog-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Tokens    *token.Manager
	Tenants   *tenant.ContextStore
	Locks     *tenant.LockRegistry
	Bootstrap *bootstrap.Workflow
	IDP       *idp.Client

	// landingPending is set on a fresh login and consumed by the first
	// session read, driving the one-time navigation to the landing view.
	landingPending atomic.Bool
}

// MarkLandingPending arms the one-time landing redirect. Wired to the token
// manager's fresh-login callback.
func (h *Handlers) MarkLandingPending() { h.landingPending.Store(true) }

// --- Session ---

func (h *Handlers) Session(c *gin.Context) {
	resp := gin.H{"authenticated": h.Tokens.IsAuthenticated()}

	if t := h.Tokens.CurrentToken(); t != nil {
		resp["email"] = t.Claims.Email
		resp["roles"] = t.Claims.Roles
		resp["expires_at"] = t.ExpiresAt().UTC().Format(time.RFC3339)
	}
	if h.Bootstrap != nil {
		resp["bootstrap_state"] = h.Bootstrap.State()
	}
	if h.landingPending.CompareAndSwap(true, false) {
		resp["redirect_to"] = "/landing"
	}
	c.JSON(http.StatusOK, resp)
}

// RenewalRequest lets the request-decoration layer signal an authorization
// failure it observed; the manager forces an unconditional renewal.
func (h *Handlers) RenewalRequest(c *gin.Context) {
	if err := h.Tokens.NotifyAuthFailure(c.Request.Context()); err != nil {
		logger.FromGin(c).Warn("forced renewal failed", "err", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "re-authentication required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"renewed": true})
}

func (h *Handlers) Logout(c *gin.Context) {
	if err := h.Tokens.Logout(c.Request.Context()); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logged_out": true})
}

type bootstrapResetRequest struct {
	Email string `json:"email"`
}

// BootstrapReset is the explicit cache-clear action recovering a stuck
// in-flight registration flag.
func (h *Handlers) BootstrapReset(c *gin.Context) {
	var req bootstrapResetRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email required"})
		return
	}
	if err := h.Bootstrap.Reset(c.Request.Context(), req.Email); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.Bootstrap.State()})
}

// --- Tenant selection ---

func (h *Handlers) Selection(c *gin.Context) {
	resp := gin.H{
		"selected_tenant_id": h.Tenants.SelectedTenantID(),
		"tenants":            h.Tenants.Tenants(),
	}
	if t, ok := h.Tenants.SelectedTenant(); ok {
		resp["tenant"] = t
	}
	if h.Locks != nil {
		resp["locked"] = h.Locks.IsLocked()
		if reason, ok := h.Locks.CurrentReason(); ok {
			resp["lock_reason"] = reason
		}
	}
	c.JSON(http.StatusOK, resp)
}

type selectRequest struct {
	TenantID string `json:"tenant_id"`
}

// Select changes the selected tenant. This is the UI path, so an active
// selection lock rejects the change; programmatic callers inside the process
// go through the store directly.
func (h *Handlers) Select(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TenantID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "tenant_id required"})
		return
	}
	if h.Locks != nil && h.Locks.IsLocked() {
		reason, _ := h.Locks.CurrentReason()
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "tenant selection is locked", "reason": reason})
		return
	}
	if err := h.Tenants.SetSelectedTenantID(c.Request.Context(), req.TenantID); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "selection update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"selected_tenant_id": h.Tenants.SelectedTenantID()})
}

// ReloadTenants retries the accessible-tenant fetch and reconciles the
// selection against the result. This is the manual retry behind the
// transient "tenant list unavailable" notice; it recovers an instance whose
// startup fetch failed.
func (h *Handlers) ReloadTenants(c *gin.Context) {
	if err := h.Tenants.ReloadTenants(c.Request.Context()); err != nil {
		logger.FromGin(c).Warn("tenant list reload failed", "err", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "tenant list unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"selected_tenant_id": h.Tenants.SelectedTenantID(),
		"tenants":            h.Tenants.Tenants(),
	})
}

// RefreshSelection re-reads the persisted selection, covering notification
// gaps; the UI calls it when a window regains focus or becomes visible.
func (h *Handlers) RefreshSelection(c *gin.Context) {
	if err := h.Tenants.Refresh(c.Request.Context()); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"selected_tenant_id": h.Tenants.SelectedTenantID()})
}

type lockRequest struct {
	LockID string  `json:"lock_id"`
	Reason *string `json:"reason"`
}

// SetLock acquires (reason present) or releases (reason null) a named
// selection lock.
func (h *Handlers) SetLock(c *gin.Context) {
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.LockID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "lock_id required"})
		return
	}
	h.Locks.SetLock(req.LockID, req.Reason)
	c.JSON(http.StatusOK, gin.H{"locked": h.Locks.IsLocked()})
}

// --- Identity attribute proxy ---

type attributeRequest struct {
	SubjectID string   `json:"subject_id"`
	TenantIDs []string `json:"tenant_ids"`
}

// UpdateTenantAttribute proxies the admin-privileged identity-attribute
// update through a same-origin route so browsers never hold the admin
// credential.
func (h *Handlers) UpdateTenantAttribute(c *gin.Context) {
	var req attributeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SubjectID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "subject_id required"})
		return
	}
	if err := h.IDP.UpdateTenantAttribute(c.Request.Context(), req.SubjectID, req.TenantIDs); err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "attribute update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}
