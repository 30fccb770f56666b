package main

import (
	"catalog-platform/internal/bootstrap"
	"catalog-platform/internal/httpapi"
	"catalog-platform/internal/idp"
	"catalog-platform/internal/tenant"
	"catalog-platform/internal/token"

	"github.com/gin-gonic/gin"
)

func newHandlers(m *token.Manager, locks *tenant.LockRegistry, flow *bootstrap.Workflow, client *idp.Client) *httpapi.Handlers {
	return &httpapi.Handlers{
		Tokens:    m,
		Locks:     locks,
		Bootstrap: flow,
		IDP:       client,
	}
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h *httpapi.Handlers, m *token.Manager) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/session", h.Session)

	// session-scoped API group
	api := r.Group("/", httpapi.RequireSession(m))
	{
		api.POST("/session/renewals", h.RenewalRequest)
		api.POST("/session/logout", h.Logout)
		api.POST("/session/bootstrap/reset", h.BootstrapReset)

		api.GET("/tenant/selection", h.Selection)
		api.PUT("/tenant/selection", h.Select)
		api.POST("/tenant/selection/refresh", h.RefreshSelection)
		api.POST("/tenant/reload", h.ReloadTenants)
		api.PUT("/tenant/locks", h.SetLock)

		// Admin-privileged identity attribute mirror, proxied same-origin so
		// the admin credential never leaves the server.
		api.PUT("/internal/identity/attributes", h.UpdateTenantAttribute)
	}
}
