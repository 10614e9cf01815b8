// Package http wires the admin HTTP API.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appentitlement "glint/internal/application/entitlement"
	"glint/internal/interfaces/http/handlers"
	"glint/internal/interfaces/http/middleware"
	"glint/internal/shared/config"
)

// NewRouter builds the gin engine for the admin API.
func NewRouter(gate *appentitlement.GateService, cfg config.AdminConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	entitlements := handlers.NewEntitlementHandler(gate)

	api := router.Group("/api/v1")
	api.Use(middleware.AdminAuth(cfg.BearerToken))
	{
		api.POST("/entitlements", entitlements.Grant)
		api.GET("/entitlements/:guild_id", entitlements.Get)
		api.POST("/entitlements/:guild_id/renew", entitlements.Renew)
		api.POST("/entitlements/:guild_id/transfer", entitlements.Transfer)
		api.DELETE("/entitlements/:guild_id", entitlements.Revoke)
	}

	return router
}
