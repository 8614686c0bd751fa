package main

import (
	"database/sql"
	"net/http"
	"time"

	"crm-platform/internal/auth"
	"crm-platform/internal/config"
	"crm-platform/internal/httpapi"
	"crm-platform/internal/telephony"
	"crm-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, cfg config.Config, h httpapi.Handlers, db *sql.DB, rdb *redis.Client) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Provider webhooks (public, signature-checked when a token is configured).
	{
		th := telephony.TwilioStatusHandler{
			Calls:         h.Communications,
			Metrics:       h.Metrics,
			AuthToken:     cfg.Twilio.AuthToken,
			PublicBaseURL: cfg.Twilio.PublicBaseURL,
		}
		r.POST("/webhooks/twilio/status", th.HandleStatusCallback)
	}

	// Development token issuance. Production tokens come from the identity provider.
	if !cfg.IsProduction() {
		r.POST("/auth/token", h.IssueToken)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(h.Auth))
	{
		v1.GET("/me", func(c *gin.Context) {
			id, _ := auth.FromContext(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "role": id.Role})
		})
		h.Register(v1)
	}
}
