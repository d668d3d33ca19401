package main

import (
	"context"
	"net/http"

	"workshop-booking/internal/httpapi"
	"workshop-booking/internal/rbac"
	"workshop-booking/internal/seats"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	handlers httpapi.Handlers
	authMW   gin.HandlerFunc
	seats    seats.WorkshopReader
	health   func(ctx context.Context) error
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	h := d.handlers

	// public
	r.GET("/healthz", func(c *gin.Context) {
		if d.health != nil {
			if err := d.health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Gateway redirect target. The browser arrives here without a bearer token; the charge
	// id alone identifies the registration.
	r.GET("/payment/callback", h.PaymentCallback)

	v1 := r.Group("/v1")
	v1.Use(d.authMW, rbac.RequireUser())
	{
		workshops := v1.Group("/workshops/:workshop_id")
		{
			workshops.POST("/registrations", seats.RequireAvailableSeats(d.seats), h.Register)
			workshops.POST("/registrations/retry", h.RetryPayment)
		}

		// ADMIN routes
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			admin.GET("/workshops/:workshop_id/audit", h.AdminAudit)
			admin.POST("/workshops/:workshop_id/repair", h.AdminRepair)
			admin.POST("/workshops/:workshop_id/recalculate-seats", h.AdminRecalculateSeats)
			admin.POST("/workshops/:workshop_id/cleanup", h.AdminCleanupFailed)

			admin.POST("/registrations/:registration_id/reset", h.AdminResetRegistration)
			admin.POST("/registrations/:registration_id/refund", h.AdminRefundRegistration)
			admin.DELETE("/registrations/:registration_id", h.AdminDeleteRegistration)

			admin.POST("/duplicates/cleanup", h.AdminCleanupDuplicates)
		}
	}
}
