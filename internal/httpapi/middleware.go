package httpapi

import (
	"workshop-booking/internal/paymentlog"

	"github.com/gin-gonic/gin"
)

// ClientIP attaches the resolved client IP to the request context so payment logs and
// admin audit events can record it.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(paymentlog.WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}
