package seats

import (
	"context"
	"errors"
	"net/http"

	"workshop-booking/pkg/logger"

	"github.com/gin-gonic/gin"
)

// WorkshopReader is the minimal lookup the middleware needs.
type WorkshopReader interface {
	Workshop(ctx context.Context, id string) (Workshop, error)
}

// RequireAvailableSeats rejects new registrations for a workshop whose cached
// available_seats is zero. The check is advisory: the cache can lag, so overbooking
// remains possible and is handled by admin tooling.
//
// The workshop id comes from the :workshop_id path parameter. The loaded workshop is
// stored on the gin context under "workshop" for downstream handlers.
func RequireAvailableSeats(r WorkshopReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("workshop_id")
		if id == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "workshop id required"})
			return
		}

		w, err := r.Workshop(c.Request.Context(), id)
		if errors.Is(err, ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "workshop not found"})
			return
		}
		if err != nil {
			logger.FromGin(c).Error("workshop lookup failed", "workshop_id", id, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "workshop lookup failed"})
			return
		}
		if w.AvailableSeats <= 0 {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "workshop is full"})
			return
		}

		c.Set(ContextKeyWorkshop, w)
		c.Next()
	}
}

const ContextKeyWorkshop = "workshop"

// WorkshopFromGin returns the workshop stored by RequireAvailableSeats, if any.
func WorkshopFromGin(c *gin.Context) (Workshop, bool) {
	v, ok := c.Get(ContextKeyWorkshop)
	if !ok {
		return Workshop{}, false
	}
	w, ok := v.(Workshop)
	return w, ok
}
