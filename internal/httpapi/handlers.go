package httpapi

import (
	"net/http"
	"strings"

	"workshop-booking/internal/admin"
	"workshop-booking/internal/auth"
	"workshop-booking/internal/booking"
	"workshop-booking/internal/registration"
	"workshop-booking/internal/seats"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Booking *booking.Service
	Admin   *admin.Service
	// Workshops resolves price and currency for retries, which skip the seat check.
	Workshops seats.WorkshopReader
}

type contactRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Notes    string `json:"notes"`
}

func (r contactRequest) contact() registration.Contact {
	return registration.Contact{
		FullName: strings.TrimSpace(r.FullName),
		Email:    strings.TrimSpace(r.Email),
		Phone:    strings.TrimSpace(r.Phone),
		Notes:    strings.TrimSpace(r.Notes),
	}
}

// --- Registration ---

// Register creates (or resumes) the caller's registration and starts payment.
// Expects seats.RequireAvailableSeats earlier in the chain.
func (h Handlers) Register(c *gin.Context) {
	if h.Booking == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "booking not configured"})
		return
	}
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user required"})
		return
	}
	w, ok := seats.WorkshopFromGin(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "workshop not resolved"})
		return
	}

	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	contact := req.contact()
	if contact.Email == "" {
		contact.Email = auth.Email(c.Request.Context())
	}

	out, err := h.Booking.RegisterAndPay(c.Request.Context(), booking.RegisterRequest{
		WorkshopID: w.ID,
		UserID:     userID,
		Contact:    contact,
		Price:      w.Price,
		Currency:   w.Currency,
		Locale:     locale(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// RetryPayment opens a new charge for the caller's failed or unfinished registration.
func (h Handlers) RetryPayment(c *gin.Context) {
	if h.Booking == nil || h.Workshops == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "booking not configured"})
		return
	}
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user required"})
		return
	}
	w, err := h.Workshops.Workshop(c.Request.Context(), c.Param("workshop_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	// The body is optional; stored contact details are used when it is empty.
	var req contactRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	out, err := h.Booking.RegisterAndPay(c.Request.Context(), booking.RegisterRequest{
		WorkshopID: w.ID,
		UserID:     userID,
		Contact:    req.contact(),
		Price:      w.Price,
		Currency:   w.Currency,
		IsRetry:    true,
		Locale:     locale(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// PaymentCallback is where the gateway redirects the browser after the hosted payment
// page. The charge id arrives as tap_id (or charge_id).
func (h Handlers) PaymentCallback(c *gin.Context) {
	if h.Booking == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "booking not configured"})
		return
	}
	chargeID := c.Query("tap_id")
	if chargeID == "" {
		chargeID = c.Query("charge_id")
	}
	if chargeID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "charge id required"})
		return
	}

	out, err := h.Booking.VerifyAndFinalize(c.Request.Context(), chargeID, locale(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if out.WorkshopID == "" {
		out.WorkshopID = c.Query("workshop_id")
	}
	c.JSON(http.StatusOK, out)
}

func locale(c *gin.Context) string {
	return c.GetHeader("Accept-Language")
}
