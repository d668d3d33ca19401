package httpapi

import (
	"errors"
	"net/http"

	"workshop-booking/internal/admin"
	"workshop-booking/internal/booking"
	"workshop-booking/internal/payments"
	"workshop-booking/internal/registration"
	"workshop-booking/internal/seats"
	"workshop-booking/pkg/logger"

	"github.com/gin-gonic/gin"
)

// writeError maps service errors to a status and body. Business failures carry their
// localized message; anything unrecognized is logged and answered with a generic
// "try again" in the caller's language.
func writeError(c *gin.Context, err error) {
	var ue *booking.UserError
	if errors.As(err, &ue) {
		c.AbortWithStatusJSON(statusOf(err), gin.H{"error": ue.Message, "code": codeOf(err)})
		return
	}

	status := statusOf(err)
	if status == http.StatusInternalServerError || status == http.StatusBadGateway {
		_ = c.Error(err)
		logger.FromGin(c).Error("request failed", "err", err)
		c.AbortWithStatusJSON(status, gin.H{"error": booking.TryAgainMessage(locale(c))})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": codeOf(err), "code": codeOf(err)})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, booking.ErrAlreadyRegistered):
		return http.StatusConflict
	case errors.Is(err, booking.ErrSubmissionInFlight):
		return http.StatusConflict
	case errors.Is(err, booking.ErrPaymentDeclined):
		return http.StatusPaymentRequired
	case errors.Is(err, booking.ErrNothingToRetry):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, registration.ErrNotFound), errors.Is(err, seats.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, registration.ErrInvalidArgument),
		errors.Is(err, seats.ErrInvalidArgument),
		errors.Is(err, payments.ErrInvalidArgument),
		errors.Is(err, admin.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, payments.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func codeOf(err error) string {
	switch {
	case errors.Is(err, booking.ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, booking.ErrSubmissionInFlight):
		return "submission_in_flight"
	case errors.Is(err, booking.ErrPaymentDeclined):
		return "payment_declined"
	case errors.Is(err, booking.ErrNothingToRetry):
		return "nothing_to_retry"
	case errors.Is(err, booking.ErrInvalidRequest):
		return "invalid_request"
	}
	switch statusOf(err) {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadRequest:
		return "invalid_request"
	default:
		return "internal"
	}
}
