package booking

import "errors"

var (
	ErrAlreadyRegistered  = errors.New("booking: already registered")
	ErrPaymentDeclined    = errors.New("booking: payment declined")
	ErrSubmissionInFlight = errors.New("booking: submission already in flight")
	ErrNothingToRetry     = errors.New("booking: no registration to retry")
	ErrInvalidRequest     = errors.New("booking: invalid request")
)

// UserError is a business failure carrying a localized message for the end user.
type UserError struct {
	Err     error
	Message string
	// Detail is optional gateway-provided context; it is not localized.
	Detail string
}

func (e *UserError) Error() string {
	if e.Detail != "" {
		return e.Err.Error() + ": " + e.Detail
	}
	return e.Err.Error()
}

func (e *UserError) Unwrap() error { return e.Err }
