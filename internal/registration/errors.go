package registration

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("registration: not found")
	ErrInvalidArgument       = errors.New("registration: invalid argument")
	ErrDuplicateRegistration = errors.New("registration: already registered")
	// ErrUniqueViolation means an insert lost a race against the (user_id, workshop_id) index.
	ErrUniqueViolation = errors.New("registration: unique constraint violated")
)

// DuplicateRegistrationError is returned by Store.Create when the user already holds a
// paid or refunded registration for the workshop. The existing row is left unchanged.
type DuplicateRegistrationError struct {
	Existing Registration
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("registration: user %s already has a %s registration for workshop %s",
		e.Existing.UserID, e.Existing.PaymentStatus, e.Existing.WorkshopID)
}

func (e *DuplicateRegistrationError) Unwrap() error { return ErrDuplicateRegistration }
