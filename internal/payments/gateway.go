package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// StatusCaptured is the only charge status treated as a completed payment.
const StatusCaptured = "CAPTURED"

// sourceAll lets the hosted payment page offer every enabled payment method.
const sourceAll = "src_all"

var (
	// ErrTransport wraps failures where the gateway's answer is unknown: network errors,
	// 5xx responses and bodies that cannot be decoded.
	ErrTransport       = errors.New("payments: gateway transport error")
	ErrInvalidArgument = errors.New("payments: invalid argument")
)

// GatewayError is a definite rejection by the gateway (4xx with an error body).
type GatewayError struct {
	StatusCode  int
	Code        string
	Description string
	Body        json.RawMessage
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payments: gateway rejected request (%d %s): %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("payments: gateway rejected request (%d): %s", e.StatusCode, e.Description)
}

// Gateway is the charges API.
type Gateway interface {
	CreateCharge(ctx context.Context, spec ChargeSpec) (Charge, error)
	GetCharge(ctx context.Context, chargeID string) (Charge, error)
}

// Metadata travels with the charge so verification can recover the registration without
// any session state.
type Metadata struct {
	WorkshopID string `json:"workshopId"`
	UserID     string `json:"userId"`
}

type Customer struct {
	FirstName        string
	LastName         string
	Email            string
	PhoneCountryCode string
	PhoneNumber      string
}

type ChargeSpec struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	Customer    Customer
	Metadata    Metadata
	RedirectURL string
}

type Charge struct {
	ID             string
	Status         string
	Amount         decimal.Decimal
	Currency       string
	Metadata       Metadata
	TransactionURL string
	// Raw is the undecoded gateway response, kept for the payment log.
	Raw json.RawMessage
}

func (c Charge) Captured() bool { return c.Status == StatusCaptured }
