package paymentlog

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Entry is an immutable record of one gateway interaction.
//
// Invariants:
// - Entries are never updated or deleted.
// - Writing an entry never fails the payment operation it describes.
//
// Storage (Postgres): table payment_logs, INSERT-only.
type Entry struct {
	ID     string `json:"id" db:"id"`
	Action Action `json:"action" db:"action"`
	Status Status `json:"status" db:"status"`

	PaymentID string              `json:"payment_id,omitempty" db:"payment_id"`
	Amount    decimal.NullDecimal `json:"amount" db:"amount"`
	Currency  string              `json:"currency,omitempty" db:"currency"`

	UserID     string `json:"user_id,omitempty" db:"user_id"`
	WorkshopID string `json:"workshop_id,omitempty" db:"workshop_id"`

	// ResponseData is the raw gateway payload, when one was received.
	ResponseData json.RawMessage `json:"response_data,omitempty" db:"response_data"`
	ErrorMessage string          `json:"error_message,omitempty" db:"error_message"`

	IPAddress string    `json:"ip_address,omitempty" db:"ip_address"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Action string

const (
	ActionCreateCharge Action = "create_charge"
	ActionVerifyCharge Action = "verify_charge"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusWarning Status = "warning"
	StatusInfo    Status = "info"
)

func (s Status) valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusError, StatusWarning, StatusInfo:
		return true
	default:
		return false
	}
}
