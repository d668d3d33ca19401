package seats

import (
	"time"

	"github.com/shopspring/decimal"
)

// Workshop is the slice of a workshop listing that seat accounting needs.
//
// Invariant: after any reconciliation 0 <= AvailableSeats <= TotalSeats.
// AvailableSeats is a cache recomputed by Engine; it is never authoritative.
type Workshop struct {
	ID             string          `json:"id" db:"id"`
	Title          string          `json:"title" db:"title"`
	TotalSeats     int             `json:"total_seats" db:"total_seats"`
	AvailableSeats int             `json:"available_seats" db:"available_seats"`
	Price          decimal.Decimal `json:"price" db:"price"`
	Currency       string          `json:"currency" db:"currency"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// Snapshot is the result of one reconciliation.
type Snapshot struct {
	WorkshopID     string `json:"workshop_id"`
	TotalSeats     int    `json:"total_seats"`
	PaidCount      int    `json:"paid_count"`
	AvailableSeats int    `json:"available_seats"`
	// Previous is the cached value that was overwritten.
	Previous int `json:"previous_available_seats"`
}

// Drift is how far the cache was from ground truth before this reconciliation.
func (s Snapshot) Drift() int { return s.AvailableSeats - s.Previous }
