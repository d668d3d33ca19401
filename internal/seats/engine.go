package seats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workshop-booking/pkg/logger"
)

var (
	ErrNotFound        = errors.New("seats: workshop not found")
	ErrInvalidArgument = errors.New("seats: invalid argument")
)

// Repository reads workshops and writes the available_seats cache.
// SetAvailableSeats must only be called by Engine.
type Repository interface {
	GetWorkshop(ctx context.Context, id string) (Workshop, error)
	SetAvailableSeats(ctx context.Context, workshopID string, available int, now time.Time) error
}

// PaidCounter counts registrations of a workshop with payment_status=paid.
type PaidCounter interface {
	CountPaid(ctx context.Context, workshopID string) (int, error)
}

// Locker serializes reconciliations of one workshop across processes. Lock returns
// acquired=false when another holder has it; the caller proceeds anyway.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), acquired bool, err error)
}

// Available is the seat formula: capacity minus paid registrations, floored at zero.
func Available(total, paid int) int {
	if paid >= total {
		return 0
	}
	return total - paid
}

// Engine recomputes available_seats from scratch. It never increments or decrements.
type Engine struct {
	workshops Repository
	paid      PaidCounter
	locker    Locker
	clock     func() time.Time
}

type Option func(*Engine)

// WithLocker narrows the window in which two concurrent reconciliations of the same
// workshop can interleave their read and write.
func WithLocker(l Locker) Option {
	return func(e *Engine) { e.locker = l }
}

func NewEngine(workshops Repository, paid PaidCounter, opts ...Option) *Engine {
	e := &Engine{workshops: workshops, paid: paid, clock: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Reconcile brings the workshop's cached available_seats back in line with its
// registrations. Safe to call redundantly and concurrently.
func (e *Engine) Reconcile(ctx context.Context, workshopID string) error {
	_, err := e.Recalculate(ctx, workshopID)
	return err
}

// Recalculate is Reconcile returning what was written.
func (e *Engine) Recalculate(ctx context.Context, workshopID string) (Snapshot, error) {
	if workshopID == "" {
		return Snapshot{}, ErrInvalidArgument
	}

	if e.locker != nil {
		unlock, acquired, err := e.locker.Lock(ctx, lockKey(workshopID))
		switch {
		case err != nil:
			logger.From(ctx).Warn("seat lock unavailable; reconciling without it", "workshop_id", workshopID, "err", err)
		case !acquired:
			logger.From(ctx).Debug("seat lock busy; reconciling without it", "workshop_id", workshopID)
		default:
			defer unlock()
		}
	}

	w, err := e.workshops.GetWorkshop(ctx, workshopID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load workshop %s: %w", workshopID, err)
	}
	paid, err := e.paid.CountPaid(ctx, workshopID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("count paid registrations for %s: %w", workshopID, err)
	}

	snap := Snapshot{
		WorkshopID:     workshopID,
		TotalSeats:     w.TotalSeats,
		PaidCount:      paid,
		AvailableSeats: Available(w.TotalSeats, paid),
		Previous:       w.AvailableSeats,
	}
	if err := e.workshops.SetAvailableSeats(ctx, workshopID, snap.AvailableSeats, e.clock().UTC()); err != nil {
		return Snapshot{}, fmt.Errorf("write available seats for %s: %w", workshopID, err)
	}

	if snap.Drift() != 0 {
		logger.From(ctx).Info("available seats corrected",
			"workshop_id", workshopID,
			"previous", snap.Previous,
			"available", snap.AvailableSeats,
			"paid", paid,
		)
	}
	return snap, nil
}

// Workshop exposes the current workshop row (price, capacity, cached seats).
func (e *Engine) Workshop(ctx context.Context, id string) (Workshop, error) {
	return e.workshops.GetWorkshop(ctx, id)
}

func lockKey(workshopID string) string {
	return "lock:seats:" + workshopID
}
