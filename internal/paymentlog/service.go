package paymentlog

import (
	"context"
	"errors"
	"time"

	"workshop-booking/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for payment log entries.
// It is append-only: there is no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Entry) error
}

var (
	ErrInvalidEntry = errors.New("paymentlog: invalid entry")
	ErrNoRepository = errors.New("paymentlog: repository not configured")
)

// Service writes payment log entries. Callers that must not be affected by logging
// failures use Record; Append surfaces the error.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Append(ctx context.Context, e Entry) error {
	if s == nil || s.repo == nil {
		return ErrNoRepository
	}
	if e.Action == "" || !e.Status.valid() {
		return ErrInvalidEntry
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	if e.IPAddress == "" {
		e.IPAddress = ClientIPFromContext(ctx)
	}
	return s.repo.Append(ctx, e)
}

// Record appends e and swallows any failure after logging it.
func (s *Service) Record(ctx context.Context, e Entry) {
	if err := s.Append(ctx, e); err != nil {
		logger.From(ctx).Warn("payment log write failed",
			"action", e.Action,
			"payment_id", e.PaymentID,
			"workshop_id", e.WorkshopID,
			"err", err,
		)
	}
}
