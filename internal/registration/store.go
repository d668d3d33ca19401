package registration

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract behind Store.
type Repository interface {
	Get(ctx context.Context, id string) (Registration, error)
	// List returns matching rows, newest first.
	List(ctx context.Context, f Filter) ([]Registration, error)
	Count(ctx context.Context, f Filter) (int, error)
	// ListOrphaned returns rows whose user_id has no profile.
	ListOrphaned(ctx context.Context) ([]Registration, error)

	// Insert returns ErrUniqueViolation when (user_id, workshop_id) already exists.
	Insert(ctx context.Context, r Registration) error
	Update(ctx context.Context, id string, u Update, now time.Time) (Registration, error)
	UpdateWhere(ctx context.Context, f Filter, u Update, now time.Time) ([]Registration, error)
	Delete(ctx context.Context, ids ...string) (int, error)
}

// Store owns registration semantics: duplicate/resume detection on create and the
// reconciliation effects of every mutation.
type Store struct {
	repo Repository
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewStore(repo Repository) *Store {
	return &Store{repo: repo, clock: time.Now}
}

func (s *Store) now() time.Time { return s.clock().UTC() }

// Create registers a user for a workshop.
//
//   - no existing row: inserts pending/unpaid.
//   - existing row in failed/unpaid/processing: reuses it (same id), refreshing contact
//     details and resetting it to pending/unpaid.
//   - existing paid/refunded row: *DuplicateRegistrationError, row untouched.
func (s *Store) Create(ctx context.Context, n NewRegistration) (Registration, Effect, error) {
	n.WorkshopID = strings.TrimSpace(n.WorkshopID)
	n.UserID = strings.TrimSpace(n.UserID)
	if n.WorkshopID == "" || n.UserID == "" {
		return Registration{}, Effect{}, ErrInvalidArgument
	}

	existing, err := s.FindByUserWorkshop(ctx, n.UserID, n.WorkshopID)
	switch {
	case err == nil:
		if !existing.PaymentStatus.Resumable() {
			return Registration{}, Effect{}, &DuplicateRegistrationError{Existing: existing}
		}
		u := Update{}.
			WithStatus(StatusPending).
			WithPaymentStatus(PaymentUnpaid).
			WithContact(n.Contact)
		r, err := s.repo.Update(ctx, existing.ID, u, s.now())
		if err != nil {
			return Registration{}, Effect{}, err
		}
		return r, reconcile(r.WorkshopID), nil
	case !errors.Is(err, ErrNotFound):
		return Registration{}, Effect{}, err
	}

	now := s.now()
	r := Registration{
		ID:            uuid.NewString(),
		WorkshopID:    n.WorkshopID,
		UserID:        n.UserID,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		FullName:      n.Contact.FullName,
		Email:         n.Contact.Email,
		Phone:         n.Contact.Phone,
		Notes:         n.Contact.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, r); err != nil {
		return Registration{}, Effect{}, err
	}
	// A fresh pending/unpaid row holds no seat.
	return r, Effect{WorkshopID: r.WorkshopID}, nil
}

// UpdateStatus applies a partial update. The effect requests reconciliation whenever the
// update touches payment_status or confirms the registration.
func (s *Store) UpdateStatus(ctx context.Context, id string, u Update) (Registration, Effect, error) {
	if id == "" {
		return Registration{}, Effect{}, ErrInvalidArgument
	}
	if err := u.validate(); err != nil {
		return Registration{}, Effect{}, err
	}
	r, err := s.repo.Update(ctx, id, u, s.now())
	if err != nil {
		return Registration{}, Effect{}, err
	}
	return r, Effect{WorkshopID: r.WorkshopID, Reconcile: u.affectsSeats()}, nil
}

// Delete removes a registration. The owning workshop is read first so the returned
// effect can name it.
func (s *Store) Delete(ctx context.Context, id string) (Effect, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return Effect{}, err
	}
	if _, err := s.repo.Delete(ctx, id); err != nil {
		return Effect{}, err
	}
	return reconcile(r.WorkshopID), nil
}

// DeleteMany removes several registrations and returns one effect per touched workshop.
func (s *Store) DeleteMany(ctx context.Context, regs []Registration) (int, []Effect, error) {
	if len(regs) == 0 {
		return 0, nil, nil
	}
	ids := make([]string, 0, len(regs))
	for _, r := range regs {
		ids = append(ids, r.ID)
	}
	n, err := s.repo.Delete(ctx, ids...)
	if err != nil {
		return 0, nil, err
	}
	return n, effectsFor(regs), nil
}

// Reset cancels a registration and marks its payment failed so the user can register again.
func (s *Store) Reset(ctx context.Context, id, note string) (Registration, Effect, error) {
	if strings.TrimSpace(note) == "" {
		note = "reset by admin"
	}
	u := Update{}.
		WithStatus(StatusCanceled).
		WithPaymentStatus(PaymentFailed).
		WithAdminNotes(note)
	r, err := s.repo.Update(ctx, id, u, s.now())
	if err != nil {
		return Registration{}, Effect{}, err
	}
	return r, reconcile(r.WorkshopID), nil
}

// MarkProcessingFailed moves every processing registration of (workshop, user) to failed.
func (s *Store) MarkProcessingFailed(ctx context.Context, workshopID, userID string) (int, Effect, error) {
	if workshopID == "" || userID == "" {
		return 0, Effect{}, ErrInvalidArgument
	}
	f := Filter{
		WorkshopID:    workshopID,
		UserID:        userID,
		PaymentStatus: []PaymentStatus{PaymentProcessing},
	}
	changed, err := s.repo.UpdateWhere(ctx, f, Update{}.WithPaymentStatus(PaymentFailed), s.now())
	if err != nil {
		return 0, Effect{}, err
	}
	return len(changed), reconcile(workshopID), nil
}

// CancelAbandoned cancels pending registrations of a workshop whose payment failed or
// never completed.
func (s *Store) CancelAbandoned(ctx context.Context, workshopID string) (int, Effect, error) {
	if workshopID == "" {
		return 0, Effect{}, ErrInvalidArgument
	}
	f := Filter{
		WorkshopID:    workshopID,
		Statuses:      []Status{StatusPending},
		PaymentStatus: []PaymentStatus{PaymentFailed, PaymentProcessing},
	}
	changed, err := s.repo.UpdateWhere(ctx, f, Update{}.WithStatus(StatusCanceled), s.now())
	if err != nil {
		return 0, Effect{}, err
	}
	return len(changed), reconcile(workshopID), nil
}

func (s *Store) Get(ctx context.Context, id string) (Registration, error) {
	return s.repo.Get(ctx, id)
}

// FindByUserWorkshop returns the newest registration for the pair, or ErrNotFound.
func (s *Store) FindByUserWorkshop(ctx context.Context, userID, workshopID string) (Registration, error) {
	return s.first(ctx, Filter{UserID: userID, WorkshopID: workshopID})
}

func (s *Store) FindByPaymentID(ctx context.Context, paymentID string) (Registration, error) {
	if paymentID == "" {
		return Registration{}, ErrInvalidArgument
	}
	return s.first(ctx, Filter{PaymentID: paymentID})
}

func (s *Store) ListByWorkshop(ctx context.Context, workshopID string) ([]Registration, error) {
	return s.repo.List(ctx, Filter{WorkshopID: workshopID})
}

func (s *Store) ListAll(ctx context.Context) ([]Registration, error) {
	return s.repo.List(ctx, Filter{})
}

// ListStalled returns processing registrations of a workshop untouched for longer than age.
func (s *Store) ListStalled(ctx context.Context, workshopID string, age time.Duration) ([]Registration, error) {
	return s.repo.List(ctx, Filter{
		WorkshopID:    workshopID,
		PaymentStatus: []PaymentStatus{PaymentProcessing},
		UpdatedBefore: s.now().Add(-age),
	})
}

func (s *Store) ListOrphaned(ctx context.Context) ([]Registration, error) {
	return s.repo.ListOrphaned(ctx)
}

// CountPaid counts the registrations of a workshop that hold a seat.
func (s *Store) CountPaid(ctx context.Context, workshopID string) (int, error) {
	return s.repo.Count(ctx, Filter{WorkshopID: workshopID, PaymentStatus: []PaymentStatus{PaymentPaid}})
}

func (s *Store) first(ctx context.Context, f Filter) (Registration, error) {
	rows, err := s.repo.List(ctx, f)
	if err != nil {
		return Registration{}, err
	}
	if len(rows) == 0 {
		return Registration{}, ErrNotFound
	}
	return rows[0], nil
}

func effectsFor(regs []Registration) []Effect {
	out := make([]Effect, 0, len(regs))
	seen := make(map[string]struct{}, len(regs))
	for _, r := range regs {
		if _, ok := seen[r.WorkshopID]; ok {
			continue
		}
		seen[r.WorkshopID] = struct{}{}
		out = append(out, reconcile(r.WorkshopID))
	}
	return out
}
