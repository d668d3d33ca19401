package admin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"workshop-booking/internal/audit"
	"workshop-booking/internal/auth"
	"workshop-booking/internal/paymentlog"
	"workshop-booking/internal/registration"
	"workshop-booking/internal/seats"
	"workshop-booking/pkg/logger"
)

var ErrInvalidRequest = errors.New("admin: invalid request")

// RegistrationStore is the subset of registration.Store the repair tools use.
type RegistrationStore interface {
	Get(ctx context.Context, id string) (registration.Registration, error)
	ListAll(ctx context.Context) ([]registration.Registration, error)
	ListOrphaned(ctx context.Context) ([]registration.Registration, error)
	ListStalled(ctx context.Context, workshopID string, age time.Duration) ([]registration.Registration, error)

	UpdateStatus(ctx context.Context, id string, u registration.Update) (registration.Registration, registration.Effect, error)
	Reset(ctx context.Context, id, note string) (registration.Registration, registration.Effect, error)
	Delete(ctx context.Context, id string) (registration.Effect, error)
	DeleteMany(ctx context.Context, regs []registration.Registration) (int, []registration.Effect, error)
	CancelAbandoned(ctx context.Context, workshopID string) (int, registration.Effect, error)
}

// SeatEngine reconciles seats; Recalculate reports what it wrote.
type SeatEngine interface {
	Reconcile(ctx context.Context, workshopID string) error
	Recalculate(ctx context.Context, workshopID string) (seats.Snapshot, error)
}

// Service is the operational safety net for data the normal registration flow left
// inconsistent. It works directly against the store and seat engine.
type Service struct {
	store        RegistrationStore
	seats        SeatEngine
	audit        *audit.Service
	stalledAfter time.Duration
}

// NewService builds the admin tools. A nil audit service disables the action trail.
func NewService(store RegistrationStore, engine SeatEngine, trail *audit.Service, stalledAfter time.Duration) *Service {
	if stalledAfter <= 0 {
		stalledAfter = time.Hour
	}
	return &Service{store: store, seats: engine, audit: trail, stalledAfter: stalledAfter}
}

// FindDuplicateRegistrations groups active rows by (user, workshop) and returns every
// group with more than one row. Canceled rows are history and never count.
func (s *Service) FindDuplicateRegistrations(ctx context.Context) ([]DuplicateGroup, error) {
	rows, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}

	type pair struct{ user, workshop string }
	byPair := make(map[pair][]registration.Registration)
	var order []pair
	for _, r := range rows {
		if r.Status == registration.StatusCanceled {
			continue
		}
		k := pair{r.UserID, r.WorkshopID}
		if _, ok := byPair[k]; !ok {
			order = append(order, k)
		}
		byPair[k] = append(byPair[k], r)
	}

	out := make([]DuplicateGroup, 0)
	for _, k := range order {
		regs := byPair[k]
		if len(regs) < 2 {
			continue
		}
		out = append(out, DuplicateGroup{UserID: k.user, WorkshopID: k.workshop, Registrations: regs})
	}
	return out, nil
}

func (s *Service) FindOrphanedRegistrations(ctx context.Context) ([]registration.Registration, error) {
	rows, err := s.store.ListOrphaned(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orphaned registrations: %w", err)
	}
	return rows, nil
}

// FindStalled returns processing registrations untouched for longer than the configured
// threshold.
func (s *Service) FindStalled(ctx context.Context, workshopID string) ([]registration.Registration, error) {
	if strings.TrimSpace(workshopID) == "" {
		return nil, ErrInvalidRequest
	}
	rows, err := s.store.ListStalled(ctx, workshopID, s.stalledAfter)
	if err != nil {
		return nil, fmt.Errorf("list stalled registrations: %w", err)
	}
	return rows, nil
}

// Audit diagnoses one workshop without changing anything.
func (s *Service) Audit(ctx context.Context, workshopID string) (Report, error) {
	if strings.TrimSpace(workshopID) == "" {
		return Report{}, ErrInvalidRequest
	}

	groups, err := s.FindDuplicateRegistrations(ctx)
	if err != nil {
		return Report{}, err
	}
	orphaned, err := s.FindOrphanedRegistrations(ctx)
	if err != nil {
		return Report{}, err
	}
	stalled, err := s.FindStalled(ctx, workshopID)
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		WorkshopID: workshopID,
		Duplicates: make([]DuplicateGroup, 0),
		Orphaned:   make([]registration.Registration, 0),
		Stalled:    stalled,
	}
	for _, g := range groups {
		if g.WorkshopID != workshopID {
			continue
		}
		rep.Duplicates = append(rep.Duplicates, g)
		rep.Counts.DuplicateRows += len(g.Registrations) - 1
	}
	for _, r := range orphaned {
		if r.WorkshopID == workshopID {
			rep.Orphaned = append(rep.Orphaned, r)
		}
	}
	if rep.Stalled == nil {
		rep.Stalled = make([]registration.Registration, 0)
	}
	rep.Counts.DuplicateGroups = len(rep.Duplicates)
	rep.Counts.Orphaned = len(rep.Orphaned)
	rep.Counts.Stalled = len(rep.Stalled)
	return rep, nil
}

// CleanupFailedRegistrations cancels pending registrations whose payment failed or never
// completed, then reconciles.
func (s *Service) CleanupFailedRegistrations(ctx context.Context, workshopID string) (int, error) {
	if strings.TrimSpace(workshopID) == "" {
		return 0, ErrInvalidRequest
	}
	n, eff, err := s.store.CancelAbandoned(ctx, workshopID)
	if err != nil {
		return 0, fmt.Errorf("cancel abandoned registrations: %w", err)
	}
	registration.Settle(ctx, s.seats, eff)

	s.record(ctx, audit.Event{Action: audit.ActionCleanupFailed, WorkshopID: workshopID, Affected: n})
	return n, nil
}

// RecalculateSeats reconciles unconditionally, independent of any registration change.
func (s *Service) RecalculateSeats(ctx context.Context, workshopID string) (seats.Snapshot, error) {
	if strings.TrimSpace(workshopID) == "" {
		return seats.Snapshot{}, ErrInvalidRequest
	}
	snap, err := s.seats.Recalculate(ctx, workshopID)
	if err != nil {
		return seats.Snapshot{}, err
	}

	s.record(ctx, audit.Event{
		Action:     audit.ActionRecalculateSeats,
		WorkshopID: workshopID,
		Message:    fmt.Sprintf("available %d -> %d", snap.Previous, snap.AvailableSeats),
	})
	return snap, nil
}

// RepairAll runs cleanup then recalculation. The result carries one success flag; the
// returned error is the first failing step.
func (s *Service) RepairAll(ctx context.Context, workshopID string) (RepairResult, error) {
	res := RepairResult{WorkshopID: workshopID}

	n, err := s.CleanupFailedRegistrations(ctx, workshopID)
	if err != nil {
		s.record(ctx, audit.Event{Action: audit.ActionRepair, WorkshopID: workshopID, Message: "cleanup failed"})
		return res, err
	}
	res.Canceled = n

	snap, err := s.RecalculateSeats(ctx, workshopID)
	if err != nil {
		s.record(ctx, audit.Event{Action: audit.ActionRepair, WorkshopID: workshopID, Affected: n, Message: "recalculation failed"})
		return res, err
	}
	res.Seats = snap
	res.Success = true

	s.record(ctx, audit.Event{Action: audit.ActionRepair, WorkshopID: workshopID, Affected: n, Message: "ok"})
	return res, nil
}

// ResetRegistration cancels a registration and fails its payment so the user may register
// again.
func (s *Service) ResetRegistration(ctx context.Context, id, note string) (registration.Registration, error) {
	r, eff, err := s.store.Reset(ctx, id, note)
	if err != nil {
		return registration.Registration{}, err
	}
	registration.Settle(ctx, s.seats, eff)

	s.record(ctx, audit.Event{Action: audit.ActionResetRegistration, WorkshopID: r.WorkshopID, RegistrationID: r.ID, Affected: 1, Message: note})
	return r, nil
}

// RefundRegistration records an out-of-band refund and releases the seat.
func (s *Service) RefundRegistration(ctx context.Context, id, note string) (registration.Registration, error) {
	if strings.TrimSpace(note) == "" {
		note = "refunded by admin"
	}
	u := registration.Update{}.
		WithStatus(registration.StatusCanceled).
		WithPaymentStatus(registration.PaymentRefunded).
		WithAdminNotes(note)
	r, eff, err := s.store.UpdateStatus(ctx, id, u)
	if err != nil {
		return registration.Registration{}, err
	}
	registration.Settle(ctx, s.seats, eff)

	s.record(ctx, audit.Event{Action: audit.ActionRefund, WorkshopID: r.WorkshopID, RegistrationID: r.ID, Affected: 1, Message: note})
	return r, nil
}

func (s *Service) DeleteRegistration(ctx context.Context, id string) error {
	eff, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	registration.Settle(ctx, s.seats, eff)

	s.record(ctx, audit.Event{Action: audit.ActionDelete, WorkshopID: eff.WorkshopID, RegistrationID: id, Affected: 1})
	return nil
}

// CleanupDuplicates keeps one row per (user, workshop), the one with the strongest payment
// state, and deletes the rest.
func (s *Service) CleanupDuplicates(ctx context.Context) (DuplicateCleanup, error) {
	groups, err := s.FindDuplicateRegistrations(ctx)
	if err != nil {
		return DuplicateCleanup{}, err
	}
	out := DuplicateCleanup{Groups: len(groups), Workshops: make([]string, 0)}
	if len(groups) == 0 {
		return out, nil
	}

	var doomed []registration.Registration
	for _, g := range groups {
		_, rest := keeper(g.Registrations)
		doomed = append(doomed, rest...)
	}

	n, effects, err := s.store.DeleteMany(ctx, doomed)
	if err != nil {
		return DuplicateCleanup{}, fmt.Errorf("delete duplicate registrations: %w", err)
	}
	registration.Settle(ctx, s.seats, effects...)

	out.Deleted = n
	for _, e := range effects {
		out.Workshops = append(out.Workshops, e.WorkshopID)
	}
	sort.Strings(out.Workshops)

	logger.From(ctx).Info("duplicate registrations removed", "groups", out.Groups, "deleted", n)
	s.record(ctx, audit.Event{Action: audit.ActionCleanupDuplicates, Affected: n})
	return out, nil
}

// paymentRank orders payment states from strongest to weakest claim on a seat.
var paymentRank = map[registration.PaymentStatus]int{
	registration.PaymentPaid:       0,
	registration.PaymentRefunded:   1,
	registration.PaymentProcessing: 2,
	registration.PaymentUnpaid:     3,
	registration.PaymentFailed:     4,
}

func rankOf(p registration.PaymentStatus) int {
	if r, ok := paymentRank[p]; ok {
		return r
	}
	return len(paymentRank)
}

// keeper picks the row to keep from a duplicate group; ties go to the newest row.
func keeper(regs []registration.Registration) (registration.Registration, []registration.Registration) {
	sorted := make([]registration.Registration, len(regs))
	copy(sorted, regs)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := rankOf(sorted[i].PaymentStatus), rankOf(sorted[j].PaymentStatus)
		if ri != rj {
			return ri < rj
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return sorted[0], sorted[1:]
}

func (s *Service) record(ctx context.Context, e audit.Event) {
	e.ActorUserID, _ = auth.UserID(ctx)
	e.ActorRole, _ = auth.Role(ctx)
	e.IPAddress = paymentlog.ClientIPFromContext(ctx)
	s.audit.Record(ctx, e)
}
