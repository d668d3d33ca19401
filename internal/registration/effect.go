package registration

import (
	"context"

	"workshop-booking/pkg/logger"
)

// Effect is what a store mutation asks its caller to do next. The store never reconciles
// seats itself; coordinators pass effects to Settle.
type Effect struct {
	WorkshopID string
	Reconcile  bool
}

func reconcile(workshopID string) Effect {
	return Effect{WorkshopID: workshopID, Reconcile: true}
}

// Reconciler recomputes a workshop's available seats.
type Reconciler interface {
	Reconcile(ctx context.Context, workshopID string) error
}

// Settle runs the reconciliations requested by effects, once per workshop. Failures are
// logged and never returned: the registration change that produced the effect stands.
func Settle(ctx context.Context, r Reconciler, effects ...Effect) {
	seen := make(map[string]struct{}, len(effects))
	for _, e := range effects {
		if !e.Reconcile || e.WorkshopID == "" {
			continue
		}
		if _, ok := seen[e.WorkshopID]; ok {
			continue
		}
		seen[e.WorkshopID] = struct{}{}

		if r == nil {
			logger.From(ctx).Warn("seat reconciliation skipped: no reconciler", "workshop_id", e.WorkshopID)
			continue
		}
		if err := r.Reconcile(ctx, e.WorkshopID); err != nil {
			logger.From(ctx).Error("seat reconciliation failed", "workshop_id", e.WorkshopID, "err", err)
		}
	}
}
