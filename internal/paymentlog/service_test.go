package paymentlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestService_AppendRequiresActionAndStatus(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Entry{Status: StatusInfo}); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry for missing action, got %v", err)
	}
	if err := svc.Append(context.Background(), Entry{Action: ActionCreateCharge, Status: "weird"}); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry for unknown status, got %v", err)
	}
}

func TestService_StampsIDTimeAndClientIP(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return fixed }

	ctx := WithClientIP(context.Background(), "10.0.0.7")
	err := svc.Append(ctx, Entry{
		Action:    ActionCreateCharge,
		Status:    StatusSuccess,
		PaymentID: "chg_1",
		Amount:    decimal.NewNullDecimal(decimal.RequireFromString("12.500")),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	got := repo.Entries()
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	e := got[0]
	if e.ID == "" || !e.CreatedAt.Equal(fixed) || e.IPAddress != "10.0.0.7" {
		t.Fatalf("unexpected stamped entry: %+v", e)
	}
}

func TestService_RecordSwallowsFailures(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Err = errors.New("db down")
	svc := NewService(repo)

	// must not panic or surface anything
	svc.Record(context.Background(), Entry{Action: ActionVerifyCharge, Status: StatusError})

	var nilSvc *Service
	nilSvc.Record(context.Background(), Entry{Action: ActionVerifyCharge, Status: StatusError})
}
