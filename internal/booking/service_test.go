package booking

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"workshop-booking/internal/paymentlog"
	"workshop-booking/internal/payments"
	"workshop-booking/internal/registration"
	"workshop-booking/internal/seats"

	"github.com/shopspring/decimal"
)

type fakeGateway struct {
	next    int
	charges map[string]payments.Charge
	reject  *payments.GatewayError
	specs   []payments.ChargeSpec
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{charges: make(map[string]payments.Charge)}
}

func (g *fakeGateway) CreateCharge(_ context.Context, spec payments.ChargeSpec) (payments.Charge, error) {
	g.specs = append(g.specs, spec)
	if g.reject != nil {
		return payments.Charge{}, g.reject
	}
	g.next++
	id := "chg_" + string(rune('0'+g.next))
	c := payments.Charge{
		ID:             id,
		Status:         "INITIATED",
		Amount:         spec.Amount,
		Currency:       spec.Currency,
		Metadata:       spec.Metadata,
		TransactionURL: "https://pay.test/" + id,
	}
	g.charges[id] = c
	return c, nil
}

func (g *fakeGateway) GetCharge(_ context.Context, id string) (payments.Charge, error) {
	c, ok := g.charges[id]
	if !ok {
		return payments.Charge{}, &payments.GatewayError{StatusCode: 404, Description: "not found"}
	}
	return c, nil
}

// settle marks a charge with the status the gateway would report on verification.
func (g *fakeGateway) settle(id, status string) {
	c := g.charges[id]
	c.Status = status
	g.charges[id] = c
}

// spyStore records every payment status the orchestrator and adapter request.
type spyStore struct {
	*registration.Store
	paymentStatuses []registration.PaymentStatus
}

func (s *spyStore) UpdateStatus(ctx context.Context, id string, u registration.Update) (registration.Registration, registration.Effect, error) {
	if u.PaymentStatus != nil {
		s.paymentStatuses = append(s.paymentStatuses, *u.PaymentStatus)
	}
	return s.Store.UpdateStatus(ctx, id, u)
}

type fakeGuard struct {
	busy     bool
	err      error
	releases int
}

func (g *fakeGuard) Acquire(context.Context, string) (func(), bool, error) {
	if g.err != nil || g.busy {
		return func() {}, false, g.err
	}
	return func() { g.releases++ }, true, nil
}

type fixture struct {
	svc   *Service
	gw    *fakeGateway
	regs  *registration.MemoryRepo
	store *spyStore
	seats *seats.MemoryRepo
}

func newFixture(total int, rows ...registration.Registration) fixture {
	regs := registration.NewMemoryRepo()
	regs.Seed(rows...)
	store := &spyStore{Store: registration.NewStore(regs)}

	ws := seats.NewMemoryRepo(
		seats.Workshop{ID: "w1", TotalSeats: total, AvailableSeats: total, Price: decimal.NewFromInt(20), Currency: "KWD"},
		seats.Workshop{ID: "free", TotalSeats: total, AvailableSeats: total, Currency: "KWD"},
	)
	engine := seats.NewEngine(ws, store.Store)

	gw := newFakeGateway()
	pay := payments.NewService(gw, store, engine, paymentlog.NewService(paymentlog.NewMemoryRepo()))
	return fixture{
		svc:   NewService(store, pay, engine, "https://app.test/payment/callback", "KWD"),
		gw:    gw,
		regs:  regs,
		store: store,
		seats: ws,
	}
}

func row(id, user string, ps registration.PaymentStatus) registration.Registration {
	t := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return registration.Registration{
		ID: id, WorkshopID: "w1", UserID: user,
		Status: registration.StatusPending, PaymentStatus: ps,
		FullName:  "Old Name",
		CreatedAt: t, UpdatedAt: t,
	}
}

func paidRequest(user string) RegisterRequest {
	return RegisterRequest{
		WorkshopID: "w1",
		UserID:     user,
		Contact:    registration.Contact{FullName: "Sara Al Ahmad", Email: "s@example.test", Phone: "+96550000000"},
		Price:      decimal.NewFromInt(20),
	}
}

func (f fixture) available(t *testing.T, workshopID string) int {
	t.Helper()
	w, err := f.seats.GetWorkshop(context.Background(), workshopID)
	if err != nil {
		t.Fatalf("workshop: %v", err)
	}
	return w.AvailableSeats
}

func (f fixture) registrationOf(t *testing.T, user, workshopID string) registration.Registration {
	t.Helper()
	r, err := f.store.FindByUserWorkshop(context.Background(), user, workshopID)
	if err != nil {
		t.Fatalf("registration for %s: %v", user, err)
	}
	return r
}

func (f fixture) payAndVerify(t *testing.T, user string) {
	t.Helper()
	out, err := f.svc.RegisterAndPay(context.Background(), paidRequest(user))
	if err != nil {
		t.Fatalf("register %s: %v", user, err)
	}
	f.gw.settle(out.PaymentID, payments.StatusCaptured)
	v, err := f.svc.VerifyAndFinalize(context.Background(), out.PaymentID, "")
	if err != nil {
		t.Fatalf("verify %s: %v", user, err)
	}
	if v.State != OutcomeConfirmed {
		t.Fatalf("expected confirmed, got %+v", v)
	}
}

func TestRegisterAndPay_FreeWorkshopNeverEntersProcessing(t *testing.T) {
	f := newFixture(3)
	req := paidRequest("u1")
	req.WorkshopID = "free"
	req.Price = decimal.Zero

	out, err := f.svc.RegisterAndPay(context.Background(), req)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if out.State != OutcomeConfirmed || out.RedirectURL != "" {
		t.Fatalf("expected immediate confirmation, got %+v", out)
	}
	if len(f.gw.specs) != 0 {
		t.Fatalf("free workshop must not reach the gateway")
	}
	for _, ps := range f.store.paymentStatuses {
		if ps == registration.PaymentProcessing {
			t.Fatalf("free registration entered processing")
		}
	}
	r := f.registrationOf(t, "u1", "free")
	if r.Status != registration.StatusConfirmed || r.PaymentStatus != registration.PaymentPaid {
		t.Fatalf("unexpected terminal state %s/%s", r.Status, r.PaymentStatus)
	}
	if got := f.available(t, "free"); got != 2 {
		t.Fatalf("expected 2 seats left, got %d", got)
	}
}

func TestRegisterAndPay_PaidWorkshopRedirects(t *testing.T) {
	f := newFixture(3)

	out, err := f.svc.RegisterAndPay(context.Background(), paidRequest("u1"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if out.State != OutcomeRedirect || out.RedirectURL != "https://pay.test/"+out.PaymentID {
		t.Fatalf("unexpected outcome %+v", out)
	}
	spec := f.gw.specs[0]
	if spec.RedirectURL != "https://app.test/payment/callback?workshop_id=w1" {
		t.Fatalf("unexpected callback url %q", spec.RedirectURL)
	}
	if spec.Metadata.WorkshopID != "w1" || spec.Metadata.UserID != "u1" || spec.Currency != "KWD" {
		t.Fatalf("unexpected charge spec %+v", spec)
	}

	r := f.registrationOf(t, "u1", "w1")
	if r.PaymentStatus != registration.PaymentProcessing || r.PaymentID != out.PaymentID {
		t.Fatalf("expected processing with payment id, got %s/%q", r.PaymentStatus, r.PaymentID)
	}
	if got := f.available(t, "w1"); got != 3 {
		t.Fatalf("processing must not hold a seat, got %d available", got)
	}
}

func TestRegisterAndPay_PaidRegistrationIsDuplicate(t *testing.T) {
	f := newFixture(3, row("r1", "u1", registration.PaymentPaid))

	_, err := f.svc.RegisterAndPay(context.Background(), paidRequest("u1"))
	var ue *UserError
	if !errors.As(err, &ue) || !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected already registered user error, got %v", err)
	}
	if ue.Message == "" {
		t.Fatalf("expected localized message")
	}
	if got := f.registrationOf(t, "u1", "w1"); got.FullName != "Old Name" {
		t.Fatalf("paid row must be untouched, got %+v", got)
	}
	if len(f.gw.specs) != 0 {
		t.Fatalf("duplicate must not create a charge")
	}
}

func TestRegisterAndPay_FailedRegistrationIsResumed(t *testing.T) {
	f := newFixture(3, row("r1", "u1", registration.PaymentFailed))

	out, err := f.svc.RegisterAndPay(context.Background(), paidRequest("u1"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if out.RegistrationID != "r1" {
		t.Fatalf("expected the same row to be reused, got %q", out.RegistrationID)
	}
	rows, _ := f.store.ListByWorkshop(context.Background(), "w1")
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
}

func TestRegisterAndPay_DeclinedChargeIsUserError(t *testing.T) {
	f := newFixture(3)
	f.gw.reject = &payments.GatewayError{StatusCode: 400, Code: "1108", Description: "invalid phone"}

	_, err := f.svc.RegisterAndPay(context.Background(), RegisterRequest{
		WorkshopID: "w1",
		UserID:     "u1",
		Contact:    registration.Contact{FullName: "Sara"},
		Price:      decimal.NewFromInt(20),
		Locale:     "ar-KW,ar;q=0.9",
	})
	var ue *UserError
	if !errors.As(err, &ue) || !errors.Is(err, ErrPaymentDeclined) {
		t.Fatalf("expected payment declined, got %v", err)
	}
	if ue.Detail != "invalid phone" {
		t.Fatalf("expected gateway detail, got %q", ue.Detail)
	}
	if ue.Message != catalog[supportedLocales[1]][msgPaymentDeclined] {
		t.Fatalf("expected arabic message, got %q", ue.Message)
	}
}

func TestRetry_StampsProcessingOnSameRow(t *testing.T) {
	f := newFixture(3, row("r1", "u1", registration.PaymentFailed))
	req := paidRequest("u1")
	req.IsRetry = true
	req.Contact = registration.Contact{}

	out, err := f.svc.RegisterAndPay(context.Background(), req)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	r := f.registrationOf(t, "u1", "w1")
	if r.ID != "r1" || r.PaymentStatus != registration.PaymentProcessing || r.PaymentID != out.PaymentID {
		t.Fatalf("unexpected row after retry %+v", r)
	}
	if got := f.gw.specs[0].Customer.FirstName; got != "Old" {
		t.Fatalf("expected stored contact on retry, got %q", got)
	}
}

func TestRetry_WithoutRegistration(t *testing.T) {
	f := newFixture(3)
	req := paidRequest("u1")
	req.IsRetry = true

	_, err := f.svc.RegisterAndPay(context.Background(), req)
	if !errors.Is(err, ErrNothingToRetry) {
		t.Fatalf("expected nothing to retry, got %v", err)
	}
}

func TestRetry_PaidRegistrationRejected(t *testing.T) {
	f := newFixture(3, row("r1", "u1", registration.PaymentPaid))
	req := paidRequest("u1")
	req.IsRetry = true

	_, err := f.svc.RegisterAndPay(context.Background(), req)
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected already registered, got %v", err)
	}
}

func TestRegisterAndPay_UniqueViolationContinuesAsRetry(t *testing.T) {
	f := newFixture(3)
	raced := row("r-race", "u1", registration.PaymentUnpaid)
	f.regs.BeforeInsert = func(registration.Registration) {
		f.regs.BeforeInsert = nil
		f.regs.Seed(raced)
	}

	out, err := f.svc.RegisterAndPay(context.Background(), paidRequest("u1"))
	if err != nil {
		t.Fatalf("expected the race to resolve as a retry, got %v", err)
	}
	if out.RegistrationID != "r-race" {
		t.Fatalf("expected the concurrent row to be charged, got %q", out.RegistrationID)
	}
	r := f.registrationOf(t, "u1", "w1")
	if r.PaymentStatus != registration.PaymentProcessing || r.PaymentID != out.PaymentID {
		t.Fatalf("expected processing after raced retry, got %+v", r)
	}
}

func TestRegisterAndPay_SubmitGuard(t *testing.T) {
	f := newFixture(3)
	g := &fakeGuard{busy: true}
	f.svc.guard = g

	_, err := f.svc.RegisterAndPay(context.Background(), paidRequest("u1"))
	if !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("expected in-flight rejection, got %v", err)
	}

	g.busy = false
	if _, err := f.svc.RegisterAndPay(context.Background(), paidRequest("u1")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if g.releases != 1 {
		t.Fatalf("expected guard released once, got %d", g.releases)
	}
}

func TestRegisterAndPay_GuardErrorFailsOpen(t *testing.T) {
	f := newFixture(3)
	f.svc.guard = &fakeGuard{err: errors.New("redis down")}

	if _, err := f.svc.RegisterAndPay(context.Background(), paidRequest("u1")); err != nil {
		t.Fatalf("expected registration to proceed, got %v", err)
	}
}

func TestRegisterAndPay_InvalidRequest(t *testing.T) {
	f := newFixture(3)
	req := paidRequest("u1")
	req.Contact.FullName = "  "

	_, err := f.svc.RegisterAndPay(context.Background(), req)
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestVerify_NotCapturedReleasesSeat(t *testing.T) {
	f := newFixture(2)
	out, err := f.svc.RegisterAndPay(context.Background(), paidRequest("u1"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	f.gw.settle(out.PaymentID, "DECLINED")

	v, err := f.svc.VerifyAndFinalize(context.Background(), out.PaymentID, "en")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if v.State != OutcomePaymentFailed || v.WorkshopID != "w1" {
		t.Fatalf("unexpected outcome %+v", v)
	}
	r := f.registrationOf(t, "u1", "w1")
	if r.PaymentStatus != registration.PaymentFailed {
		t.Fatalf("expected failed, got %s", r.PaymentStatus)
	}
	if got := f.available(t, "w1"); got != 2 {
		t.Fatalf("expected both seats free, got %d", got)
	}

	// A failed registration can be retried and paid.
	req := paidRequest("u1")
	req.IsRetry = true
	retry, err := f.svc.RegisterAndPay(context.Background(), req)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	f.gw.settle(retry.PaymentID, payments.StatusCaptured)
	if _, err := f.svc.VerifyAndFinalize(context.Background(), retry.PaymentID, ""); err != nil {
		t.Fatalf("verify retry: %v", err)
	}
	if got := f.available(t, "w1"); got != 1 {
		t.Fatalf("expected 1 seat after paid retry, got %d", got)
	}
}

func TestVerify_TransportErrorChangesNothing(t *testing.T) {
	f := newFixture(2)

	_, err := f.svc.VerifyAndFinalize(context.Background(), "chg_missing", "")
	if err == nil || !strings.Contains(err.Error(), "verify charge") {
		t.Fatalf("expected verify error, got %v", err)
	}
	if f.seats.Writes() != 0 {
		t.Fatalf("expected no seat writes")
	}
}

func TestEndToEnd_PayPayRefund(t *testing.T) {
	f := newFixture(2)

	f.payAndVerify(t, "userA")
	if got := f.available(t, "w1"); got != 1 {
		t.Fatalf("after A paid: expected 1, got %d", got)
	}
	f.payAndVerify(t, "userB")
	if got := f.available(t, "w1"); got != 0 {
		t.Fatalf("after B paid: expected 0, got %d", got)
	}

	a := f.registrationOf(t, "userA", "w1")
	u := registration.Update{}.
		WithStatus(registration.StatusCanceled).
		WithPaymentStatus(registration.PaymentRefunded)
	_, eff, err := f.store.UpdateStatus(context.Background(), a.ID, u)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	registration.Settle(context.Background(), f.svc.seats, eff)
	if got := f.available(t, "w1"); got != 1 {
		t.Fatalf("after refund: expected 1, got %d", got)
	}
}

func TestVerify_ReplayedCallbackAfterRefund(t *testing.T) {
	f := newFixture(2)
	out, err := f.svc.RegisterAndPay(context.Background(), paidRequest("userA"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	f.gw.settle(out.PaymentID, payments.StatusCaptured)
	if _, err := f.svc.VerifyAndFinalize(context.Background(), out.PaymentID, ""); err != nil {
		t.Fatalf("verify: %v", err)
	}

	a := f.registrationOf(t, "userA", "w1")
	u := registration.Update{}.
		WithStatus(registration.StatusCanceled).
		WithPaymentStatus(registration.PaymentRefunded)
	_, eff, err := f.store.UpdateStatus(context.Background(), a.ID, u)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	registration.Settle(context.Background(), f.svc.seats, eff)

	v, err := f.svc.VerifyAndFinalize(context.Background(), out.PaymentID, "")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if v.State == OutcomeConfirmed {
		t.Fatalf("replayed callback confirmed a refunded registration")
	}
	a = f.registrationOf(t, "userA", "w1")
	if a.Status != registration.StatusCanceled || a.PaymentStatus != registration.PaymentRefunded {
		t.Fatalf("expected canceled/refunded kept, got %s/%s", a.Status, a.PaymentStatus)
	}
	if got := f.available(t, "w1"); got != 2 {
		t.Fatalf("expected both seats free after replay, got %d", got)
	}
}

func TestAdminReset_ReenablesRegistration(t *testing.T) {
	f := newFixture(2, row("r1", "u1", registration.PaymentPaid))
	if _, _, err := f.store.Reset(context.Background(), "r1", ""); err != nil {
		t.Fatalf("reset: %v", err)
	}

	out, err := f.svc.RegisterAndPay(context.Background(), paidRequest("u1"))
	if err != nil {
		t.Fatalf("expected registration after reset, got %v", err)
	}
	if out.RegistrationID != "r1" || out.State != OutcomeRedirect {
		t.Fatalf("expected resumed row r1, got %+v", out)
	}
}
