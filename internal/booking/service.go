package booking

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"workshop-booking/internal/payments"
	"workshop-booking/internal/registration"
	"workshop-booking/pkg/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

// RegistrationStore is the subset of registration.Store the orchestrator needs.
type RegistrationStore interface {
	Create(ctx context.Context, n registration.NewRegistration) (registration.Registration, registration.Effect, error)
	UpdateStatus(ctx context.Context, id string, u registration.Update) (registration.Registration, registration.Effect, error)
	FindByUserWorkshop(ctx context.Context, userID, workshopID string) (registration.Registration, error)
}

// PaymentAdapter creates and verifies gateway charges.
type PaymentAdapter interface {
	CreateCharge(ctx context.Context, req payments.ChargeRequest) (payments.ChargeResult, error)
	VerifyCharge(ctx context.Context, paymentID string) (payments.VerifyResult, error)
}

// Service sequences registration, charge creation and seat reconciliation into the
// user-facing register/pay/retry flows. It never writes available_seats.
type Service struct {
	store       RegistrationStore
	payments    PaymentAdapter
	seats       registration.Reconciler
	guard       SubmitGuard
	callbackURL string
	currency    string
}

type Option func(*Service)

// WithSubmitGuard rejects concurrent submits for the same (user, workshop).
func WithSubmitGuard(g SubmitGuard) Option {
	return func(s *Service) { s.guard = g }
}

// NewService wires the orchestrator. callbackURL is the absolute /payment/callback URL;
// currency is used when a request does not name one.
func NewService(store RegistrationStore, pay PaymentAdapter, seats registration.Reconciler, callbackURL, currency string, opts ...Option) *Service {
	s := &Service{
		store:       store,
		payments:    pay,
		seats:       seats,
		callbackURL: callbackURL,
		currency:    currency,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type RegisterRequest struct {
	WorkshopID string
	UserID     string
	Contact    registration.Contact
	Price      decimal.Decimal
	Currency   string
	IsRetry    bool
	// Locale is an Accept-Language style value used for user-facing messages.
	Locale string
}

func (r RegisterRequest) validate() error {
	if strings.TrimSpace(r.WorkshopID) == "" || strings.TrimSpace(r.UserID) == "" {
		return ErrInvalidRequest
	}
	if r.Price.IsNegative() {
		return ErrInvalidRequest
	}
	if !r.IsRetry && strings.TrimSpace(r.Contact.FullName) == "" {
		return ErrInvalidRequest
	}
	return nil
}

type OutcomeState string

const (
	// OutcomeConfirmed: the registration is confirmed and holds a seat.
	OutcomeConfirmed OutcomeState = "confirmed"
	// OutcomeRedirect: the user must complete payment at RedirectURL.
	OutcomeRedirect OutcomeState = "redirect"
	// OutcomePaymentFailed: the gateway reported a non-captured charge.
	OutcomePaymentFailed OutcomeState = "payment_failed"
)

type Outcome struct {
	State          OutcomeState `json:"state"`
	RegistrationID string       `json:"registration_id,omitempty"`
	WorkshopID     string       `json:"workshop_id,omitempty"`
	PaymentID      string       `json:"payment_id,omitempty"`
	RedirectURL    string       `json:"redirect_url,omitempty"`
	Message        string       `json:"message"`
}

// RegisterAndPay registers the user (or resumes their registration) and either confirms
// it immediately for a free workshop or opens a gateway charge.
//
// Business failures are *UserError values wrapping ErrAlreadyRegistered,
// ErrPaymentDeclined, ErrSubmissionInFlight, ErrNothingToRetry or ErrInvalidRequest.
func (s *Service) RegisterAndPay(ctx context.Context, req RegisterRequest) (Outcome, error) {
	tag := matchLocale(req.Locale)
	if err := req.validate(); err != nil {
		return Outcome{}, &UserError{Err: err, Message: message(tag, msgInvalidRequest)}
	}

	l := logger.From(ctx).With("workshop_id", req.WorkshopID, "user_id", req.UserID)
	ctx = logger.With(ctx, l)

	if s.guard != nil {
		release, acquired, err := s.guard.Acquire(ctx, submitKey(req.WorkshopID, req.UserID))
		switch {
		case err != nil:
			l.Warn("submit guard unavailable; continuing unguarded", "err", err)
		case !acquired:
			return Outcome{}, &UserError{Err: ErrSubmissionInFlight, Message: message(tag, msgSubmissionInFlight)}
		default:
			defer release()
		}
	}

	reg, retry, err := s.prepare(ctx, req, tag)
	if err != nil {
		return Outcome{}, err
	}

	if !req.Price.IsPositive() {
		return s.confirmFree(ctx, reg, tag)
	}

	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}
	res, err := s.payments.CreateCharge(ctx, payments.ChargeRequest{
		Amount:      req.Price,
		Currency:    currency,
		WorkshopID:  reg.WorkshopID,
		UserID:      reg.UserID,
		Customer:    contactOf(reg, req.Contact),
		IsRetry:     retry,
		RedirectURL: s.redirectURL(reg.WorkshopID),
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("create charge: %w", err)
	}
	if !res.Success {
		l.Info("charge rejected", "reason", res.Error, "retry", retry)
		return Outcome{}, &UserError{Err: ErrPaymentDeclined, Message: message(tag, msgPaymentDeclined), Detail: res.Error}
	}

	if retry {
		// The adapter only stamps first attempts.
		u := registration.Update{}.
			WithPaymentStatus(registration.PaymentProcessing).
			WithPaymentID(res.PaymentID)
		_, eff, err := s.store.UpdateStatus(ctx, reg.ID, u)
		if err != nil {
			// The charge exists; verification recovers the registration from its metadata.
			l.Error("stamp retry charge failed", "registration_id", reg.ID, "payment_id", res.PaymentID, "err", err)
		} else {
			registration.Settle(ctx, s.seats, eff)
		}
	}

	return Outcome{
		State:          OutcomeRedirect,
		RegistrationID: reg.ID,
		WorkshopID:     reg.WorkshopID,
		PaymentID:      res.PaymentID,
		RedirectURL:    res.RedirectURL,
		Message:        message(tag, msgRedirecting),
	}, nil
}

// VerifyAndFinalize settles a charge after the gateway redirects the user back.
// A declined charge is an OutcomePaymentFailed value, not an error.
func (s *Service) VerifyAndFinalize(ctx context.Context, chargeID, locale string) (Outcome, error) {
	tag := matchLocale(locale)
	res, err := s.payments.VerifyCharge(ctx, chargeID)
	if err != nil {
		return Outcome{}, fmt.Errorf("verify charge: %w", err)
	}

	out := Outcome{WorkshopID: res.WorkshopID, PaymentID: res.PaymentID}
	if res.Success {
		out.State = OutcomeConfirmed
		out.Message = message(tag, msgPaymentConfirmed)
		return out, nil
	}
	out.State = OutcomePaymentFailed
	out.Message = message(tag, msgPaymentFailed)
	return out, nil
}

// prepare returns the registration to charge and whether the charge is a retry.
func (s *Service) prepare(ctx context.Context, req RegisterRequest, tag language.Tag) (registration.Registration, bool, error) {
	if !req.IsRetry {
		reg, eff, err := s.store.Create(ctx, registration.NewRegistration{
			WorkshopID: req.WorkshopID,
			UserID:     req.UserID,
			Contact:    req.Contact,
		})
		switch {
		case err == nil:
			registration.Settle(ctx, s.seats, eff)
			return reg, false, nil
		case errors.Is(err, registration.ErrDuplicateRegistration):
			return registration.Registration{}, false, &UserError{Err: ErrAlreadyRegistered, Message: message(tag, msgAlreadyRegistered)}
		case errors.Is(err, registration.ErrUniqueViolation):
			// A concurrent submit inserted first; continue its attempt as a retry.
			logger.From(ctx).Info("registration insert raced; continuing as retry")
		default:
			return registration.Registration{}, false, fmt.Errorf("create registration: %w", err)
		}
	}

	reg, err := s.store.FindByUserWorkshop(ctx, req.UserID, req.WorkshopID)
	if errors.Is(err, registration.ErrNotFound) {
		return registration.Registration{}, false, &UserError{Err: ErrNothingToRetry, Message: message(tag, msgNothingToRetry)}
	}
	if err != nil {
		return registration.Registration{}, false, fmt.Errorf("load registration: %w", err)
	}
	if !reg.PaymentStatus.Resumable() {
		return registration.Registration{}, false, &UserError{Err: ErrAlreadyRegistered, Message: message(tag, msgAlreadyRegistered)}
	}
	return reg, true, nil
}

// confirmFree completes a registration for a free workshop without a gateway round trip.
func (s *Service) confirmFree(ctx context.Context, reg registration.Registration, tag language.Tag) (Outcome, error) {
	u := registration.Update{}.
		WithStatus(registration.StatusConfirmed).
		WithPaymentStatus(registration.PaymentPaid)
	reg, eff, err := s.store.UpdateStatus(ctx, reg.ID, u)
	if err != nil {
		return Outcome{}, fmt.Errorf("confirm free registration: %w", err)
	}
	registration.Settle(ctx, s.seats, eff)

	return Outcome{
		State:          OutcomeConfirmed,
		RegistrationID: reg.ID,
		WorkshopID:     reg.WorkshopID,
		Message:        message(tag, msgFreeConfirmed),
	}, nil
}

func (s *Service) redirectURL(workshopID string) string {
	u, err := url.Parse(s.callbackURL)
	if err != nil {
		return s.callbackURL
	}
	q := u.Query()
	q.Set("workshop_id", workshopID)
	u.RawQuery = q.Encode()
	return u.String()
}

// contactOf prefers freshly submitted details over what the row holds.
func contactOf(reg registration.Registration, submitted registration.Contact) registration.Contact {
	if strings.TrimSpace(submitted.FullName) != "" {
		return submitted
	}
	return registration.Contact{FullName: reg.FullName, Email: reg.Email, Phone: reg.Phone, Notes: reg.Notes}
}
