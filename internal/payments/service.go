package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"workshop-booking/internal/paymentlog"
	"workshop-booking/internal/registration"
	"workshop-booking/pkg/logger"

	"github.com/shopspring/decimal"
)

// RegistrationStore is the subset of registration.Store the adapter drives.
type RegistrationStore interface {
	FindByUserWorkshop(ctx context.Context, userID, workshopID string) (registration.Registration, error)
	FindByPaymentID(ctx context.Context, paymentID string) (registration.Registration, error)
	UpdateStatus(ctx context.Context, id string, u registration.Update) (registration.Registration, registration.Effect, error)
	MarkProcessingFailed(ctx context.Context, workshopID, userID string) (int, registration.Effect, error)
}

// Service is the payment gateway adapter: it creates and verifies charges, moves the
// matching registration through processing/paid/failed and writes one payment log entry
// per call.
type Service struct {
	gateway Gateway
	store   RegistrationStore
	seats   registration.Reconciler
	log     *paymentlog.Service
}

func NewService(gw Gateway, store RegistrationStore, seats registration.Reconciler, log *paymentlog.Service) *Service {
	return &Service{gateway: gw, store: store, seats: seats, log: log}
}

type ChargeRequest struct {
	Amount     decimal.Decimal
	Currency   string
	WorkshopID string
	UserID     string
	Customer   registration.Contact
	// IsRetry charges leave the registration alone; the caller stamps it.
	IsRetry     bool
	RedirectURL string
	Description string
}

func (r ChargeRequest) validate() error {
	switch {
	case !r.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	case len(r.Currency) != 3:
		return fmt.Errorf("%w: currency must be an ISO 4217 code", ErrInvalidArgument)
	case r.WorkshopID == "" || r.UserID == "":
		return fmt.Errorf("%w: workshop and user are required", ErrInvalidArgument)
	case r.RedirectURL == "":
		return fmt.Errorf("%w: redirect url is required", ErrInvalidArgument)
	}
	return nil
}

// ChargeResult reports a charge attempt. A gateway rejection is Success=false with Error
// set, not a Go error.
type ChargeResult struct {
	Success     bool
	RedirectURL string
	PaymentID   string
	Error       string
}

type VerifyResult struct {
	Success    bool
	Status     string
	PaymentID  string
	WorkshopID string
	UserID     string
}

// CreateCharge opens a hosted-payment charge. Only transport faults and invalid requests
// return an error.
func (s *Service) CreateCharge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	entry := paymentlog.Entry{
		Action:     paymentlog.ActionCreateCharge,
		Amount:     decimal.NewNullDecimal(req.Amount),
		Currency:   req.Currency,
		UserID:     req.UserID,
		WorkshopID: req.WorkshopID,
	}
	defer func() { s.log.Record(ctx, entry) }()

	if err := req.validate(); err != nil {
		entry.Status = paymentlog.StatusError
		entry.ErrorMessage = err.Error()
		return ChargeResult{}, err
	}

	charge, err := s.gateway.CreateCharge(ctx, ChargeSpec{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		Customer:    customerFromContact(req.Customer),
		Metadata:    Metadata{WorkshopID: req.WorkshopID, UserID: req.UserID},
		RedirectURL: req.RedirectURL,
	})
	var rejected *GatewayError
	switch {
	case errors.As(err, &rejected):
		entry.Status = paymentlog.StatusError
		entry.ErrorMessage = rejected.Error()
		entry.ResponseData = rejected.Body
		return ChargeResult{Error: rejected.Description}, nil
	case err != nil:
		entry.Status = paymentlog.StatusError
		entry.ErrorMessage = err.Error()
		return ChargeResult{}, err
	}

	entry.PaymentID = charge.ID
	entry.ResponseData = charge.Raw
	if charge.TransactionURL == "" {
		entry.Status = paymentlog.StatusWarning
		entry.ErrorMessage = "charge created without a payment page url"
		return ChargeResult{PaymentID: charge.ID, Error: "payment page unavailable"}, nil
	}

	if !req.IsRetry {
		s.markProcessing(ctx, req.UserID, req.WorkshopID, charge.ID)
	}

	entry.Status = paymentlog.StatusSuccess
	return ChargeResult{Success: true, RedirectURL: charge.TransactionURL, PaymentID: charge.ID}, nil
}

// VerifyCharge fetches the charge and settles the registration. On a transport failure
// nothing is changed and the error is returned.
func (s *Service) VerifyCharge(ctx context.Context, paymentID string) (VerifyResult, error) {
	entry := paymentlog.Entry{Action: paymentlog.ActionVerifyCharge, PaymentID: paymentID}
	defer func() { s.log.Record(ctx, entry) }()

	if strings.TrimSpace(paymentID) == "" {
		entry.Status = paymentlog.StatusError
		entry.ErrorMessage = "missing charge id"
		return VerifyResult{}, ErrInvalidArgument
	}

	charge, err := s.gateway.GetCharge(ctx, paymentID)
	if err != nil {
		entry.Status = paymentlog.StatusError
		entry.ErrorMessage = err.Error()
		return VerifyResult{}, err
	}

	res := VerifyResult{
		Status:     charge.Status,
		PaymentID:  charge.ID,
		WorkshopID: charge.Metadata.WorkshopID,
		UserID:     charge.Metadata.UserID,
	}
	reg, regErr := s.findRegistration(ctx, res.UserID, res.WorkshopID, charge.ID)
	if regErr == nil {
		res.WorkshopID, res.UserID = reg.WorkshopID, reg.UserID
	}

	entry.Amount = decimal.NewNullDecimal(charge.Amount)
	entry.Currency = charge.Currency
	entry.UserID = res.UserID
	entry.WorkshopID = res.WorkshopID
	entry.ResponseData = charge.Raw

	if regErr != nil && !errors.Is(regErr, registration.ErrNotFound) {
		entry.Status = paymentlog.StatusError
		entry.ErrorMessage = "load registration: " + regErr.Error()
		return VerifyResult{}, fmt.Errorf("load registration for charge %s: %w", charge.ID, regErr)
	}

	if charge.Captured() {
		res.Success = true
		entry.Status = paymentlog.StatusSuccess
		switch {
		case regErr != nil:
			entry.Status = paymentlog.StatusWarning
			entry.ErrorMessage = "captured charge without a matching registration: " + regErr.Error()
		case reg.PaymentStatus == registration.PaymentPaid:
			// Replayed callback for a registration that is already settled.
		case !capturable(reg):
			res.Success = false
			entry.Status = paymentlog.StatusWarning
			entry.ErrorMessage = fmt.Sprintf("captured charge ignored for registration in %s/%s", reg.Status, reg.PaymentStatus)
		default:
			u := registration.Update{}.
				WithStatus(registration.StatusConfirmed).
				WithPaymentStatus(registration.PaymentPaid).
				WithPaymentID(charge.ID)
			if _, _, err := s.store.UpdateStatus(ctx, reg.ID, u); err != nil {
				entry.Status = paymentlog.StatusError
				entry.ErrorMessage = "mark registration paid: " + err.Error()
				s.settle(ctx, res.WorkshopID)
				return res, fmt.Errorf("mark registration %s paid: %w", reg.ID, err)
			}
		}
		s.settle(ctx, res.WorkshopID)
		return res, nil
	}

	entry.Status = paymentlog.StatusWarning
	entry.ErrorMessage = "charge not captured: " + charge.Status
	if res.WorkshopID != "" && res.UserID != "" {
		if _, _, err := s.store.MarkProcessingFailed(ctx, res.WorkshopID, res.UserID); err != nil {
			logger.From(ctx).Error("mark processing registrations failed",
				"workshop_id", res.WorkshopID, "user_id", res.UserID, "payment_id", charge.ID, "err", err)
		}
	}
	s.settle(ctx, res.WorkshopID)
	return res, nil
}

// capturable reports whether a captured charge may move reg to confirmed/paid. Canceled
// and refunded registrations are closed by an admin and stay closed.
func capturable(reg registration.Registration) bool {
	if reg.Status == registration.StatusCanceled {
		return false
	}
	switch reg.PaymentStatus {
	case registration.PaymentProcessing, registration.PaymentUnpaid, registration.PaymentFailed:
		return true
	}
	return false
}

func (s *Service) markProcessing(ctx context.Context, userID, workshopID, paymentID string) {
	l := logger.From(ctx).With("workshop_id", workshopID, "user_id", userID, "payment_id", paymentID)

	reg, err := s.store.FindByUserWorkshop(ctx, userID, workshopID)
	if err != nil {
		l.Warn("no registration to mark processing", "err", err)
		return
	}
	u := registration.Update{}.
		WithPaymentStatus(registration.PaymentProcessing).
		WithPaymentID(paymentID)
	_, eff, err := s.store.UpdateStatus(ctx, reg.ID, u)
	if err != nil {
		l.Error("mark registration processing failed", "registration_id", reg.ID, "err", err)
		return
	}
	registration.Settle(ctx, s.seats, eff)
}

func (s *Service) findRegistration(ctx context.Context, userID, workshopID, paymentID string) (registration.Registration, error) {
	if userID != "" && workshopID != "" {
		reg, err := s.store.FindByUserWorkshop(ctx, userID, workshopID)
		if err == nil || !errors.Is(err, registration.ErrNotFound) {
			return reg, err
		}
	}
	return s.store.FindByPaymentID(ctx, paymentID)
}

// settle reconciles unconditionally after verification.
func (s *Service) settle(ctx context.Context, workshopID string) {
	registration.Settle(ctx, s.seats, registration.Effect{WorkshopID: workshopID, Reconcile: true})
}

func customerFromContact(c registration.Contact) Customer {
	first, last := splitName(c.FullName)
	cc, number := splitPhone(c.Phone)
	return Customer{
		FirstName:        first,
		LastName:         last,
		Email:            strings.TrimSpace(c.Email),
		PhoneCountryCode: cc,
		PhoneNumber:      number,
	}
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// defaultCountryCode applies to numbers given without an international prefix.
const defaultCountryCode = "965"

// splitPhone separates an international number into country code and subscriber number.
// Numbers written with + or 00 are assumed to carry a three-digit (GCC) country code.
func splitPhone(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	international := strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, "00")

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if strings.HasPrefix(raw, "00") {
		digits = strings.TrimPrefix(digits, "00")
	}
	if digits == "" {
		return "", ""
	}
	if international && len(digits) > 3 {
		return digits[:3], digits[3:]
	}
	return defaultCountryCode, digits
}
