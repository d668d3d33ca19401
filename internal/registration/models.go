package registration

import "time"

// Registration is one user's booking of one workshop.
//
// Invariant: at most one effectively active row per (user_id, workshop_id). The unique index
// enforcing it can be raced, so Store.Create and the admin duplicate scan both defend it.
type Registration struct {
	ID         string `json:"id" db:"id"`
	WorkshopID string `json:"workshop_id" db:"workshop_id"`
	UserID     string `json:"user_id" db:"user_id"`

	Status        Status        `json:"status" db:"status"`
	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`
	// PaymentID is the gateway charge id; empty until a charge is created.
	PaymentID string `json:"payment_id,omitempty" db:"payment_id"`

	FullName string `json:"full_name,omitempty" db:"full_name"`
	Email    string `json:"email,omitempty" db:"email"`
	Phone    string `json:"phone,omitempty" db:"phone"`

	Notes      string `json:"notes,omitempty" db:"notes"`
	AdminNotes string `json:"admin_notes,omitempty" db:"admin_notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCanceled  Status = "canceled"
	StatusAttended  Status = "attended"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCanceled, StatusAttended:
		return true
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentUnpaid     PaymentStatus = "unpaid"
	PaymentProcessing PaymentStatus = "processing"
	PaymentPaid       PaymentStatus = "paid"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentFailed     PaymentStatus = "failed"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentUnpaid, PaymentProcessing, PaymentPaid, PaymentRefunded, PaymentFailed:
		return true
	default:
		return false
	}
}

// Resumable reports whether a registration in this payment state may be reused by a new
// registration attempt instead of being rejected as a duplicate.
func (p PaymentStatus) Resumable() bool {
	return p == PaymentFailed || p == PaymentUnpaid || p == PaymentProcessing
}

// Contact is the attendee detail captured by the registration form.
type Contact struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Notes    string `json:"notes,omitempty"`
}

type NewRegistration struct {
	WorkshopID string
	UserID     string
	Contact    Contact
}

// Update is a partial field update. Nil fields are left untouched.
type Update struct {
	Status        *Status
	PaymentStatus *PaymentStatus
	PaymentID     *string
	AdminNotes    *string
	Contact       *Contact
}

func (u Update) WithStatus(s Status) Update {
	u.Status = &s
	return u
}

func (u Update) WithPaymentStatus(p PaymentStatus) Update {
	u.PaymentStatus = &p
	return u
}

func (u Update) WithPaymentID(id string) Update {
	u.PaymentID = &id
	return u
}

func (u Update) WithAdminNotes(note string) Update {
	u.AdminNotes = &note
	return u
}

func (u Update) WithContact(c Contact) Update {
	u.Contact = &c
	return u
}

func (u Update) validate() error {
	if u.Status != nil && !u.Status.Valid() {
		return ErrInvalidArgument
	}
	if u.PaymentStatus != nil && !u.PaymentStatus.Valid() {
		return ErrInvalidArgument
	}
	return nil
}

// affectsSeats reports whether applying u can change the paid count of the workshop.
func (u Update) affectsSeats() bool {
	return u.PaymentStatus != nil || (u.Status != nil && *u.Status == StatusConfirmed)
}

func (u Update) apply(r *Registration, now time.Time) {
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.PaymentStatus != nil {
		r.PaymentStatus = *u.PaymentStatus
	}
	if u.PaymentID != nil {
		r.PaymentID = *u.PaymentID
	}
	if u.AdminNotes != nil {
		r.AdminNotes = *u.AdminNotes
	}
	if u.Contact != nil {
		r.FullName = u.Contact.FullName
		r.Email = u.Contact.Email
		r.Phone = u.Contact.Phone
		r.Notes = u.Contact.Notes
	}
	r.UpdatedAt = now
}

// Filter selects registrations. Zero fields match everything.
type Filter struct {
	WorkshopID    string
	UserID        string
	PaymentID     string
	Statuses      []Status
	PaymentStatus []PaymentStatus
	// UpdatedBefore, when non-zero, keeps rows last touched strictly before it.
	UpdatedBefore time.Time
}

func (f Filter) matches(r Registration) bool {
	if f.WorkshopID != "" && r.WorkshopID != f.WorkshopID {
		return false
	}
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.PaymentID != "" && r.PaymentID != f.PaymentID {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, r.Status) {
		return false
	}
	if len(f.PaymentStatus) > 0 && !contains(f.PaymentStatus, r.PaymentStatus) {
		return false
	}
	if !f.UpdatedBefore.IsZero() && !r.UpdatedAt.Before(f.UpdatedBefore) {
		return false
	}
	return true
}

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
