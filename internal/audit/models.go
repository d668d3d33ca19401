package audit

import "time"

// Event is an immutable, append-only record of an admin repair action.
//
// Invariants:
// - Events are never updated or deleted.
// - Action is required; WorkshopID or RegistrationID names the target.
// - actor and ip capture are best-effort; do not block repairs on audit failures.
type Event struct {
	ID     string `json:"id" db:"id"`
	Action Action `json:"action" db:"action"`

	WorkshopID     string `json:"workshop_id,omitempty" db:"workshop_id"`
	RegistrationID string `json:"registration_id,omitempty" db:"registration_id"`

	// ActorUserID is the authenticated admin causing the event.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`
	IPAddress   string `json:"ip_address,omitempty" db:"ip_address"`

	// Affected is how many registrations the action changed.
	Affected int    `json:"affected" db:"affected"`
	Message  string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Action string

const (
	ActionRecalculateSeats  Action = "recalculate_seats"
	ActionCleanupFailed     Action = "cleanup_failed"
	ActionRepair            Action = "repair"
	ActionResetRegistration Action = "reset_registration"
	ActionRefund            Action = "refund_registration"
	ActionDelete            Action = "delete_registration"
	ActionCleanupDuplicates Action = "cleanup_duplicates"
)
