package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo appends to admin_audit_events:
//
//	CREATE TABLE admin_audit_events (
//	  id uuid PRIMARY KEY,
//	  action text NOT NULL,
//	  workshop_id uuid,
//	  registration_id uuid,
//	  actor_user_id uuid,
//	  actor_role text,
//	  ip_address text,
//	  affected integer NOT NULL DEFAULT 0,
//	  message text,
//	  created_at timestamptz NOT NULL DEFAULT now()
//	);
//
// Grant INSERT and SELECT only; the table is append-only.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO admin_audit_events (
  id, action, workshop_id, registration_id, actor_user_id, actor_role,
  ip_address, affected, message, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Action),
		nullString(e.WorkshopID),
		nullString(e.RegistrationID),
		nullString(e.ActorUserID),
		nullString(e.ActorRole),
		nullString(e.IPAddress),
		e.Affected,
		nullString(e.Message),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
