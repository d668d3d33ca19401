package paymentlog

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo appends to payment_logs:
//
//	CREATE TABLE payment_logs (
//	  id uuid PRIMARY KEY,
//	  action text NOT NULL,
//	  status text NOT NULL,
//	  payment_id text,
//	  amount numeric(12,3),
//	  currency char(3),
//	  user_id uuid,
//	  workshop_id uuid,
//	  response_data jsonb,
//	  error_message text,
//	  ip_address text,
//	  created_at timestamptz NOT NULL DEFAULT now()
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Entry) error {
	const q = `
INSERT INTO payment_logs (
  id, action, status, payment_id, amount, currency, user_id, workshop_id,
  response_data, error_message, ip_address, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`
	var response any
	if len(e.ResponseData) > 0 {
		response = string(e.ResponseData)
	}
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Action),
		string(e.Status),
		nullString(e.PaymentID),
		e.Amount,
		nullString(e.Currency),
		nullString(e.UserID),
		nullString(e.WorkshopID),
		response,
		nullString(e.ErrorMessage),
		nullString(e.IPAddress),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment log: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
