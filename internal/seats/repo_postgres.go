package seats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresRepo reads and updates the workshops table:
//
//	CREATE TABLE workshops (
//	  id uuid PRIMARY KEY,
//	  title text NOT NULL,
//	  total_seats int NOT NULL CHECK (total_seats >= 0),
//	  available_seats int NOT NULL,
//	  price numeric(12,3) NOT NULL DEFAULT 0,
//	  currency char(3) NOT NULL DEFAULT 'KWD',
//	  updated_at timestamptz NOT NULL DEFAULT now()
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) GetWorkshop(ctx context.Context, id string) (Workshop, error) {
	const q = `
SELECT id, title, total_seats, available_seats, price, currency, updated_at
FROM workshops
WHERE id = $1
`
	var w Workshop
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
		&w.ID,
		&w.Title,
		&w.TotalSeats,
		&w.AvailableSeats,
		&w.Price,
		&w.Currency,
		&w.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Workshop{}, ErrNotFound
		}
		return Workshop{}, fmt.Errorf("get workshop: %w", err)
	}
	return w, nil
}

func (r *PostgresRepo) SetAvailableSeats(ctx context.Context, workshopID string, available int, now time.Time) error {
	const q = `UPDATE workshops SET available_seats = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, workshopID, available, now)
	if err != nil {
		return fmt.Errorf("set available seats: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
