package registration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"workshop-booking/pkg/utils"
)

// PostgresRepo persists registrations in workshop_registrations:
//
//	CREATE TABLE workshop_registrations (
//	  id uuid PRIMARY KEY,
//	  workshop_id uuid NOT NULL REFERENCES workshops(id),
//	  user_id uuid NOT NULL,
//	  status text NOT NULL DEFAULT 'pending',
//	  payment_status text NOT NULL DEFAULT 'unpaid',
//	  payment_id text,
//	  full_name text, email text, phone text,
//	  notes text, admin_notes text,
//	  created_at timestamptz NOT NULL,
//	  updated_at timestamptz NOT NULL,
//	  UNIQUE (user_id, workshop_id)
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const registrationColumns = `id, workshop_id, user_id, status, payment_status, payment_id,
  full_name, email, phone, notes, admin_notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(s rowScanner) (Registration, error) {
	var r Registration
	var paymentID, fullName, email, phone, notes, admin sql.NullString
	if err := s.Scan(
		&r.ID,
		&r.WorkshopID,
		&r.UserID,
		&r.Status,
		&r.PaymentStatus,
		&paymentID,
		&fullName,
		&email,
		&phone,
		&notes,
		&admin,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return Registration{}, err
	}
	r.PaymentID = paymentID.String
	r.FullName = fullName.String
	r.Email = email.String
	r.Phone = phone.String
	r.Notes = notes.String
	r.AdminNotes = admin.String
	return r, nil
}

func (p *PostgresRepo) Get(ctx context.Context, id string) (Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM workshop_registrations WHERE id = $1`
	r, err := scanRegistration(p.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Registration{}, ErrNotFound
		}
		return Registration{}, fmt.Errorf("get registration: %w", err)
	}
	return r, nil
}

func (p *PostgresRepo) List(ctx context.Context, f Filter) ([]Registration, error) {
	where, args := f.whereClause(nil)
	q := `SELECT ` + registrationColumns + ` FROM workshop_registrations` + where +
		` ORDER BY created_at DESC, id DESC`
	return p.query(ctx, q, args...)
}

func (p *PostgresRepo) Count(ctx context.Context, f Filter) (int, error) {
	where, args := f.whereClause(nil)
	var n int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM workshop_registrations`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

func (p *PostgresRepo) ListOrphaned(ctx context.Context) ([]Registration, error) {
	const q = `
SELECT r.id, r.workshop_id, r.user_id, r.status, r.payment_status, r.payment_id,
  r.full_name, r.email, r.phone, r.notes, r.admin_notes, r.created_at, r.updated_at
FROM workshop_registrations r
LEFT JOIN profiles p ON p.id = r.user_id
WHERE p.id IS NULL
ORDER BY r.created_at DESC
`
	return p.query(ctx, q)
}

func (p *PostgresRepo) Insert(ctx context.Context, r Registration) error {
	const q = `
INSERT INTO workshop_registrations (
  id, workshop_id, user_id, status, payment_status, payment_id,
  full_name, email, phone, notes, admin_notes, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`
	_, err := p.db.ExecContext(ctx, q,
		r.ID,
		r.WorkshopID,
		r.UserID,
		string(r.Status),
		string(r.PaymentStatus),
		nullString(r.PaymentID),
		nullString(r.FullName),
		nullString(r.Email),
		nullString(r.Phone),
		nullString(r.Notes),
		nullString(r.AdminNotes),
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		return insertError(err)
	}
	return nil
}

func insertError(err error) error {
	switch {
	case utils.IsUniqueViolation(err):
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	case utils.IsForeignKeyViolation(err):
		// registrations.workshop_id references workshops(id).
		return fmt.Errorf("insert registration: workshop %w: %w", ErrNotFound, err)
	}
	return fmt.Errorf("insert registration: %w", err)
}

func (p *PostgresRepo) Update(ctx context.Context, id string, u Update, now time.Time) (Registration, error) {
	set, args := u.setClause(now, nil)
	args = append(args, id)
	q := `UPDATE workshop_registrations SET ` + set +
		fmt.Sprintf(` WHERE id = $%d RETURNING `, len(args)) + registrationColumns
	r, err := scanRegistration(p.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Registration{}, ErrNotFound
		}
		return Registration{}, fmt.Errorf("update registration: %w", err)
	}
	return r, nil
}

func (p *PostgresRepo) UpdateWhere(ctx context.Context, f Filter, u Update, now time.Time) ([]Registration, error) {
	set, args := u.setClause(now, nil)
	where, args := f.whereClause(args)
	q := `UPDATE workshop_registrations SET ` + set + where + ` RETURNING ` + registrationColumns
	return p.query(ctx, q, args...)
}

// Delete removes ids in one transaction so a partial duplicate cleanup never lands.
func (p *PostgresRepo) Delete(ctx context.Context, ids ...string) (int, error) {
	var n int
	err := utils.WithTx(ctx, p.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, id := range ids {
			res, err := tx.ExecContext(ctx, `DELETE FROM workshop_registrations WHERE id = $1`, id)
			if err != nil {
				return fmt.Errorf("delete registration %s: %w", id, err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			n += int(affected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(ids) == 1 && n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

func (p *PostgresRepo) query(ctx context.Context, q string, args ...any) ([]Registration, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query registrations: %w", err)
	}
	defer rows.Close()

	var out []Registration
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// whereClause renders f as a WHERE clause, numbering placeholders after the existing args.
func (f Filter) whereClause(args []any) (string, []any) {
	var conds []string
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.WorkshopID != "" {
		add("workshop_id = $%d", f.WorkshopID)
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.PaymentID != "" {
		add("payment_id = $%d", f.PaymentID)
	}
	if len(f.Statuses) > 0 {
		add("status = ANY($%d)", toStrings(f.Statuses))
	}
	if len(f.PaymentStatus) > 0 {
		add("payment_status = ANY($%d)", toStrings(f.PaymentStatus))
	}
	if !f.UpdatedBefore.IsZero() {
		add("updated_at < $%d", f.UpdatedBefore)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// setClause renders u as a SET list, always stamping updated_at.
func (u Update) setClause(now time.Time, args []any) (string, []any) {
	var sets []string
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if u.Status != nil {
		set("status", string(*u.Status))
	}
	if u.PaymentStatus != nil {
		set("payment_status", string(*u.PaymentStatus))
	}
	if u.PaymentID != nil {
		set("payment_id", nullString(*u.PaymentID))
	}
	if u.AdminNotes != nil {
		set("admin_notes", nullString(*u.AdminNotes))
	}
	if u.Contact != nil {
		set("full_name", nullString(u.Contact.FullName))
		set("email", nullString(u.Contact.Email))
		set("phone", nullString(u.Contact.Phone))
		set("notes", nullString(u.Contact.Notes))
	}
	set("updated_at", now)
	return strings.Join(sets, ", "), args
}

func toStrings[T ~string](xs []T) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = string(x)
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
