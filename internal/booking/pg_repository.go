package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier abstracts the pgx query interface for testing.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db Querier
}

func NewPgRepository(db Querier) *PgRepository {
	return &PgRepository{db: db}
}

const checkoutColumns = `reservation_id, owner_id, patient_id, amount, gateway, redirect_url, status, outcome_message, expires_at, created_at, updated_at`

func scanCheckout(row pgx.Row) (*Checkout, error) {
	var c Checkout
	var status string

	err := row.Scan(
		&c.ReservationID,
		&c.OwnerID,
		&c.PatientID,
		&c.Amount,
		&c.Gateway,
		&c.RedirectURL,
		&status,
		&c.OutcomeMessage,
		&c.ExpiresAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCheckoutNotFound
		}
		return nil, err
	}

	c.Status = CheckoutStatus(status)
	return &c, nil
}

func statusStrings(ss []CheckoutStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

func (r *PgRepository) CreateCheckout(ctx context.Context, c Checkout) (*Checkout, error) {
	if c.Status == "" {
		c.Status = StatusReserved
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO checkouts (reservation_id, owner_id, patient_id, amount, gateway, redirect_url, status, outcome_message, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, '', $8, now(), now())
		ON CONFLICT (reservation_id) DO UPDATE
		SET amount = EXCLUDED.amount,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = now()
		RETURNING `+checkoutColumns,
		c.ReservationID, c.OwnerID, c.PatientID, c.Amount, c.Gateway, c.RedirectURL, string(c.Status), c.ExpiresAt)

	created, err := scanCheckout(row)
	if err != nil {
		return nil, fmt.Errorf("insert checkout: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetCheckout(ctx context.Context, reservationID string) (*Checkout, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+checkoutColumns+`
		FROM checkouts
		WHERE reservation_id = $1
	`, reservationID)
	return scanCheckout(row)
}

func (r *PgRepository) MarkRedirected(ctx context.Context, reservationID, gateway, redirectURL string) (*Checkout, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE checkouts
		SET status = 'redirected',
		    gateway = $2,
		    redirect_url = $3,
		    updated_at = now()
		WHERE reservation_id = $1
		  AND status IN ('reserved', 'redirected')
		RETURNING `+checkoutColumns,
		reservationID, gateway, redirectURL)
	return scanCheckout(row)
}

func (r *PgRepository) UpdateCheckoutStatus(ctx context.Context, reservationID string, from []CheckoutStatus, to CheckoutStatus, message string) (*Checkout, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE checkouts
		SET status = $2,
		    outcome_message = $3,
		    updated_at = now()
		WHERE reservation_id = $1
		  AND status = ANY($4)
		RETURNING `+checkoutColumns,
		reservationID, string(to), message, statusStrings(from))
	return scanCheckout(row)
}

func (r *PgRepository) AbandonOpenCheckouts(ctx context.Context, ownerID, message string) ([]Checkout, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE checkouts
		SET status = 'abandoned',
		    outcome_message = $2,
		    updated_at = now()
		WHERE owner_id = $1
		  AND status IN ('reserved', 'redirected')
		RETURNING `+checkoutColumns,
		ownerID, message)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Checkout
	for rows.Next() {
		c, err := scanCheckout(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func (r *PgRepository) FindExpiredCheckouts(ctx context.Context, now time.Time) ([]Checkout, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+checkoutColumns+`
		FROM checkouts
		WHERE status IN ('reserved', 'redirected')
		  AND expires_at < $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Checkout
	for rows.Next() {
		c, err := scanCheckout(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, reservation_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.ReservationID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
