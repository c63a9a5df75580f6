// Package postgres holds the pgx-backed repositories for the payment
// ledger, capture queue, earnings and referral grants.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rideloop/payments/internal/domain"
)

const intentColumns = `id, external_ref, ride_id, booking_id, rider_id, driver_id,
	amount_subtotal, discount_amount, amount_total, currency, status,
	captured_amount, refunded_amount, discount_grant_id,
	created_at, authorized_at, captured_at, canceled_at, last_error, version`

type IntentRepository struct {
	db *pgxpool.Pool
}

func NewIntentRepository(db *pgxpool.Pool) *IntentRepository {
	return &IntentRepository{db: db}
}

func (r *IntentRepository) Create(ctx context.Context, intent *domain.PaymentIntent) error {
	query := `
		INSERT INTO payment_intents (` + intentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	m := toIntentModel(intent)
	_, err := r.db.Exec(ctx, query,
		m.ID, m.ExternalRef, m.RideID, m.BookingID, m.RiderID, m.DriverID,
		m.AmountSubtotal, m.DiscountAmount, m.AmountTotal, m.Currency, m.Status,
		m.CapturedAmount, m.RefundedAmount, m.DiscountGrantID,
		m.CreatedAt, m.AuthorizedAt, m.CapturedAt, m.CanceledAt, m.LastError, m.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment intent: %w", err)
	}
	return nil
}

func (r *IntentRepository) FindByID(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE id = $1`
	return scanIntent(r.db.QueryRow(ctx, query, id), id)
}

func (r *IntentRepository) FindByBookingID(ctx context.Context, bookingID string) (*domain.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE booking_id = $1`
	return scanIntent(r.db.QueryRow(ctx, query, bookingID), bookingID)
}

// Update writes the intent under an optimistic version check. A row
// modified since the caller loaded it yields a VERSION_CONFLICT error;
// on success the caller's copy carries the incremented version.
func (r *IntentRepository) Update(ctx context.Context, intent *domain.PaymentIntent) error {
	query := `
		UPDATE payment_intents
		SET external_ref = $1, status = $2,
			captured_amount = $3, refunded_amount = $4, discount_grant_id = $5,
			authorized_at = $6, captured_at = $7, canceled_at = $8, last_error = $9,
			version = version + 1
		WHERE id = $10 AND version = $11
	`

	m := toIntentModel(intent)
	result, err := r.db.Exec(ctx, query,
		m.ExternalRef, m.Status,
		m.CapturedAmount, m.RefundedAmount, m.DiscountGrantID,
		m.AuthorizedAt, m.CapturedAt, m.CanceledAt, m.LastError,
		m.ID, m.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment intent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewVersionConflictError(intent.ID)
	}

	intent.Version++
	return nil
}

func scanIntent(row pgx.Row, key string) (*domain.PaymentIntent, error) {
	var m IntentModel
	err := row.Scan(
		&m.ID, &m.ExternalRef, &m.RideID, &m.BookingID, &m.RiderID, &m.DriverID,
		&m.AmountSubtotal, &m.DiscountAmount, &m.AmountTotal, &m.Currency, &m.Status,
		&m.CapturedAmount, &m.RefundedAmount, &m.DiscountGrantID,
		&m.CreatedAt, &m.AuthorizedAt, &m.CapturedAt, &m.CanceledAt, &m.LastError, &m.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewIntentNotFoundError(key)
		}
		return nil, fmt.Errorf("failed to scan payment intent: %w", err)
	}
	return toIntentDomain(m), nil
}

// isUniqueViolation reports whether err is a unique-constraint breach.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
