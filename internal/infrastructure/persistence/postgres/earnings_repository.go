package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rideloop/payments/internal/domain"
)

const earningsColumns = `id, driver_id, ride_id, booking_id, payment_intent_id,
	gross_amount, platform_fee_percent, platform_fee, net_amount, status, created_at, payout_batch_id`

type EarningsRepository struct {
	db *pgxpool.Pool
}

func NewEarningsRepository(db *pgxpool.Pool) *EarningsRepository {
	return &EarningsRepository{db: db}
}

// UpsertByBooking inserts the record unless one already exists for the
// booking. ON CONFLICT DO NOTHING makes reposting after a worker crash
// a silent no-op instead of a double payout.
func (r *EarningsRepository) UpsertByBooking(ctx context.Context, record *domain.EarningsRecord) error {
	query := `
		INSERT INTO earnings_records (` + earningsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (booking_id) DO NOTHING
	`

	_, err := r.db.Exec(ctx, query,
		record.ID, record.DriverID, record.RideID, record.BookingID, record.PaymentIntentID,
		record.GrossAmount, record.PlatformFeePercent, record.PlatformFee, record.NetAmount,
		string(record.Status), record.CreatedAt, record.PayoutBatchID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert earnings record: %w", err)
	}
	return nil
}

func (r *EarningsRepository) FindByBookingID(ctx context.Context, bookingID string) (*domain.EarningsRecord, error) {
	query := `SELECT ` + earningsColumns + ` FROM earnings_records WHERE booking_id = $1`

	var m EarningsModel
	err := r.db.QueryRow(ctx, query, bookingID).Scan(
		&m.ID, &m.DriverID, &m.RideID, &m.BookingID, &m.PaymentIntentID,
		&m.GrossAmount, &m.PlatformFeePercent, &m.PlatformFee, &m.NetAmount,
		&m.Status, &m.CreatedAt, &m.PayoutBatchID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan earnings record: %w", err)
	}
	return toEarningsDomain(m), nil
}

func (r *EarningsRepository) Update(ctx context.Context, record *domain.EarningsRecord) error {
	query := `
		UPDATE earnings_records
		SET gross_amount = $1, platform_fee = $2, net_amount = $3, status = $4, payout_batch_id = $5
		WHERE id = $6
	`

	result, err := r.db.Exec(ctx, query,
		record.GrossAmount, record.PlatformFee, record.NetAmount,
		string(record.Status), record.PayoutBatchID,
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update earnings record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("earnings record %s not found", record.ID)
	}
	return nil
}

func (r *EarningsRepository) FindPending(ctx context.Context, limit int) ([]*domain.EarningsRecord, error) {
	query := `
		SELECT ` + earningsColumns + `
		FROM earnings_records
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending earnings: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.EarningsRecord, error) {
		var m EarningsModel
		err := row.Scan(
			&m.ID, &m.DriverID, &m.RideID, &m.BookingID, &m.PaymentIntentID,
			&m.GrossAmount, &m.PlatformFeePercent, &m.PlatformFee, &m.NetAmount,
			&m.Status, &m.CreatedAt, &m.PayoutBatchID,
		)
		return toEarningsDomain(m), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan pending earnings: %w", err)
	}
	return results, nil
}
