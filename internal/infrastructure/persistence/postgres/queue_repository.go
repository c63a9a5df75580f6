package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rideloop/payments/internal/domain"
)

const captureItemColumns = `id, payment_intent_id, amount_cents, attempts, max_attempts,
	status, next_attempt_at, last_attempt_at, error_message, created_at`

type CaptureQueueRepository struct {
	db *pgxpool.Pool
}

func NewCaptureQueueRepository(db *pgxpool.Pool) *CaptureQueueRepository {
	return &CaptureQueueRepository{db: db}
}

// Enqueue inserts a new work item. The partial unique index on
// payment_intent_id over non-terminal rows converts a concurrent or
// redelivered enqueue into a DUPLICATE_QUEUE_ITEM error.
func (r *CaptureQueueRepository) Enqueue(ctx context.Context, item *domain.CaptureQueueItem) error {
	query := `
		INSERT INTO capture_queue_items (` + captureItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		item.ID, item.PaymentIntentID, item.AmountCents, item.Attempts, item.MaxAttempts,
		string(item.Status), item.NextAttemptAt, item.LastAttemptAt, item.ErrorMessage, item.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewDuplicateQueueItemError(item.PaymentIntentID)
		}
		return fmt.Errorf("failed to enqueue capture item: %w", err)
	}
	return nil
}

// FindDue returns pending items whose next attempt time has passed,
// oldest first.
func (r *CaptureQueueRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*domain.CaptureQueueItem, error) {
	query := `
		SELECT ` + captureItemColumns + `
		FROM capture_queue_items
		WHERE status = 'PENDING'
		  AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due capture items: %w", err)
	}

	results, err := pgx.CollectRows(rows, scanCaptureItemRow)
	if err != nil {
		return nil, fmt.Errorf("scan due capture items: %w", err)
	}
	return results, nil
}

// Claim flips one item from PENDING to PROCESSING. The conditional
// update is the compare-and-swap that serializes racing workers: only
// the caller whose update hits the PENDING row wins.
func (r *CaptureQueueRepository) Claim(ctx context.Context, itemID string) (bool, error) {
	query := `
		UPDATE capture_queue_items
		SET status = 'PROCESSING', last_attempt_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
	`

	result, err := r.db.Exec(ctx, query, itemID)
	if err != nil {
		return false, fmt.Errorf("claim capture item: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

func (r *CaptureQueueRepository) Update(ctx context.Context, item *domain.CaptureQueueItem) error {
	query := `
		UPDATE capture_queue_items
		SET attempts = $1, status = $2, next_attempt_at = $3, last_attempt_at = $4, error_message = $5
		WHERE id = $6
	`

	result, err := r.db.Exec(ctx, query,
		item.Attempts, string(item.Status), item.NextAttemptAt, item.LastAttemptAt, item.ErrorMessage,
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update capture item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("capture item %s not found", item.ID)
	}
	return nil
}

// ReclaimExpired releases claims whose worker died mid-capture. Claim
// stamps last_attempt_at, so a PROCESSING row older than the lease
// cutoff is a lost claim; back in PENDING the next tick re-claims it
// and either repairs or retries the capture.
func (r *CaptureQueueRepository) ReclaimExpired(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		UPDATE capture_queue_items
		SET status = 'PENDING'
		WHERE status = 'PROCESSING' AND last_attempt_at < $1
	`

	result, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reclaim expired capture items: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// FindActiveByIntent returns the intent's non-terminal item, or nil.
func (r *CaptureQueueRepository) FindActiveByIntent(ctx context.Context, paymentIntentID string) (*domain.CaptureQueueItem, error) {
	query := `
		SELECT ` + captureItemColumns + `
		FROM capture_queue_items
		WHERE payment_intent_id = $1 AND status IN ('PENDING', 'PROCESSING')
	`

	rows, err := r.db.Query(ctx, query, paymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("query active capture item: %w", err)
	}

	results, err := pgx.CollectRows(rows, scanCaptureItemRow)
	if err != nil {
		return nil, fmt.Errorf("scan active capture item: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func scanCaptureItemRow(row pgx.CollectableRow) (*domain.CaptureQueueItem, error) {
	var m CaptureItemModel
	err := row.Scan(
		&m.ID, &m.PaymentIntentID, &m.AmountCents, &m.Attempts, &m.MaxAttempts,
		&m.Status, &m.NextAttemptAt, &m.LastAttemptAt, &m.ErrorMessage, &m.CreatedAt,
	)
	return toCaptureItemDomain(m), err
}
