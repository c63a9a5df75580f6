package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rideloop/payments/internal/domain"
)

const grantColumns = `id, referral_use_id, beneficiary_id, role, percent, status,
	created_at, consumed_at, unlocked_at`

type ReferralRepository struct {
	db *pgxpool.Pool
}

func NewReferralRepository(db *pgxpool.Pool) *ReferralRepository {
	return &ReferralRepository{db: db}
}

func (r *ReferralRepository) FindByID(ctx context.Context, id string) (*domain.ReferralDiscountGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM referral_discount_grants WHERE id = $1`

	grant, err := scanGrant(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewGrantNotConsumableError(id, "")
		}
		return nil, err
	}
	return grant, nil
}

// FindConsumableByBeneficiary picks the grant a new booking should
// spend: the beneficiary's own referred-discount first, else an
// unlocked referrer reward, oldest first.
func (r *ReferralRepository) FindConsumableByBeneficiary(ctx context.Context, beneficiaryID string) (*domain.ReferralDiscountGrant, error) {
	query := `
		SELECT ` + grantColumns + `
		FROM referral_discount_grants
		WHERE beneficiary_id = $1 AND status = 'PENDING'
		ORDER BY CASE role WHEN 'referred' THEN 0 ELSE 1 END, created_at ASC
		LIMIT 1
	`

	grant, err := scanGrant(r.db.QueryRow(ctx, query, beneficiaryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return grant, nil
}

func (r *ReferralRepository) FindByReferralUse(ctx context.Context, referralUseID string, role domain.GrantRole) (*domain.ReferralDiscountGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM referral_discount_grants WHERE referral_use_id = $1 AND role = $2`

	grant, err := scanGrant(r.db.QueryRow(ctx, query, referralUseID, string(role)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return grant, nil
}

func (r *ReferralRepository) Update(ctx context.Context, grant *domain.ReferralDiscountGrant) error {
	query := `
		UPDATE referral_discount_grants
		SET status = $1, consumed_at = $2, unlocked_at = $3
		WHERE id = $4
	`

	result, err := r.db.Exec(ctx, query,
		string(grant.Status), grant.ConsumedAt, grant.UnlockedAt,
		grant.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update referral grant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("referral grant %s not found", grant.ID)
	}
	return nil
}

func scanGrant(row pgx.Row) (*domain.ReferralDiscountGrant, error) {
	var m GrantModel
	err := row.Scan(
		&m.ID, &m.ReferralUseID, &m.BeneficiaryID, &m.Role, &m.Percent, &m.Status,
		&m.CreatedAt, &m.ConsumedAt, &m.UnlockedAt,
	)
	if err != nil {
		return nil, err
	}
	return toGrantDomain(m), nil
}
