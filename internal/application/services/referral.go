package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/rideloop/payments/internal/application"
	"github.com/rideloop/payments/internal/domain"
)

// ReferralDiscountResolver applies referral discounts at authorization
// time and settles grant state when the discounted booking is captured.
type ReferralDiscountResolver struct {
	grants application.ReferralRepository
	logger *slog.Logger
}

func NewReferralDiscountResolver(grants application.ReferralRepository, logger *slog.Logger) *ReferralDiscountResolver {
	return &ReferralDiscountResolver{
		grants: grants,
		logger: logger,
	}
}

// ResolveDiscount returns the rider's best consumable grant, or nil when
// the rider has none. The repository prefers the rider's own
// referred-discount over an unlocked referrer reward.
func (r *ReferralDiscountResolver) ResolveDiscount(ctx context.Context, riderID string) (*domain.ReferralDiscountGrant, error) {
	grant, err := r.grants.FindConsumableByBeneficiary(ctx, riderID)
	if err != nil {
		return nil, err
	}
	if grant == nil || !grant.Consumable() {
		return nil, nil
	}
	return grant, nil
}

// OnCaptureSucceeded settles the consumed grant after the discounted
// booking's capture: the grant goes USED and, when the consumer was a
// referred beneficiary, the referrer's own reward unlocks in the same
// step. Safe to call repeatedly; worker retries must not double-settle.
func (r *ReferralDiscountResolver) OnCaptureSucceeded(ctx context.Context, grantID string) error {
	grant, err := r.grants.FindByID(ctx, grantID)
	if err != nil {
		return err
	}

	now := time.Now()

	if grant.Status == domain.GrantPending {
		if err := grant.Consume(now); err != nil {
			return err
		}
		if err := r.grants.Update(ctx, grant); err != nil {
			return err
		}
		r.logger.Info("referral grant consumed",
			"grant_id", grant.ID,
			"beneficiary_id", grant.BeneficiaryID,
			"role", grant.Role,
		)
	}

	if grant.Role != domain.RoleReferred {
		return nil
	}

	// Unlock the referrer's reward. A retry that already unlocked it
	// finds the grant past UNAVAILABLE and does nothing.
	reward, err := r.grants.FindByReferralUse(ctx, grant.ReferralUseID, domain.RoleReferrer)
	if err != nil {
		return err
	}
	if reward == nil || reward.Status != domain.GrantUnavailable {
		return nil
	}

	reward.Unlock(now)
	if err := r.grants.Update(ctx, reward); err != nil {
		return err
	}
	r.logger.Info("referrer reward unlocked",
		"grant_id", reward.ID,
		"beneficiary_id", reward.BeneficiaryID,
		"referral_use_id", reward.ReferralUseID,
	)
	return nil
}
