package domain

import (
	"time"
)

// GrantStatus is the lifecycle of a referral discount grant.
type GrantStatus string

const (
	// GrantUnavailable: a referrer's reward before the referred user's
	// first captured booking unlocks it.
	GrantUnavailable GrantStatus = "UNAVAILABLE"
	GrantPending     GrantStatus = "PENDING"
	GrantUsed        GrantStatus = "USED"
	GrantExpired     GrantStatus = "EXPIRED"
)

// GrantRole distinguishes the two beneficiaries of one referral use.
type GrantRole string

const (
	RoleReferred GrantRole = "referred"
	RoleReferrer GrantRole = "referrer"
)

// ReferralDiscountPercent is the discount a grant applies to a
// booking's subtotal.
const ReferralDiscountPercent = 10

// ReferralDiscountGrant entitles a user to a percentage discount on one
// booking. The referred user's grant starts PENDING at signup; the
// referrer's starts UNAVAILABLE and unlocks when the referred user's
// discounted booking is captured.
type ReferralDiscountGrant struct {
	ID            string
	ReferralUseID string
	BeneficiaryID string
	Role          GrantRole
	Percent       int
	Status        GrantStatus
	CreatedAt     time.Time
	ConsumedAt    *time.Time
	UnlockedAt    *time.Time
}

func NewReferralDiscountGrant(id, referralUseID, beneficiaryID string, role GrantRole) (*ReferralDiscountGrant, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("grant ID")
	}
	if referralUseID == "" {
		return nil, NewMissingRequiredFieldError("referral use ID")
	}
	if beneficiaryID == "" {
		return nil, NewMissingRequiredFieldError("beneficiary ID")
	}

	status := GrantPending
	if role == RoleReferrer {
		status = GrantUnavailable
	}

	return &ReferralDiscountGrant{
		ID:            id,
		ReferralUseID: referralUseID,
		BeneficiaryID: beneficiaryID,
		Role:          role,
		Percent:       ReferralDiscountPercent,
		Status:        status,
		CreatedAt:     time.Now(),
	}, nil
}

// DiscountFor computes the discount this grant applies to a subtotal.
func (g *ReferralDiscountGrant) DiscountFor(subtotal int64) int64 {
	return subtotal * int64(g.Percent) / 100
}

// Consume marks the grant used by a captured booking.
func (g *ReferralDiscountGrant) Consume(at time.Time) error {
	if g.Status != GrantPending {
		return NewGrantNotConsumableError(g.ID, g.Status)
	}
	g.Status = GrantUsed
	g.ConsumedAt = &at
	return nil
}

// Unlock makes a referrer's reward spendable. Unlocking an
// already-pending or used grant is a no-op so capture retries stay
// idempotent.
func (g *ReferralDiscountGrant) Unlock(at time.Time) {
	if g.Status != GrantUnavailable {
		return
	}
	g.Status = GrantPending
	g.UnlockedAt = &at
}

// Consumable reports whether the grant can discount a booking.
func (g *ReferralDiscountGrant) Consumable() bool {
	return g.Status == GrantPending
}
