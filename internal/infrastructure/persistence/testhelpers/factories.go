package testhelpers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rideloop/payments/internal/domain"
)

// CreateAuthorizedIntent builds an intent holding 2700 cents (3000
// subtotal less a 300 referral discount) with a provider hold in place.
func CreateAuthorizedIntent(t *testing.T) *domain.PaymentIntent {
	intent, err := domain.NewPaymentIntent(
		uuid.New().String(),
		"ride-"+uuid.New().String(),
		"booking-"+uuid.New().String(),
		"rider-"+uuid.New().String(),
		"driver-"+uuid.New().String(),
		3000,
		300,
		"EUR",
	)
	require.NoError(t, err)

	err = intent.Authorize("ch_"+uuid.New().String(), time.Now())
	require.NoError(t, err)

	return intent
}

func CreateQueueItem(t *testing.T, paymentIntentID string, amountCents int64) *domain.CaptureQueueItem {
	item, err := domain.NewCaptureQueueItem(uuid.New().String(), paymentIntentID, amountCents, 5)
	require.NoError(t, err)
	return item
}

// InsertGrant seeds a referral grant row directly. Grants are
// provisioned by the signup flow, so the repository exposes no Create.
func (td *TestDatabase) InsertGrant(t *testing.T, grant *domain.ReferralDiscountGrant) {
	ctx := context.Background()

	_, err := td.DB.Pool.Exec(ctx, `
		INSERT INTO referral_discount_grants
			(id, referral_use_id, beneficiary_id, role, percent, status, created_at, consumed_at, unlocked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		grant.ID, grant.ReferralUseID, grant.BeneficiaryID, string(grant.Role), grant.Percent,
		string(grant.Status), grant.CreatedAt, grant.ConsumedAt, grant.UnlockedAt,
	)
	require.NoError(t, err)
}
