package domain_test

import (
	"testing"
	"time"

	"github.com/rideloop/payments/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestDecideCancellation_Driver(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// Drivers refund the passenger in full no matter how close to departure.
	offsets := []time.Duration{-3 * time.Hour, 2 * time.Hour, 13 * time.Hour, 48 * time.Hour}
	for _, offset := range offsets {
		decision := domain.DecideCancellation("ride-1", domain.ActorDriver, now.Add(offset), now)
		assert.Equal(t, 100, decision.RefundPercentage, "offset %v", offset)
		assert.Equal(t, 0, decision.FeePercentage)
	}
}

func TestDecideCancellation_Passenger(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		untilDepart time.Duration
		wantRefund int
	}{
		{"well before departure", 72 * time.Hour, 100},
		{"exactly 24h before", 24 * time.Hour, 100},
		{"18h before", 18 * time.Hour, 50},
		{"exactly 12h before", 12 * time.Hour, 50},
		{"just under 12h", 12*time.Hour - time.Minute, 0},
		{"2h before", 2 * time.Hour, 0},
		{"departure already passed", -1 * time.Hour, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := domain.DecideCancellation("ride-1", domain.ActorPassenger, now.Add(tt.untilDepart), now)

			assert.Equal(t, tt.wantRefund, decision.RefundPercentage)
			assert.Equal(t, 100-tt.wantRefund, decision.FeePercentage)
			assert.Equal(t, domain.ActorPassenger, decision.ActorRole)
		})
	}
}

func TestCancellationDecision_Amounts(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	decision := domain.DecideCancellation("ride-1", domain.ActorPassenger, now.Add(18*time.Hour), now)

	assert.Equal(t, int64(1350), decision.RefundAmount(2700))
	assert.Equal(t, int64(1350), decision.FeeAmount(2700))

	// Odd totals: the fee keeps the rounding remainder.
	assert.Equal(t, int64(1350), decision.RefundAmount(2701))
	assert.Equal(t, int64(1351), decision.FeeAmount(2701))
}
