package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rideloop/payments/internal/domain"
)

func TestEarningsPoster_AdjustForRefundRepairsStaleRecord(t *testing.T) {
	earnings := NewMockEarningsRepository()
	poster := NewEarningsPoster(earnings, testLogger())

	intent, err := domain.NewPaymentIntent(uuid.New().String(), "ride-1", "booking-1", "rider-1", "driver-1", 3000, 300, "EUR")
	require.NoError(t, err)
	require.NoError(t, intent.Authorize("ch_test", time.Now()))
	require.NoError(t, intent.MarkCaptureQueued())
	require.NoError(t, intent.Capture(2700, time.Now()))

	_, err = poster.PostCapture(context.Background(), intent, 2700)
	require.NoError(t, err)

	// The ledger recorded a refund but the earnings write never landed,
	// leaving the driver's net overstated.
	require.NoError(t, intent.Refund(1000))

	require.NoError(t, poster.AdjustForRefund(context.Background(), intent))

	record := earnings.Get(intent.BookingID)
	require.NotNil(t, record)
	assert.Equal(t, int64(1700), record.GrossAmount)
	assert.Equal(t, int64(255), record.PlatformFee)
	assert.Equal(t, int64(1445), record.NetAmount)

	// Replaying the adjustment finds the record aligned and changes
	// nothing.
	require.NoError(t, poster.AdjustForRefund(context.Background(), intent))

	record = earnings.Get(intent.BookingID)
	assert.Equal(t, int64(1700), record.GrossAmount)
	assert.Equal(t, int64(1445), record.NetAmount)
}

func TestEarningsPoster_AdjustForRefundWithoutRecordIsNoOp(t *testing.T) {
	earnings := NewMockEarningsRepository()
	poster := NewEarningsPoster(earnings, testLogger())

	// A cancellation before capture never posted an earning.
	intent, err := domain.NewPaymentIntent(uuid.New().String(), "ride-1", "booking-1", "rider-1", "driver-1", 3000, 0, "EUR")
	require.NoError(t, err)

	require.NoError(t, poster.AdjustForRefund(context.Background(), intent))
	assert.Nil(t, earnings.Get(intent.BookingID))
}
