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

func newCompletionFixture() (*CompletionService, *MockIntentRepository, *MockCaptureQueueRepository) {
	intents := NewMockIntentRepository()
	queue := NewMockCaptureQueueRepository()
	svc := NewCompletionService(intents, queue, 5, testLogger())
	return svc, intents, queue
}

func seedAuthorized(t *testing.T, intents *MockIntentRepository, bookingID string) *domain.PaymentIntent {
	t.Helper()
	intent, err := domain.NewPaymentIntent(uuid.New().String(), "ride-1", bookingID, "rider-"+bookingID, "driver-1", 3000, 0, "EUR")
	require.NoError(t, err)
	require.NoError(t, intent.Authorize("ch_"+bookingID, time.Now()))
	require.NoError(t, intents.Create(context.Background(), intent))
	return intent
}

func TestCompletionService_EnqueuesPerBooking(t *testing.T) {
	svc, intents, queue := newCompletionFixture()
	a := seedAuthorized(t, intents, "booking-a")
	b := seedAuthorized(t, intents, "booking-b")

	err := svc.HandleRideCompleted(context.Background(), RideCompletedEvent{
		RideID:     "ride-1",
		BookingIDs: []string{"booking-a", "booking-b"},
	})
	require.NoError(t, err)

	for _, intent := range []*domain.PaymentIntent{a, b} {
		assert.Equal(t, domain.StatusCaptureQueued, intents.Get(intent.ID).Status)
		item, err := queue.FindActiveByIntent(context.Background(), intent.ID)
		require.NoError(t, err)
		require.NotNil(t, item)
		assert.Equal(t, intent.AmountTotal, item.AmountCents)
		assert.Equal(t, 5, item.MaxAttempts)
	}
}

func TestCompletionService_RedeliveredEventIsNoOp(t *testing.T) {
	svc, intents, queue := newCompletionFixture()
	intent := seedAuthorized(t, intents, "booking-a")
	evt := RideCompletedEvent{RideID: "ride-1", BookingIDs: []string{"booking-a"}}

	require.NoError(t, svc.HandleRideCompleted(context.Background(), evt))
	require.NoError(t, svc.HandleRideCompleted(context.Background(), evt))

	// Still exactly one active item for the intent.
	due, err := queue.FindDue(context.Background(), time.Now(), 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)
	assert.Equal(t, domain.StatusCaptureQueued, intents.Get(intent.ID).Status)
}

func TestCompletionService_SkipsNonAuthorizedBookings(t *testing.T) {
	svc, intents, queue := newCompletionFixture()
	intent := seedAuthorized(t, intents, "booking-a")
	canceled := intents.Get(intent.ID)
	require.NoError(t, canceled.Cancel(time.Now()))
	require.NoError(t, intents.Update(context.Background(), canceled))

	err := svc.HandleRideCompleted(context.Background(), RideCompletedEvent{
		RideID:     "ride-1",
		BookingIDs: []string{"booking-a", "booking-unknown"},
	})
	require.NoError(t, err)

	due, err := queue.FindDue(context.Background(), time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
	assert.Equal(t, domain.StatusCanceled, intents.Get(intent.ID).Status)
}
