package domain_test

import (
	"testing"
	"time"

	"github.com/rideloop/payments/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestIntent(t *testing.T) *domain.PaymentIntent {
	t.Helper()
	intent, err := domain.NewPaymentIntent("pi-123", "ride-1", "booking-1", "rider-1", "driver-1", 3000, 300, "EUR")
	require.NoError(t, err)
	return intent
}

func createAuthorizedIntent(t *testing.T) *domain.PaymentIntent {
	t.Helper()
	intent := createTestIntent(t)
	require.NoError(t, intent.Authorize("ch-123", time.Now()))
	return intent
}

func createQueuedIntent(t *testing.T) *domain.PaymentIntent {
	t.Helper()
	intent := createAuthorizedIntent(t)
	require.NoError(t, intent.MarkCaptureQueued())
	return intent
}

func createCapturedIntent(t *testing.T, amount int64) *domain.PaymentIntent {
	t.Helper()
	intent := createQueuedIntent(t)
	require.NoError(t, intent.Capture(amount, time.Now()))
	return intent
}

func TestNewPaymentIntent(t *testing.T) {
	t.Run("creates intent and derives total", func(t *testing.T) {
		intent, err := domain.NewPaymentIntent("pi-123", "ride-1", "booking-1", "rider-1", "driver-1", 3000, 300, "EUR")

		require.NoError(t, err)
		assert.Equal(t, "pi-123", intent.ID)
		assert.Equal(t, int64(3000), intent.AmountSubtotal)
		assert.Equal(t, int64(300), intent.DiscountAmount)
		assert.Equal(t, int64(2700), intent.AmountTotal)
		assert.Equal(t, domain.CaptureMethodManual, intent.CaptureMethod)
		assert.Equal(t, domain.StatusPendingAuthorization, intent.Status)
		assert.Nil(t, intent.ExternalRef)
		assert.NotZero(t, intent.CreatedAt)
	})

	t.Run("rejects discount exceeding subtotal", func(t *testing.T) {
		_, err := domain.NewPaymentIntent("pi-123", "ride-1", "booking-1", "rider-1", "driver-1", 3000, 3100, "EUR")

		assert.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidAmount))
	})

	t.Run("rejects non-positive subtotal", func(t *testing.T) {
		_, err := domain.NewPaymentIntent("pi-123", "ride-1", "booking-1", "rider-1", "driver-1", 0, 0, "EUR")

		assert.Error(t, err)
	})

	t.Run("rejects empty booking ID", func(t *testing.T) {
		_, err := domain.NewPaymentIntent("pi-123", "ride-1", "", "rider-1", "driver-1", 3000, 0, "EUR")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "booking ID is required")
	})
}

func TestPaymentIntent_StateTransitions(t *testing.T) {
	t.Run("PENDING_AUTHORIZATION -> AUTHORIZED", func(t *testing.T) {
		intent := createTestIntent(t)

		err := intent.Authorize("ch-123", time.Now())

		require.NoError(t, err)
		assert.Equal(t, domain.StatusAuthorized, intent.Status)
		assert.Equal(t, "ch-123", *intent.ExternalRef)
		assert.NotNil(t, intent.AuthorizedAt)
	})

	t.Run("authorize requires external reference", func(t *testing.T) {
		intent := createTestIntent(t)

		err := intent.Authorize("", time.Now())

		assert.Error(t, err)
		assert.Equal(t, domain.StatusPendingAuthorization, intent.Status)
	})

	t.Run("PENDING_AUTHORIZATION -> FAILED on decline", func(t *testing.T) {
		intent := createTestIntent(t)

		err := intent.Decline("card_declined")

		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, intent.Status)
		assert.Equal(t, "card_declined", *intent.LastError)
	})

	t.Run("AUTHORIZED -> CAPTURE_QUEUED", func(t *testing.T) {
		intent := createAuthorizedIntent(t)

		require.NoError(t, intent.MarkCaptureQueued())
		assert.Equal(t, domain.StatusCaptureQueued, intent.Status)
	})

	t.Run("CAPTURE_QUEUED -> CAPTURED", func(t *testing.T) {
		intent := createQueuedIntent(t)

		err := intent.Capture(2700, time.Now())

		require.NoError(t, err)
		assert.Equal(t, domain.StatusCaptured, intent.Status)
		assert.Equal(t, int64(2700), intent.CapturedAmount)
		assert.NotNil(t, intent.CapturedAt)
	})

	t.Run("CAPTURE_QUEUED -> AUTHORIZED on transient failure", func(t *testing.T) {
		intent := createQueuedIntent(t)

		err := intent.ReturnToAuthorized("provider timeout")

		require.NoError(t, err)
		assert.Equal(t, domain.StatusAuthorized, intent.Status)
		assert.Equal(t, "provider timeout", *intent.LastError)
	})

	t.Run("CAPTURE_QUEUED -> FAILED when retries exhausted", func(t *testing.T) {
		intent := createQueuedIntent(t)

		err := intent.FailCapture("maximum attempts reached")

		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, intent.Status)
	})

	t.Run("capture is illegal before queueing", func(t *testing.T) {
		intent := createAuthorizedIntent(t)

		err := intent.Capture(2700, time.Now())

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidTransition))
		assert.Equal(t, domain.StatusAuthorized, intent.Status)
	})

	t.Run("capture above the authorized total is rejected", func(t *testing.T) {
		intent := createQueuedIntent(t)

		err := intent.Capture(2800, time.Now())

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidAmount))
	})

	t.Run("captured intent cannot be canceled", func(t *testing.T) {
		intent := createCapturedIntent(t, 2700)

		err := intent.Cancel(time.Now())

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidTransition))
	})
}

func TestPaymentIntent_Cancel(t *testing.T) {
	t.Run("AUTHORIZED -> CANCELED", func(t *testing.T) {
		intent := createAuthorizedIntent(t)

		err := intent.Cancel(time.Now())

		require.NoError(t, err)
		assert.Equal(t, domain.StatusCanceled, intent.Status)
		assert.NotNil(t, intent.CanceledAt)
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		intent := createAuthorizedIntent(t)
		require.NoError(t, intent.Cancel(time.Now()))
		firstCanceledAt := *intent.CanceledAt

		err := intent.Cancel(time.Now().Add(time.Minute))

		require.NoError(t, err)
		assert.Equal(t, domain.StatusCanceled, intent.Status)
		assert.Equal(t, firstCanceledAt, *intent.CanceledAt)
	})

	t.Run("cancel is illegal before authorization", func(t *testing.T) {
		intent := createTestIntent(t)

		err := intent.Cancel(time.Now())

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidTransition))
	})
}

func TestPaymentIntent_Refund(t *testing.T) {
	t.Run("full refund", func(t *testing.T) {
		intent := createCapturedIntent(t, 2700)

		err := intent.Refund(2700)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusRefunded, intent.Status)
		assert.Equal(t, int64(2700), intent.RefundedAmount)
		assert.Equal(t, int64(0), intent.RefundableAmount())
	})

	t.Run("partial refunds accumulate up to the captured amount", func(t *testing.T) {
		intent := createCapturedIntent(t, 2700)

		require.NoError(t, intent.Refund(1000))
		assert.Equal(t, domain.StatusPartiallyRefunded, intent.Status)
		assert.Equal(t, int64(1700), intent.RefundableAmount())

		require.NoError(t, intent.Refund(700))
		assert.Equal(t, domain.StatusPartiallyRefunded, intent.Status)

		require.NoError(t, intent.Refund(1000))
		assert.Equal(t, domain.StatusRefunded, intent.Status)
		assert.Equal(t, int64(2700), intent.RefundedAmount)
	})

	t.Run("refund exceeding the remaining balance is rejected", func(t *testing.T) {
		intent := createCapturedIntent(t, 2700)
		require.NoError(t, intent.Refund(2000))

		err := intent.Refund(800)

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeRefundExceedsBalance))
		assert.Equal(t, int64(2000), intent.RefundedAmount)
	})

	t.Run("refund against a partial capture caps at the captured amount", func(t *testing.T) {
		intent := createCapturedIntent(t, 1350)

		err := intent.Refund(1400)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeRefundExceedsBalance))

		require.NoError(t, intent.Refund(1350))
		assert.Equal(t, domain.StatusRefunded, intent.Status)
	})

	t.Run("refund is illegal before capture", func(t *testing.T) {
		intent := createAuthorizedIntent(t)

		err := intent.Refund(100)

		assert.Error(t, err)
	})
}

func TestCaptureQueueItem(t *testing.T) {
	t.Run("schedule retry increments attempts and delays the item", func(t *testing.T) {
		item, err := domain.NewCaptureQueueItem("q-1", "pi-123", 2700, 5)
		require.NoError(t, err)
		item.Status = domain.CaptureProcessing

		item.ScheduleRetry(2*time.Minute, "provider timeout")

		assert.Equal(t, domain.CapturePending, item.Status)
		assert.Equal(t, 1, item.Attempts)
		assert.False(t, item.Due(time.Now()))
		assert.True(t, item.Due(time.Now().Add(3*time.Minute)))
	})

	t.Run("fail is terminal and keeps the error", func(t *testing.T) {
		item, err := domain.NewCaptureQueueItem("q-1", "pi-123", 2700, 5)
		require.NoError(t, err)

		item.Fail("maximum attempts reached")

		assert.Equal(t, domain.CaptureFailed, item.Status)
		assert.True(t, item.IsTerminal())
		assert.Equal(t, "maximum attempts reached", *item.ErrorMessage)
		assert.False(t, item.Due(time.Now()))
	})

	t.Run("exhaustion check", func(t *testing.T) {
		item, err := domain.NewCaptureQueueItem("q-1", "pi-123", 2700, 5)
		require.NoError(t, err)

		item.Attempts = 3
		assert.False(t, item.ExhaustedAfterNextFailure())
		item.Attempts = 4
		assert.True(t, item.ExhaustedAfterNextFailure())
	})
}
