package provider_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rideloop/payments/internal/application"
	"github.com/rideloop/payments/internal/application/services"
	"github.com/rideloop/payments/internal/config"
	"github.com/rideloop/payments/internal/infrastructure/provider"
)

func newRetryClient(inner application.ProviderGateway) application.ProviderGateway {
	return provider.NewRetryProviderClient(inner, config.RetryConfig{
		BaseDelay:  time.Millisecond,
		MaxRetries: 3,
	})
}

func TestRetryProviderClient_Capture_Success(t *testing.T) {
	inner := services.NewMockProviderGateway()
	client := newRetryClient(inner)

	resp, err := client.Capture(context.Background(), application.ProviderCaptureRequest{
		ExternalRef: "ch_test",
		AmountCents: 2700,
	}, "capture-item-1")

	require.NoError(t, err)
	assert.Equal(t, int64(2700), resp.CapturedAmount)
	assert.Equal(t, 1, inner.CaptureCalls)
}

func TestRetryProviderClient_Capture_RetriesOn5xx(t *testing.T) {
	inner := services.NewMockProviderGateway()
	var calls int
	inner.CaptureFn = func(ctx context.Context, req application.ProviderCaptureRequest, idempotencyKey string) (*application.ProviderCaptureResponse, error) {
		calls++
		if calls < 3 {
			return nil, &application.ProviderError{Code: "internal_error", Message: "internal server error", StatusCode: 500}
		}
		return &application.ProviderCaptureResponse{
			ExternalRef:    req.ExternalRef,
			Status:         application.ChargeCaptured,
			CapturedAmount: req.AmountCents,
			CapturedAt:     time.Now(),
		}, nil
	}
	client := newRetryClient(inner)

	resp, err := client.Capture(context.Background(), application.ProviderCaptureRequest{
		ExternalRef: "ch_test",
		AmountCents: 2700,
	}, "capture-item-1")

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, int64(2700), resp.CapturedAmount)
}

func TestRetryProviderClient_Capture_DoesNotRetryDeclines(t *testing.T) {
	inner := services.NewMockProviderGateway()
	inner.CaptureFn = func(ctx context.Context, req application.ProviderCaptureRequest, idempotencyKey string) (*application.ProviderCaptureResponse, error) {
		return nil, &application.ProviderError{Code: "card_declined", Message: "insufficient funds", StatusCode: 402}
	}
	client := newRetryClient(inner)

	_, err := client.Capture(context.Background(), application.ProviderCaptureRequest{
		ExternalRef: "ch_test",
		AmountCents: 2700,
	}, "capture-item-1")

	require.Error(t, err)
	assert.Equal(t, 1, inner.CaptureCalls)

	provErr, ok := application.IsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, "card_declined", provErr.Code)
}

func TestRetryProviderClient_GivesUpAfterMaxRetries(t *testing.T) {
	inner := services.NewMockProviderGateway()
	inner.GetChargeFn = func(ctx context.Context, externalRef string) (*application.ProviderChargeStatus, error) {
		return nil, &application.ProviderError{Code: "internal_error", Message: "internal server error", StatusCode: 500}
	}
	client := newRetryClient(inner)

	_, err := client.GetCharge(context.Background(), "ch_test")

	require.Error(t, err)
	assert.Equal(t, 3, inner.GetChargeCalls)
	assert.ErrorContains(t, err, "maximum retries exceeded")
}

func TestRetryProviderClient_StopsOnCanceledContext(t *testing.T) {
	inner := services.NewMockProviderGateway()
	client := newRetryClient(inner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetCharge(ctx, "ch_test")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, inner.GetChargeCalls)
}
