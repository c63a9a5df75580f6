package provider

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rideloop/payments/internal/application"
	"github.com/rideloop/payments/internal/config"
)

// RetryProviderClient decorates a ProviderGateway with bounded retries
// on transient failures. Mutating calls keep their idempotency key
// across attempts, so provider-side dedup absorbs the repeats.
type RetryProviderClient struct {
	inner      application.ProviderGateway
	baseDelay  time.Duration
	maxRetries int
}

func NewRetryProviderClient(inner application.ProviderGateway, cfg config.RetryConfig) application.ProviderGateway {
	return &RetryProviderClient{
		inner:      inner,
		baseDelay:  cfg.BaseDelay,
		maxRetries: cfg.MaxRetries,
	}
}

func (r *RetryProviderClient) Authorize(ctx context.Context, req application.ProviderAuthorizationRequest, idempotencyKey string) (*application.ProviderAuthorizationResponse, error) {
	return retry(r, ctx, func(ctx context.Context) (*application.ProviderAuthorizationResponse, error) {
		return r.inner.Authorize(ctx, req, idempotencyKey)
	})
}

func (r *RetryProviderClient) Capture(ctx context.Context, req application.ProviderCaptureRequest, idempotencyKey string) (*application.ProviderCaptureResponse, error) {
	return retry(r, ctx, func(ctx context.Context) (*application.ProviderCaptureResponse, error) {
		return r.inner.Capture(ctx, req, idempotencyKey)
	})
}

func (r *RetryProviderClient) Cancel(ctx context.Context, req application.ProviderCancelRequest, idempotencyKey string) (*application.ProviderCancelResponse, error) {
	return retry(r, ctx, func(ctx context.Context) (*application.ProviderCancelResponse, error) {
		return r.inner.Cancel(ctx, req, idempotencyKey)
	})
}

func (r *RetryProviderClient) Refund(ctx context.Context, req application.ProviderRefundRequest, idempotencyKey string) (*application.ProviderRefundResponse, error) {
	return retry(r, ctx, func(ctx context.Context) (*application.ProviderRefundResponse, error) {
		return r.inner.Refund(ctx, req, idempotencyKey)
	})
}

func (r *RetryProviderClient) GetCharge(ctx context.Context, externalRef string) (*application.ProviderChargeStatus, error) {
	return retry(r, ctx, func(ctx context.Context) (*application.ProviderChargeStatus, error) {
		return r.inner.GetCharge(ctx, externalRef)
	})
}

func retry[T any](r *RetryProviderClient, ctx context.Context, operation func(ctx context.Context) (*T, error)) (*T, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		resp, err := operation(ctx)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		if attempt < r.maxRetries-1 {
			time.Sleep(r.backoff(attempt))
		}
	}

	return nil, fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	if provErr, ok := application.IsProviderError(err); ok {
		if provErr.StatusCode >= 500 {
			return true
		}
		if provErr.Code == "internal_error" || provErr.Code == "rate_limited" {
			return true
		}
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Network-level failures without a structured provider error.
	return true
}

// backoff doubles per attempt with up to a second of jitter.
func (r *RetryProviderClient) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)
	jitter := time.Duration(rand.Intn(1000)) * time.Millisecond
	return base + jitter
}
