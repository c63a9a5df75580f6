package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rideloop/payments/internal/application"
	"github.com/rideloop/payments/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultAuthorizeCommand() AuthorizeCommand {
	return AuthorizeCommand{
		RideID:        "ride-1",
		BookingID:     "booking-1",
		RiderID:       "rider-1",
		DriverID:      "driver-1",
		SubtotalCents: 3000,
		Currency:      "EUR",
		CustomerRef:   "cus_123",
	}
}

func newAuthorizeFixture() (*AuthorizeService, *MockIntentRepository, *MockReferralRepository, *MockProviderGateway) {
	intents := NewMockIntentRepository()
	grants := NewMockReferralRepository()
	provider := NewMockProviderGateway()
	referrals := NewReferralDiscountResolver(grants, testLogger())
	svc := NewAuthorizeService(intents, referrals, provider, testLogger())
	return svc, intents, grants, provider
}

func TestAuthorizeService_Success(t *testing.T) {
	svc, intents, _, provider := newAuthorizeFixture()

	intent, err := svc.Authorize(context.Background(), defaultAuthorizeCommand())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAuthorized, intent.Status)
	assert.Equal(t, int64(3000), intent.AmountSubtotal)
	assert.Equal(t, int64(0), intent.DiscountAmount)
	assert.Equal(t, int64(3000), intent.AmountTotal)
	require.NotNil(t, intent.ExternalRef)
	assert.Equal(t, 1, provider.AuthorizeCalls)

	stored := intents.Get(intent.ID)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusAuthorized, stored.Status)
}

func TestAuthorizeService_AppliesReferralDiscount(t *testing.T) {
	svc, _, grants, provider := newAuthorizeFixture()

	grant, err := domain.NewReferralDiscountGrant(uuid.New().String(), "use-1", "rider-1", domain.RoleReferred)
	require.NoError(t, err)
	grants.Seed(grant)

	var authorizedAmount int64
	provider.AuthorizeFn = func(ctx context.Context, req application.ProviderAuthorizationRequest, idempotencyKey string) (*application.ProviderAuthorizationResponse, error) {
		authorizedAmount = req.AmountCents
		return &application.ProviderAuthorizationResponse{
			ExternalRef: "ch_test",
			Status:      application.ChargeAuthorized,
			CreatedAt:   time.Now(),
		}, nil
	}

	intent, err := svc.Authorize(context.Background(), defaultAuthorizeCommand())
	require.NoError(t, err)

	// 10% off a 3000 subtotal: the hold covers 2700.
	assert.Equal(t, int64(300), intent.DiscountAmount)
	assert.Equal(t, int64(2700), intent.AmountTotal)
	assert.Equal(t, int64(2700), authorizedAmount)
	require.NotNil(t, intent.DiscountGrantID)
	assert.Equal(t, grant.ID, *intent.DiscountGrantID)

	// The grant stays PENDING until the booking is captured.
	assert.Equal(t, domain.GrantPending, grants.Get(grant.ID).Status)
}

func TestAuthorizeService_IdempotentPerBooking(t *testing.T) {
	svc, _, _, provider := newAuthorizeFixture()
	cmd := defaultAuthorizeCommand()

	first, err := svc.Authorize(context.Background(), cmd)
	require.NoError(t, err)

	second, err := svc.Authorize(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, provider.AuthorizeCalls)
}

func TestAuthorizeService_ProviderDecline(t *testing.T) {
	svc, intents, _, provider := newAuthorizeFixture()
	provider.AuthorizeFn = func(ctx context.Context, req application.ProviderAuthorizationRequest, idempotencyKey string) (*application.ProviderAuthorizationResponse, error) {
		return nil, &application.ProviderError{Code: "card_declined", Message: "insufficient funds", StatusCode: 402}
	}

	_, err := svc.Authorize(context.Background(), defaultAuthorizeCommand())
	require.Error(t, err)

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeProviderDeclined, svcErr.Code)

	stored, err := intents.FindByBookingID(context.Background(), "booking-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	require.NotNil(t, stored.LastError)
}

func TestAuthorizeService_ProviderOutageKeepsIntentPending(t *testing.T) {
	svc, intents, _, provider := newAuthorizeFixture()
	provider.AuthorizeFn = func(ctx context.Context, req application.ProviderAuthorizationRequest, idempotencyKey string) (*application.ProviderAuthorizationResponse, error) {
		return nil, &application.ProviderError{Code: "internal_error", Message: "upstream down", StatusCode: 503}
	}

	_, err := svc.Authorize(context.Background(), defaultAuthorizeCommand())
	require.Error(t, err)

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeProviderUnavailable, svcErr.Code)

	// The intent survives in PENDING_AUTHORIZATION so a retry resumes it
	// under the same booking-scoped idempotency key.
	stored, err := intents.FindByBookingID(context.Background(), "booking-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingAuthorization, stored.Status)

	provider.AuthorizeFn = nil
	intent, err := svc.Authorize(context.Background(), defaultAuthorizeCommand())
	require.NoError(t, err)
	assert.Equal(t, stored.ID, intent.ID)
	assert.Equal(t, domain.StatusAuthorized, intent.Status)
}

func TestAuthorizeService_InvalidInput(t *testing.T) {
	svc, _, _, _ := newAuthorizeFixture()
	cmd := defaultAuthorizeCommand()
	cmd.SubtotalCents = 0

	_, err := svc.Authorize(context.Background(), cmd)
	require.Error(t, err)

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeInvalidInput, svcErr.Code)
}
