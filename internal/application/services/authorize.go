package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/rideloop/payments/internal/application"
	"github.com/rideloop/payments/internal/domain"
)

// AuthorizeService opens payment intents and places the provider hold.
// Funds are only reserved here; the actual charge happens when the
// capture worker drains the queue after ride completion.
type AuthorizeService struct {
	intents   application.IntentRepository
	referrals *ReferralDiscountResolver
	provider  application.ProviderGateway
	logger    *slog.Logger
}

func NewAuthorizeService(
	intents application.IntentRepository,
	referrals *ReferralDiscountResolver,
	provider application.ProviderGateway,
	logger *slog.Logger,
) *AuthorizeService {
	return &AuthorizeService{
		intents:   intents,
		referrals: referrals,
		provider:  provider,
		logger:    logger,
	}
}

// Authorize creates the intent for a booking, applies at most one
// referral discount, and reserves amountTotal with the provider.
// Calling it again for the same booking returns the existing intent.
func (s *AuthorizeService) Authorize(ctx context.Context, cmd AuthorizeCommand) (*domain.PaymentIntent, error) {
	existing, err := s.intents.FindByBookingID(ctx, cmd.BookingID)
	if err != nil && !domain.IsErrorCode(err, domain.ErrCodeIntentNotFound) {
		return nil, application.NewInternalError(err)
	}

	var intent *domain.PaymentIntent
	switch {
	case existing == nil:
		intent, err = s.newIntent(ctx, cmd)
		if err != nil {
			return nil, err
		}
	case existing.Status == domain.StatusPendingAuthorization:
		// A previous attempt died before the provider answered; resume
		// with the same intent and idempotency key.
		intent = existing
	default:
		return existing, nil
	}

	// The booking-scoped key makes provider-side authorization
	// idempotent across retries of this operation.
	idempotencyKey := fmt.Sprintf("authorize-%s", cmd.BookingID)

	resp, err := s.provider.Authorize(ctx, application.ProviderAuthorizationRequest{
		AmountCents: intent.AmountTotal,
		Currency:    intent.Currency,
		CustomerRef: cmd.CustomerRef,
	}, idempotencyKey)
	if err != nil {
		return s.handleAuthorizeFailure(ctx, intent, err)
	}

	if err := intent.Authorize(resp.ExternalRef, resp.CreatedAt); err != nil {
		return nil, application.NewInvalidStateError(err)
	}
	if err := s.intents.Update(ctx, intent); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("payment authorized",
		"payment_intent_id", intent.ID,
		"booking_id", intent.BookingID,
		"amount_total", intent.AmountTotal,
		"discount", intent.DiscountAmount,
	)
	return intent, nil
}

func (s *AuthorizeService) newIntent(ctx context.Context, cmd AuthorizeCommand) (*domain.PaymentIntent, error) {
	grant, err := s.referrals.ResolveDiscount(ctx, cmd.RiderID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	var discount int64
	if grant != nil {
		discount = grant.DiscountFor(cmd.SubtotalCents)
	}

	intent, err := domain.NewPaymentIntent(
		uuid.New().String(),
		cmd.RideID,
		cmd.BookingID,
		cmd.RiderID,
		cmd.DriverID,
		cmd.SubtotalCents,
		discount,
		cmd.Currency,
	)
	if err != nil {
		return nil, application.NewInvalidInputError(err)
	}
	if grant != nil {
		intent.DiscountGrantID = &grant.ID
	}

	if err := s.intents.Create(ctx, intent); err != nil {
		return nil, application.NewInternalError(err)
	}
	return intent, nil
}

func (s *AuthorizeService) handleAuthorizeFailure(ctx context.Context, intent *domain.PaymentIntent, provErr error) (*domain.PaymentIntent, error) {
	category := application.CategorizeError(provErr)
	s.logger.Error("authorization failed",
		"payment_intent_id", intent.ID,
		"booking_id", intent.BookingID,
		"category", category,
		"error", provErr,
	)

	if category == application.CategoryTransient {
		// Outcome unknown or provider down; the intent stays pending and
		// the caller retries with the same booking-scoped key.
		return nil, application.NewProviderUnavailableError(provErr)
	}

	if err := intent.Decline(provErr.Error()); err != nil {
		return nil, application.NewInvalidStateError(err)
	}
	if err := s.intents.Update(ctx, intent); err != nil {
		return nil, application.NewInternalError(err)
	}
	return nil, application.NewProviderDeclinedError(provErr)
}
