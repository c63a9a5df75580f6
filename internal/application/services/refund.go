package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rideloop/payments/internal/application"
	"github.com/rideloop/payments/internal/domain"
)

// RefundService returns captured funds to the rider, outside of any
// cancellation policy (support-initiated refunds, fare disputes).
type RefundService struct {
	intents  application.IntentRepository
	provider application.ProviderGateway
	earnings *EarningsPoster
	notifier application.NotificationDispatcher
	logger   *slog.Logger
}

func NewRefundService(
	intents application.IntentRepository,
	provider application.ProviderGateway,
	earnings *EarningsPoster,
	notifier application.NotificationDispatcher,
	logger *slog.Logger,
) *RefundService {
	return &RefundService{
		intents:  intents,
		provider: provider,
		earnings: earnings,
		notifier: notifier,
		logger:   logger,
	}
}

// Refund returns part or all of a captured payment. Cumulative refunds
// can never exceed the captured amount; the balance is checked before
// any provider call so an over-refund never leaves the process.
func (s *RefundService) Refund(ctx context.Context, cmd RefundCommand) (*domain.PaymentIntent, error) {
	intent, err := s.intents.FindByID(ctx, cmd.PaymentIntentID)
	if err != nil {
		return nil, err
	}

	if cmd.AmountCents <= 0 {
		return nil, application.NewInvalidInputError(
			domain.NewInvalidAmountError(cmd.AmountCents))
	}
	switch intent.Status {
	case domain.StatusCaptured, domain.StatusPartiallyRefunded:
	default:
		return nil, application.NewInvalidStateError(
			domain.NewInvalidTransitionError(intent.Status, domain.StatusRefunded))
	}
	if remaining := intent.RefundableAmount(); cmd.AmountCents > remaining {
		return nil, application.NewPolicyViolationError(
			domain.NewRefundExceedsBalanceError(cmd.AmountCents, remaining))
	}

	// Keyed on intent and refunded-so-far, so retrying the same refund
	// dedupes at the provider while a subsequent partial refund gets a
	// fresh key.
	idempotencyKey := fmt.Sprintf("refund-%s-%d", intent.ID, intent.RefundedAmount)

	_, err = s.provider.Refund(ctx, application.ProviderRefundRequest{
		ExternalRef: *intent.ExternalRef,
		AmountCents: cmd.AmountCents,
	}, idempotencyKey)
	if err != nil && !application.IsAlreadyInTargetState(err, application.ProviderCodeAlreadyRefunded) {
		if application.CategorizeError(err) == application.CategoryTransient {
			return nil, application.NewProviderUnavailableError(err)
		}
		return nil, application.NewProviderDeclinedError(err)
	}

	if err := intent.Refund(cmd.AmountCents); err != nil {
		return nil, application.NewPolicyViolationError(err)
	}
	if err := s.intents.Update(ctx, intent); err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeVersionConflict) {
			return nil, application.NewConflictError(err)
		}
		return nil, application.NewInternalError(err)
	}

	if err := s.earnings.AdjustForRefund(ctx, intent); err != nil {
		return nil, application.NewInternalError(err)
	}

	if err := s.notifier.Dispatch(ctx, application.Notification{
		Kind:            application.EventPaymentRefunded,
		PaymentIntentID: intent.ID,
		BookingID:       intent.BookingID,
		RideID:          intent.RideID,
		RiderID:         intent.RiderID,
		DriverID:        intent.DriverID,
		AmountCents:     cmd.AmountCents,
		Currency:        intent.Currency,
		OccurredAt:      time.Now(),
	}); err != nil {
		s.logger.Error("notification dispatch failed",
			"kind", application.EventPaymentRefunded,
			"payment_intent_id", intent.ID,
			"error", err,
		)
	}

	s.logger.Info("payment refunded",
		"payment_intent_id", intent.ID,
		"booking_id", intent.BookingID,
		"refund", cmd.AmountCents,
		"refunded_total", intent.RefundedAmount,
		"status", intent.Status,
		"reason", cmd.Reason,
	)
	return intent, nil
}
