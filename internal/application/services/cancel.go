package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rideloop/payments/internal/application"
	"github.com/rideloop/payments/internal/domain"
)

// CancellationResult reports the policy decision and the money moved.
type CancellationResult struct {
	Decision      domain.CancellationDecision
	Intent        *domain.PaymentIntent
	RefundedCents int64
	CapturedCents int64
}

// CancellationService converts a cancellation into monetary outcomes:
// releasing the hold, capturing a cancellation fee, or refunding
// captured funds, as the policy table dictates.
type CancellationService struct {
	intents   application.IntentRepository
	queue     application.CaptureQueueRepository
	provider  application.ProviderGateway
	earnings  *EarningsPoster
	referrals *ReferralDiscountResolver
	notifier  application.NotificationDispatcher
	logger    *slog.Logger
}

func NewCancellationService(
	intents application.IntentRepository,
	queue application.CaptureQueueRepository,
	provider application.ProviderGateway,
	earnings *EarningsPoster,
	referrals *ReferralDiscountResolver,
	notifier application.NotificationDispatcher,
	logger *slog.Logger,
) *CancellationService {
	return &CancellationService{
		intents:   intents,
		queue:     queue,
		provider:  provider,
		earnings:  earnings,
		referrals: referrals,
		notifier:  notifier,
		logger:    logger,
	}
}

// CancelBooking applies the refund policy to the booking's intent.
// Against an authorized hold: 100% releases it, 50% captures half and
// releases the rest, 0% captures the full amount (the no-show case).
// Against captured funds the same percentages drive refunds. The result
// is computed and returned synchronously.
func (s *CancellationService) CancelBooking(ctx context.Context, cmd CancelBookingCommand) (*CancellationResult, error) {
	intent, err := s.intents.FindByBookingID(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}

	decision := domain.DecideCancellation(intent.RideID, cmd.ActorRole, cmd.DepartureTime, time.Now())
	result := &CancellationResult{Decision: decision, Intent: intent}

	switch intent.Status {
	case domain.StatusAuthorized:
		if err := s.guardNoActiveCapture(ctx, intent.ID); err != nil {
			return nil, err
		}
		return s.cancelAuthorized(ctx, intent, result, cmd.Reason)

	case domain.StatusCaptured, domain.StatusPartiallyRefunded:
		return s.cancelCaptured(ctx, intent, result, cmd.Reason)

	case domain.StatusCanceled:
		// Already released; repeating the cancellation is a no-op success.
		return result, nil

	case domain.StatusCaptureQueued:
		return nil, application.NewConflictError(domain.NewCaptureInFlightError(intent.ID))

	default:
		return nil, application.NewInvalidStateError(
			fmt.Errorf("booking %s payment is %s", cmd.BookingID, intent.Status))
	}
}

// guardNoActiveCapture enforces the single-writer rule: a cancel may
// not proceed while a queue item for the intent is pending or being
// processed. The caller retries once the attempt resolves.
func (s *CancellationService) guardNoActiveCapture(ctx context.Context, intentID string) error {
	active, err := s.queue.FindActiveByIntent(ctx, intentID)
	if err != nil {
		return application.NewInternalError(err)
	}
	if active != nil {
		return application.NewConflictError(domain.NewCaptureInFlightError(intentID))
	}
	return nil
}

func (s *CancellationService) cancelAuthorized(ctx context.Context, intent *domain.PaymentIntent, result *CancellationResult, reason string) (*CancellationResult, error) {
	idempotencyKey := fmt.Sprintf("cancel-%s", intent.BookingID)

	if result.Decision.RefundPercentage == 100 {
		_, err := s.provider.Cancel(ctx, application.ProviderCancelRequest{
			ExternalRef: *intent.ExternalRef,
		}, idempotencyKey)
		if err != nil && !application.IsAlreadyInTargetState(err, application.ProviderCodeAlreadyCanceled) {
			return nil, s.mapProviderError(err)
		}

		if err := intent.Cancel(time.Now()); err != nil {
			return nil, application.NewInvalidStateError(err)
		}
		if err := s.intents.Update(ctx, intent); err != nil {
			return nil, s.mapUpdateError(err)
		}

		result.RefundedCents = intent.AmountTotal
		s.notify(ctx, application.EventCancellationProcessed, intent, intent.AmountTotal)
		s.logger.Info("authorization released",
			"payment_intent_id", intent.ID,
			"booking_id", intent.BookingID,
			"actor", result.Decision.ActorRole,
			"reason", reason,
		)
		return result, nil
	}

	// A cancellation fee is owed: capture it now, synchronously. The
	// uncaptured remainder of the hold is released by the provider.
	fee := result.Decision.FeeAmount(intent.AmountTotal)

	if err := intent.MarkCaptureQueued(); err != nil {
		return nil, application.NewInvalidStateError(err)
	}

	resp, err := s.provider.Capture(ctx, application.ProviderCaptureRequest{
		ExternalRef: *intent.ExternalRef,
		AmountCents: fee,
	}, idempotencyKey)
	if err != nil {
		if application.IsAlreadyInTargetState(err, application.ProviderCodeAlreadyCaptured) {
			resp = &application.ProviderCaptureResponse{CapturedAmount: fee, CapturedAt: time.Now()}
		} else {
			return nil, s.mapProviderError(err)
		}
	}

	if err := intent.Capture(resp.CapturedAmount, resp.CapturedAt); err != nil {
		return nil, application.NewInvalidStateError(err)
	}
	if err := s.intents.Update(ctx, intent); err != nil {
		return nil, s.mapUpdateError(err)
	}

	if _, err := s.earnings.PostCapture(ctx, intent, resp.CapturedAmount); err != nil {
		return nil, application.NewInternalError(err)
	}
	if intent.DiscountGrantID != nil {
		if err := s.referrals.OnCaptureSucceeded(ctx, *intent.DiscountGrantID); err != nil {
			return nil, application.NewInternalError(err)
		}
	}

	result.CapturedCents = resp.CapturedAmount
	result.RefundedCents = intent.AmountTotal - resp.CapturedAmount
	s.notify(ctx, application.EventPaymentCaptured, intent, resp.CapturedAmount)
	s.notify(ctx, application.EventCancellationProcessed, intent, result.RefundedCents)
	s.logger.Info("cancellation fee captured",
		"payment_intent_id", intent.ID,
		"booking_id", intent.BookingID,
		"fee", resp.CapturedAmount,
		"released", result.RefundedCents,
		"reason", reason,
	)
	return result, nil
}

func (s *CancellationService) cancelCaptured(ctx context.Context, intent *domain.PaymentIntent, result *CancellationResult, reason string) (*CancellationResult, error) {
	var refund int64
	switch result.Decision.RefundPercentage {
	case 100:
		refund = intent.RefundableAmount()
	case 50:
		refund = min(intent.CapturedAmount/2, intent.RefundableAmount())
	default:
		return result, nil
	}
	if refund == 0 {
		return result, nil
	}

	idempotencyKey := fmt.Sprintf("cancel-refund-%s", intent.BookingID)
	_, err := s.provider.Refund(ctx, application.ProviderRefundRequest{
		ExternalRef: *intent.ExternalRef,
		AmountCents: refund,
	}, idempotencyKey)
	if err != nil && !application.IsAlreadyInTargetState(err, application.ProviderCodeAlreadyRefunded) {
		return nil, s.mapProviderError(err)
	}

	if err := intent.Refund(refund); err != nil {
		return nil, application.NewPolicyViolationError(err)
	}
	if err := s.intents.Update(ctx, intent); err != nil {
		return nil, s.mapUpdateError(err)
	}
	if err := s.earnings.AdjustForRefund(ctx, intent); err != nil {
		return nil, application.NewInternalError(err)
	}

	result.RefundedCents = refund
	s.notify(ctx, application.EventPaymentRefunded, intent, refund)
	s.notify(ctx, application.EventCancellationProcessed, intent, refund)
	s.logger.Info("captured payment refunded on cancellation",
		"payment_intent_id", intent.ID,
		"booking_id", intent.BookingID,
		"refund", refund,
		"reason", reason,
	)
	return result, nil
}

func (s *CancellationService) mapProviderError(err error) error {
	if application.CategorizeError(err) == application.CategoryTransient {
		return application.NewProviderUnavailableError(err)
	}
	return application.NewProviderDeclinedError(err)
}

func (s *CancellationService) mapUpdateError(err error) error {
	if domain.IsErrorCode(err, domain.ErrCodeVersionConflict) {
		return application.NewConflictError(err)
	}
	return application.NewInternalError(err)
}

func (s *CancellationService) notify(ctx context.Context, kind string, intent *domain.PaymentIntent, amount int64) {
	err := s.notifier.Dispatch(ctx, application.Notification{
		Kind:            kind,
		PaymentIntentID: intent.ID,
		BookingID:       intent.BookingID,
		RideID:          intent.RideID,
		RiderID:         intent.RiderID,
		DriverID:        intent.DriverID,
		AmountCents:     amount,
		Currency:        intent.Currency,
		OccurredAt:      time.Now(),
	})
	if err != nil {
		// Notifications are best effort; money movement already happened.
		s.logger.Error("notification dispatch failed", "kind", kind, "payment_intent_id", intent.ID, "error", err)
	}
}
