package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/rideloop/payments/internal/application"
	"github.com/rideloop/payments/internal/domain"
)

// CompletionService reacts to ride-completed events by enqueuing one
// capture work item per booking. Captures themselves run asynchronously
// in the capture worker.
type CompletionService struct {
	intents     application.IntentRepository
	queue       application.CaptureQueueRepository
	maxAttempts int
	logger      *slog.Logger
}

func NewCompletionService(
	intents application.IntentRepository,
	queue application.CaptureQueueRepository,
	maxAttempts int,
	logger *slog.Logger,
) *CompletionService {
	return &CompletionService{
		intents:     intents,
		queue:       queue,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// HandleRideCompleted enqueues captures for every booking on the ride.
// The event may be redelivered; the unique-active-item constraint makes
// re-enqueueing a no-op, and bookings whose intent is past AUTHORIZED
// are skipped.
func (s *CompletionService) HandleRideCompleted(ctx context.Context, evt RideCompletedEvent) error {
	for _, bookingID := range evt.BookingIDs {
		if err := s.enqueueBooking(ctx, bookingID); err != nil {
			s.logger.Error("capture enqueue failed",
				"ride_id", evt.RideID,
				"booking_id", bookingID,
				"error", err,
			)
			return err
		}
	}
	return nil
}

func (s *CompletionService) enqueueBooking(ctx context.Context, bookingID string) error {
	intent, err := s.intents.FindByBookingID(ctx, bookingID)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeIntentNotFound) {
			s.logger.Warn("no payment intent for completed booking", "booking_id", bookingID)
			return nil
		}
		return err
	}

	if intent.Status != domain.StatusAuthorized {
		s.logger.Info("skipping enqueue, intent not authorized",
			"payment_intent_id", intent.ID,
			"booking_id", bookingID,
			"status", intent.Status,
		)
		return nil
	}

	item, err := domain.NewCaptureQueueItem(uuid.New().String(), intent.ID, intent.AmountTotal, s.maxAttempts)
	if err != nil {
		return err
	}

	if err := s.queue.Enqueue(ctx, item); err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeDuplicateQueueItem) {
			// Redelivered event; the earlier item is still in flight.
			return nil
		}
		return err
	}

	if err := intent.MarkCaptureQueued(); err != nil {
		return err
	}
	if err := s.intents.Update(ctx, intent); err != nil {
		return err
	}

	s.logger.Info("capture enqueued",
		"payment_intent_id", intent.ID,
		"booking_id", bookingID,
		"amount", item.AmountCents,
	)
	return nil
}
