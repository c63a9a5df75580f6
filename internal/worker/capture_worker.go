// Package worker runs the background capture loop draining the durable
// capture queue after ride completion.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rideloop/payments/internal/application"
	"github.com/rideloop/payments/internal/application/services"
	"github.com/rideloop/payments/internal/domain"
)

// CaptureWorker polls the capture queue and settles due items against
// the provider. Multiple instances may run concurrently: the PENDING to
// PROCESSING compare-and-swap on each item guarantees at most one
// capture attempt is in flight per item.
type CaptureWorker struct {
	queue     application.CaptureQueueRepository
	intents   application.IntentRepository
	provider  application.ProviderGateway
	earnings  *services.EarningsPoster
	referrals *services.ReferralDiscountResolver
	notifier  application.NotificationDispatcher

	interval     time.Duration
	batchSize    int
	backoffBase  time.Duration
	backoffMax   time.Duration
	leaseTimeout time.Duration

	logger *slog.Logger
}

func NewCaptureWorker(
	queue application.CaptureQueueRepository,
	intents application.IntentRepository,
	provider application.ProviderGateway,
	earnings *services.EarningsPoster,
	referrals *services.ReferralDiscountResolver,
	notifier application.NotificationDispatcher,
	interval time.Duration,
	batchSize int,
	backoffBase time.Duration,
	backoffMax time.Duration,
	leaseTimeout time.Duration,
	logger *slog.Logger,
) *CaptureWorker {
	return &CaptureWorker{
		queue:        queue,
		intents:      intents,
		provider:     provider,
		earnings:     earnings,
		referrals:    referrals,
		notifier:     notifier,
		interval:     interval,
		batchSize:    batchSize,
		backoffBase:  backoffBase,
		backoffMax:   backoffMax,
		leaseTimeout: leaseTimeout,
		logger:       logger,
	}
}

func (w *CaptureWorker) Start(ctx context.Context) {
	w.logger.Info("capture worker started", "interval", w.interval, "batch_size", w.batchSize)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("capture worker stopping")
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("capture tick failed", "error", err)
			}
		}
	}
}

// RunOnce drains one batch of due items. Exposed for tests and for
// running the worker from a one-shot command.
func (w *CaptureWorker) RunOnce(ctx context.Context) error {
	now := time.Now()

	// A claim is a lease, not ownership: a worker that died mid-capture
	// leaves its item in PROCESSING, and nothing else may touch it until
	// the lease lapses. Sweeping expired claims back to PENDING is what
	// keeps a crash from losing the capture.
	reclaimed, err := w.queue.ReclaimExpired(ctx, now.Add(-w.leaseTimeout))
	if err != nil {
		return fmt.Errorf("reclaim expired claims: %w", err)
	}
	if reclaimed > 0 {
		w.logger.Warn("reclaimed expired capture claims", "count", reclaimed)
	}

	due, err := w.queue.FindDue(ctx, now, w.batchSize)
	if err != nil {
		return fmt.Errorf("find due capture items: %w", err)
	}

	for _, item := range due {
		if err := w.processItem(ctx, item); err != nil {
			w.logger.Error("capture item processing failed",
				"item_id", item.ID,
				"payment_intent_id", item.PaymentIntentID,
				"error", err,
			)
		}
	}
	return nil
}

func (w *CaptureWorker) processItem(ctx context.Context, item *domain.CaptureQueueItem) error {
	claimed, err := w.queue.Claim(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("claim item: %w", err)
	}
	if !claimed {
		// Another worker instance won the item.
		return nil
	}
	item.Status = domain.CaptureProcessing

	intent, err := w.intents.FindByID(ctx, item.PaymentIntentID)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeIntentNotFound) {
			return w.deadLetter(ctx, item, nil, "payment intent no longer exists")
		}
		return w.handleFailure(ctx, item, nil, err)
	}

	switch intent.Status {
	case domain.StatusCaptured:
		// A previous attempt crashed between capture and completion;
		// finish the bookkeeping without touching the provider.
		return w.finalize(ctx, item, intent, intent.CapturedAmount)
	case domain.StatusCanceled, domain.StatusFailed, domain.StatusRefunded, domain.StatusPartiallyRefunded:
		return w.deadLetter(ctx, item, nil, fmt.Sprintf("payment intent is %s", intent.Status))
	case domain.StatusAuthorized:
		// The intent was backed out of the pipeline on the previous
		// transient failure; bring it back before retrying.
		if err := intent.MarkCaptureQueued(); err != nil {
			return w.handleFailure(ctx, item, nil, err)
		}
		if err := w.intents.Update(ctx, intent); err != nil {
			return w.handleFailure(ctx, item, nil, err)
		}
	case domain.StatusCaptureQueued:
	default:
		return w.deadLetter(ctx, item, intent, fmt.Sprintf("payment intent is %s", intent.Status))
	}

	// Ask the provider where the charge stands before charging: a prior
	// attempt may have landed despite failing locally, or the hold may
	// have been voided or expired since the item was enqueued.
	done, err := w.reconcile(ctx, item, intent)
	if done || err != nil {
		return err
	}

	resp, err := w.provider.Capture(ctx, application.ProviderCaptureRequest{
		ExternalRef: *intent.ExternalRef,
		AmountCents: item.AmountCents,
	}, fmt.Sprintf("capture-%s", item.ID))
	if err != nil {
		if application.IsAlreadyInTargetState(err, application.ProviderCodeAlreadyCaptured) {
			return w.finalize(ctx, item, intent, item.AmountCents)
		}
		if isAmbiguousOutcome(err) {
			done, recErr := w.reconcile(ctx, item, intent)
			if done || recErr != nil {
				return recErr
			}
			return w.handleFailure(ctx, item, intent, err)
		}
		return w.handleFailure(ctx, item, intent, err)
	}

	return w.finalize(ctx, item, intent, resp.CapturedAmount)
}

// reconcile resolves an uncertain charge against provider-side truth.
// It reports done=true when the item reached a terminal state here.
func (w *CaptureWorker) reconcile(ctx context.Context, item *domain.CaptureQueueItem, intent *domain.PaymentIntent) (bool, error) {
	charge, err := w.provider.GetCharge(ctx, *intent.ExternalRef)
	if err != nil {
		// Can't tell either way; the normal retry path applies.
		w.logger.Warn("charge lookup failed during reconcile",
			"item_id", item.ID,
			"payment_intent_id", intent.ID,
			"error", err,
		)
		return false, nil
	}

	switch charge.Status {
	case application.ChargeCaptured:
		// The earlier attempt did land.
		return true, w.finalize(ctx, item, intent, charge.CapturedAmount)
	case application.ChargeCanceled, application.ChargeExpired, application.ChargeRefunded:
		return true, w.deadLetter(ctx, item, intent, fmt.Sprintf("charge is %s at the provider", charge.Status))
	default:
		// Still authorized: safe to attempt the capture.
		return false, nil
	}
}

// finalize records a successful capture and its side effects. Each step
// is idempotent, so a crash partway through is repaired by the next
// claim of the same item.
func (w *CaptureWorker) finalize(ctx context.Context, item *domain.CaptureQueueItem, intent *domain.PaymentIntent, amount int64) error {
	if intent.Status != domain.StatusCaptured {
		if err := intent.Capture(amount, time.Now()); err != nil {
			return w.handleFailure(ctx, item, intent, err)
		}
		if err := w.intents.Update(ctx, intent); err != nil {
			return w.handleFailure(ctx, item, intent, err)
		}
	}

	if _, err := w.earnings.PostCapture(ctx, intent, intent.CapturedAmount); err != nil {
		return w.handleFailure(ctx, item, intent, err)
	}
	if intent.DiscountGrantID != nil {
		if err := w.referrals.OnCaptureSucceeded(ctx, *intent.DiscountGrantID); err != nil {
			return w.handleFailure(ctx, item, intent, err)
		}
	}

	item.Complete()
	if err := w.queue.Update(ctx, item); err != nil {
		return fmt.Errorf("complete item: %w", err)
	}

	if err := w.notifier.Dispatch(ctx, application.Notification{
		Kind:            application.EventPaymentCaptured,
		PaymentIntentID: intent.ID,
		BookingID:       intent.BookingID,
		RideID:          intent.RideID,
		RiderID:         intent.RiderID,
		DriverID:        intent.DriverID,
		AmountCents:     intent.CapturedAmount,
		Currency:        intent.Currency,
		OccurredAt:      time.Now(),
	}); err != nil {
		w.logger.Error("notification dispatch failed",
			"kind", application.EventPaymentCaptured,
			"payment_intent_id", intent.ID,
			"error", err,
		)
	}

	w.logger.Info("capture completed",
		"item_id", item.ID,
		"payment_intent_id", intent.ID,
		"booking_id", intent.BookingID,
		"amount", intent.CapturedAmount,
		"attempts", item.Attempts,
	)
	return nil
}

// handleFailure routes a failed attempt: terminal errors dead-letter
// immediately, transient ones back off and retry until the attempt
// ceiling dead-letters the item.
func (w *CaptureWorker) handleFailure(ctx context.Context, item *domain.CaptureQueueItem, intent *domain.PaymentIntent, cause error) error {
	if application.CategorizeError(cause) != application.CategoryTransient {
		return w.deadLetterAttempt(ctx, item, intent, cause.Error())
	}

	if item.ExhaustedAfterNextFailure() {
		return w.deadLetterAttempt(ctx, item, intent, fmt.Sprintf("retries exhausted: %v", cause))
	}

	backoff := w.backoffFor(item.Attempts)
	item.ScheduleRetry(backoff, cause.Error())
	if err := w.queue.Update(ctx, item); err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}

	// Back the intent out of the pipeline while the item waits; the
	// cancellation window reopens until the next claim.
	if intent != nil && intent.Status == domain.StatusCaptureQueued {
		if err := intent.ReturnToAuthorized(cause.Error()); err == nil {
			if err := w.intents.Update(ctx, intent); err != nil {
				w.logger.Error("failed to return intent to authorized",
					"payment_intent_id", intent.ID,
					"error", err,
				)
			}
		}
	}

	w.logger.Warn("capture attempt failed, retry scheduled",
		"item_id", item.ID,
		"payment_intent_id", item.PaymentIntentID,
		"attempts", item.Attempts,
		"backoff", backoff,
		"error", cause,
	)
	return nil
}

// deadLetterAttempt dead-letters after a failed provider call; the
// attempt counts toward the item's recorded total.
func (w *CaptureWorker) deadLetterAttempt(ctx context.Context, item *domain.CaptureQueueItem, intent *domain.PaymentIntent, reason string) error {
	item.FailAttempt(reason)
	return w.persistDeadLetter(ctx, item, intent, reason)
}

// deadLetter terminally fails the item without consuming an attempt
// (the intent was gone or the provider-side hold no longer capturable)
// and, when the intent is still in the pipeline, fails the intent too.
func (w *CaptureWorker) deadLetter(ctx context.Context, item *domain.CaptureQueueItem, intent *domain.PaymentIntent, reason string) error {
	item.Fail(reason)
	return w.persistDeadLetter(ctx, item, intent, reason)
}

func (w *CaptureWorker) persistDeadLetter(ctx context.Context, item *domain.CaptureQueueItem, intent *domain.PaymentIntent, reason string) error {
	if err := w.queue.Update(ctx, item); err != nil {
		return fmt.Errorf("dead-letter item: %w", err)
	}

	if intent != nil && intent.Status == domain.StatusCaptureQueued {
		if err := intent.FailCapture(reason); err == nil {
			if err := w.intents.Update(ctx, intent); err != nil {
				w.logger.Error("failed to fail intent",
					"payment_intent_id", intent.ID,
					"error", err,
				)
			}
		}
	}

	w.logger.Error("capture item dead-lettered",
		"item_id", item.ID,
		"payment_intent_id", item.PaymentIntentID,
		"attempts", item.Attempts,
		"reason", reason,
	)
	return nil
}

// backoffFor doubles the delay per attempt, capped at backoffMax.
func (w *CaptureWorker) backoffFor(attempts int) time.Duration {
	backoff := w.backoffBase << attempts
	if backoff > w.backoffMax || backoff <= 0 {
		backoff = w.backoffMax
	}
	return backoff
}

// isAmbiguousOutcome reports whether the provider call may have taken
// effect despite failing locally.
func isAmbiguousOutcome(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if provErr, ok := application.IsProviderError(err); ok {
		return provErr.StatusCode >= 500
	}
	return false
}
