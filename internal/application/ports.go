// Package application defines the ports and orchestration errors shared
// by the payment services and the capture worker.
package application

import (
	"context"
	"time"

	"github.com/rideloop/payments/internal/domain"
)

// ProviderGateway is the port for the external payment provider.
// Idempotency keys are passed through to the provider's own
// idempotency mechanism on every mutating call.
type ProviderGateway interface {
	Authorize(ctx context.Context, req ProviderAuthorizationRequest, idempotencyKey string) (*ProviderAuthorizationResponse, error)
	Capture(ctx context.Context, req ProviderCaptureRequest, idempotencyKey string) (*ProviderCaptureResponse, error)
	Cancel(ctx context.Context, req ProviderCancelRequest, idempotencyKey string) (*ProviderCancelResponse, error)
	Refund(ctx context.Context, req ProviderRefundRequest, idempotencyKey string) (*ProviderRefundResponse, error)
	// GetCharge returns provider-side truth for a charge. Callers use it
	// to reconcile after ambiguous outcomes (timeouts) before deciding
	// success or failure.
	GetCharge(ctx context.Context, externalRef string) (*ProviderChargeStatus, error)
}

type ProviderAuthorizationRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	CustomerRef string `json:"customer_ref"`
}

type ProviderAuthorizationResponse struct {
	ExternalRef string    `json:"external_ref"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type ProviderCaptureRequest struct {
	ExternalRef string `json:"external_ref"`
	AmountCents int64  `json:"amount_cents"`
}

type ProviderCaptureResponse struct {
	ExternalRef    string    `json:"external_ref"`
	Status         string    `json:"status"`
	CapturedAmount int64     `json:"captured_amount"`
	CapturedAt     time.Time `json:"captured_at"`
}

type ProviderCancelRequest struct {
	ExternalRef string `json:"external_ref"`
}

type ProviderCancelResponse struct {
	ExternalRef string    `json:"external_ref"`
	Status      string    `json:"status"`
	CanceledAt  time.Time `json:"canceled_at"`
}

type ProviderRefundRequest struct {
	ExternalRef string `json:"external_ref"`
	AmountCents int64  `json:"amount_cents"`
}

type ProviderRefundResponse struct {
	RefundRef  string    `json:"refund_ref"`
	Status     string    `json:"status"`
	RefundedAt time.Time `json:"refunded_at"`
}

// ProviderChargeStatus is the provider's authoritative view of a charge.
type ProviderChargeStatus struct {
	ExternalRef    string    `json:"external_ref"`
	Status         string    `json:"status"`
	CapturedAmount int64     `json:"captured_amount"`
	CapturedAt     time.Time `json:"captured_at"`
}

// Provider-side charge states as reported by GetCharge.
const (
	ChargeAuthorized = "authorized"
	ChargeCaptured   = "captured"
	ChargeCanceled   = "canceled"
	ChargeExpired    = "expired"
	ChargeRefunded   = "refunded"
)

// IntentRepository is the persistence port for the payment ledger.
// Update performs an optimistic version check and returns a
// VERSION_CONFLICT domain error on concurrent modification.
type IntentRepository interface {
	Create(ctx context.Context, intent *domain.PaymentIntent) error
	FindByID(ctx context.Context, id string) (*domain.PaymentIntent, error)
	FindByBookingID(ctx context.Context, bookingID string) (*domain.PaymentIntent, error)
	Update(ctx context.Context, intent *domain.PaymentIntent) error
}

// CaptureQueueRepository is the persistence port for the durable
// capture queue.
type CaptureQueueRepository interface {
	// Enqueue inserts a new item; a DUPLICATE_QUEUE_ITEM domain error is
	// returned while a non-terminal item exists for the same intent.
	Enqueue(ctx context.Context, item *domain.CaptureQueueItem) error
	// FindDue returns pending items eligible at now, oldest first.
	FindDue(ctx context.Context, now time.Time, limit int) ([]*domain.CaptureQueueItem, error)
	// Claim compare-and-swaps an item from PENDING to PROCESSING.
	// Exactly one of several racing claimers observes true.
	Claim(ctx context.Context, itemID string) (bool, error)
	Update(ctx context.Context, item *domain.CaptureQueueItem) error
	FindActiveByIntent(ctx context.Context, paymentIntentID string) (*domain.CaptureQueueItem, error)
	// ReclaimExpired returns PROCESSING items last claimed before cutoff
	// to PENDING, recovering claims held by a crashed worker.
	ReclaimExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// EarningsRepository persists driver earnings records. UpsertByBooking
// keys on booking ID so reposting after a worker crash is a no-op.
type EarningsRepository interface {
	UpsertByBooking(ctx context.Context, record *domain.EarningsRecord) error
	FindByBookingID(ctx context.Context, bookingID string) (*domain.EarningsRecord, error)
	Update(ctx context.Context, record *domain.EarningsRecord) error
	FindPending(ctx context.Context, limit int) ([]*domain.EarningsRecord, error)
}

// ReferralRepository persists referral discount grants.
type ReferralRepository interface {
	FindByID(ctx context.Context, id string) (*domain.ReferralDiscountGrant, error)
	// FindConsumableByBeneficiary returns the rider's best pending grant:
	// their own referred-discount first, else an unlocked referrer reward.
	FindConsumableByBeneficiary(ctx context.Context, beneficiaryID string) (*domain.ReferralDiscountGrant, error)
	// FindByReferralUse returns the grant of the given role within one
	// referral use, for unlocking the referrer's reward.
	FindByReferralUse(ctx context.Context, referralUseID string, role domain.GrantRole) (*domain.ReferralDiscountGrant, error)
	Update(ctx context.Context, grant *domain.ReferralDiscountGrant) error
}

// Notification event kinds emitted by the core subsystem. Rendering and
// delivery belong to the notification collaborator.
const (
	EventPaymentCaptured       = "payment_captured"
	EventPaymentRefunded       = "payment_refunded"
	EventCancellationProcessed = "cancellation_processed"
)

type Notification struct {
	Kind            string    `json:"kind"`
	PaymentIntentID string    `json:"payment_intent_id"`
	BookingID       string    `json:"booking_id"`
	RideID          string    `json:"ride_id"`
	RiderID         string    `json:"rider_id"`
	DriverID        string    `json:"driver_id"`
	AmountCents     int64     `json:"amount_cents"`
	Currency        string    `json:"currency"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// NotificationDispatcher is the port to the notification collaborator.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}
