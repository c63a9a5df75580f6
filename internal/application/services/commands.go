// Package services orchestrates the payment ledger operations: booking
// authorization, ride-completion enqueue, cancellation, refunds,
// earnings posting and referral discounts.
package services

import (
	"time"

	"github.com/rideloop/payments/internal/domain"
)

// AuthorizeCommand opens a payment intent for a booking and places the
// provider hold.
type AuthorizeCommand struct {
	RideID        string
	BookingID     string
	RiderID       string
	DriverID      string
	SubtotalCents int64
	Currency      string
	CustomerRef   string
}

// RideCompletedEvent arrives from the ride lifecycle collaborator when
// a ride ends. One capture item is enqueued per booking.
type RideCompletedEvent struct {
	RideID     string   `json:"ride_id"`
	BookingIDs []string `json:"booking_ids"`
}

// CancelBookingCommand cancels a booking under the refund policy.
type CancelBookingCommand struct {
	BookingID     string
	ActorRole     domain.ActorRole
	DepartureTime time.Time
	Reason        string
}

// RefundCommand refunds part or all of a captured payment.
type RefundCommand struct {
	PaymentIntentID string
	AmountCents     int64
	Reason          string
}
