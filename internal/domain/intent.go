// Package domain holds the payment ledger entities and their state machines.
package domain

import (
	"slices"
	"time"
)

// IntentStatus represents the current state of a payment intent in its lifecycle.
type IntentStatus string

const (
	StatusPendingAuthorization IntentStatus = "PENDING_AUTHORIZATION"
	StatusAuthorized           IntentStatus = "AUTHORIZED"
	StatusCaptureQueued        IntentStatus = "CAPTURE_QUEUED"
	StatusCaptured             IntentStatus = "CAPTURED"
	StatusCanceled             IntentStatus = "CANCELED"
	StatusRefunded             IntentStatus = "REFUNDED"
	StatusPartiallyRefunded    IntentStatus = "PARTIALLY_REFUNDED"
	StatusFailed               IntentStatus = "FAILED"
)

// CaptureMethodManual is the only capture mode this ledger supports:
// authorization and capture are distinct, explicitly triggered steps.
const CaptureMethodManual = "manual"

// PaymentIntent is the authoritative ledger record for one booking's payment.
// All monetary fields are integer minor currency units.
type PaymentIntent struct {
	ID          string
	ExternalRef *string
	RideID      string
	BookingID   string
	RiderID     string
	DriverID    string

	AmountSubtotal int64
	DiscountAmount int64
	AmountTotal    int64
	Currency       string
	CaptureMethod  string

	Status IntentStatus

	// CapturedAmount may be below AmountTotal for policy-driven partial
	// captures; RefundedAmount accumulates across partial refunds.
	CapturedAmount  int64
	RefundedAmount  int64
	DiscountGrantID *string

	CreatedAt    time.Time
	AuthorizedAt *time.Time
	CapturedAt   *time.Time
	CanceledAt   *time.Time
	LastError    *string

	// Version backs the optimistic single-writer check on updates.
	Version int
}

func NewPaymentIntent(id, rideID, bookingID, riderID, driverID string, subtotal, discount int64, currency string) (*PaymentIntent, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("payment intent ID")
	}
	if rideID == "" {
		return nil, NewMissingRequiredFieldError("ride ID")
	}
	if bookingID == "" {
		return nil, NewMissingRequiredFieldError("booking ID")
	}
	if riderID == "" {
		return nil, NewMissingRequiredFieldError("rider ID")
	}
	if driverID == "" {
		return nil, NewMissingRequiredFieldError("driver ID")
	}
	if currency == "" {
		return nil, NewMissingRequiredFieldError("currency")
	}
	if subtotal <= 0 {
		return nil, NewInvalidAmountError(subtotal)
	}
	if discount < 0 || discount > subtotal {
		return nil, NewInvalidAmountError(discount)
	}

	return &PaymentIntent{
		ID:             id,
		RideID:         rideID,
		BookingID:      bookingID,
		RiderID:        riderID,
		DriverID:       driverID,
		AmountSubtotal: subtotal,
		DiscountAmount: discount,
		AmountTotal:    subtotal - discount,
		Currency:       currency,
		CaptureMethod:  CaptureMethodManual,
		Status:         StatusPendingAuthorization,
		CreatedAt:      time.Now(),
		Version:        1,
	}, nil
}

func (p *PaymentIntent) transition(target IntentStatus) error {
	if err := p.canTransitionTo(target); err != nil {
		return err
	}
	p.Status = target
	return nil
}

// canTransitionTo restricts the intent to the legal lifecycle edges.
func (p *PaymentIntent) canTransitionTo(target IntentStatus) error {
	switch p.Status {
	case StatusPendingAuthorization:
		return p.allow(target, StatusAuthorized, StatusFailed)
	case StatusAuthorized:
		return p.allow(target, StatusCaptureQueued, StatusCanceled)
	case StatusCaptureQueued:
		return p.allow(target, StatusCaptured, StatusAuthorized, StatusFailed)
	case StatusCaptured:
		return p.allow(target, StatusRefunded, StatusPartiallyRefunded)
	case StatusPartiallyRefunded:
		return p.allow(target, StatusRefunded, StatusPartiallyRefunded)
	}
	return NewInvalidTransitionError(p.Status, target)
}

func (p *PaymentIntent) allow(target IntentStatus, allowed ...IntentStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(p.Status, target)
}

// Authorize records a successful provider hold.
func (p *PaymentIntent) Authorize(externalRef string, authorizedAt time.Time) error {
	if externalRef == "" {
		return NewMissingRequiredFieldError("external reference")
	}
	if err := p.transition(StatusAuthorized); err != nil {
		return err
	}
	p.ExternalRef = &externalRef
	p.AuthorizedAt = &authorizedAt
	p.LastError = nil
	return nil
}

// Decline marks a provider decline during authorization. Declines are terminal.
func (p *PaymentIntent) Decline(reason string) error {
	if err := p.transition(StatusFailed); err != nil {
		return err
	}
	p.LastError = &reason
	return nil
}

// MarkCaptureQueued moves an authorized intent into the capture pipeline.
func (p *PaymentIntent) MarkCaptureQueued() error {
	return p.transition(StatusCaptureQueued)
}

// Capture records a successful provider capture of amount cents.
// amount may be below AmountTotal for policy-driven partial captures;
// the remainder of the hold is released provider-side.
func (p *PaymentIntent) Capture(amount int64, capturedAt time.Time) error {
	if amount <= 0 || amount > p.AmountTotal {
		return NewInvalidAmountError(amount)
	}
	if err := p.transition(StatusCaptured); err != nil {
		return err
	}
	p.CapturedAmount = amount
	p.CapturedAt = &capturedAt
	p.LastError = nil
	return nil
}

// ReturnToAuthorized backs a queued intent out of the capture pipeline
// after a transient failure. The queue item keeps the attempt count.
func (p *PaymentIntent) ReturnToAuthorized(reason string) error {
	if err := p.transition(StatusAuthorized); err != nil {
		return err
	}
	p.LastError = &reason
	return nil
}

// FailCapture terminally fails a queued intent once retries are
// exhausted or the provider reports an unrecoverable state.
func (p *PaymentIntent) FailCapture(reason string) error {
	if err := p.transition(StatusFailed); err != nil {
		return err
	}
	p.LastError = &reason
	return nil
}

// Cancel releases the authorization hold. Canceling an already-canceled
// intent is a no-op success.
func (p *PaymentIntent) Cancel(canceledAt time.Time) error {
	if p.Status == StatusCanceled {
		return nil
	}
	if err := p.transition(StatusCanceled); err != nil {
		return err
	}
	p.CanceledAt = &canceledAt
	return nil
}

// Refund records a provider refund of amount cents against the captured
// balance. Cumulative refunds may never exceed the captured amount.
func (p *PaymentIntent) Refund(amount int64) error {
	if amount <= 0 {
		return NewInvalidAmountError(amount)
	}
	if amount > p.RefundableAmount() {
		return NewRefundExceedsBalanceError(amount, p.RefundableAmount())
	}
	target := StatusPartiallyRefunded
	if p.RefundedAmount+amount == p.CapturedAmount {
		target = StatusRefunded
	}
	if err := p.transition(target); err != nil {
		return err
	}
	p.RefundedAmount += amount
	return nil
}

// RefundableAmount is the captured balance still held by the platform.
func (p *PaymentIntent) RefundableAmount() int64 {
	return p.CapturedAmount - p.RefundedAmount
}

func (p *PaymentIntent) IsTerminal() bool {
	switch p.Status {
	case StatusCanceled, StatusRefunded, StatusFailed:
		return true
	default:
		return false
	}
}

// ReconstituteIntent - special constructor for loading from the database.
func ReconstituteIntent(
	id string, externalRef *string,
	rideID, bookingID, riderID, driverID string,
	subtotal, discount, total int64, currency string,
	status IntentStatus,
	capturedAmount, refundedAmount int64,
	discountGrantID *string,
	createdAt time.Time,
	authorizedAt, capturedAt, canceledAt *time.Time,
	lastError *string,
	version int,
) *PaymentIntent {
	return &PaymentIntent{
		ID:              id,
		ExternalRef:     externalRef,
		RideID:          rideID,
		BookingID:       bookingID,
		RiderID:         riderID,
		DriverID:        driverID,
		AmountSubtotal:  subtotal,
		DiscountAmount:  discount,
		AmountTotal:     total,
		Currency:        currency,
		CaptureMethod:   CaptureMethodManual,
		Status:          status,
		CapturedAmount:  capturedAmount,
		RefundedAmount:  refundedAmount,
		DiscountGrantID: discountGrantID,
		CreatedAt:       createdAt,
		AuthorizedAt:    authorizedAt,
		CapturedAt:      capturedAt,
		CanceledAt:      canceledAt,
		LastError:       lastError,
		Version:         version,
	}
}
