package postgres

import (
	"time"
)

type IntentModel struct {
	ID              string
	ExternalRef     *string
	RideID          string
	BookingID       string
	RiderID         string
	DriverID        string
	AmountSubtotal  int64
	DiscountAmount  int64
	AmountTotal     int64
	Currency        string
	Status          string
	CapturedAmount  int64
	RefundedAmount  int64
	DiscountGrantID *string
	CreatedAt       time.Time
	AuthorizedAt    *time.Time
	CapturedAt      *time.Time
	CanceledAt      *time.Time
	LastError       *string
	Version         int
}

// CaptureItemModel rows carry a partial unique index on
// payment_intent_id WHERE status IN ('PENDING', 'PROCESSING'), which is
// what makes Enqueue race-safe against redelivered events.
type CaptureItemModel struct {
	ID              string
	PaymentIntentID string
	AmountCents     int64
	Attempts        int
	MaxAttempts     int
	Status          string
	NextAttemptAt   *time.Time
	LastAttemptAt   *time.Time
	ErrorMessage    *string
	CreatedAt       time.Time
}

type EarningsModel struct {
	ID                 string
	DriverID           string
	RideID             string
	BookingID          string
	PaymentIntentID    string
	GrossAmount        int64
	PlatformFeePercent int
	PlatformFee        int64
	NetAmount          int64
	Status             string
	CreatedAt          time.Time
	PayoutBatchID      *string
}

type GrantModel struct {
	ID            string
	ReferralUseID string
	BeneficiaryID string
	Role          string
	Percent       int
	Status        string
	CreatedAt     time.Time
	ConsumedAt    *time.Time
	UnlockedAt    *time.Time
}
