package domain

import (
	"time"
)

// EarningsStatus tracks whether a record has been settled to the driver.
type EarningsStatus string

const (
	EarningsPending EarningsStatus = "PENDING"
	EarningsPaid    EarningsStatus = "PAID"
)

// PlatformFeePercent is the share of gross ride revenue retained by the
// platform before paying the driver.
const PlatformFeePercent = 15

// EarningsRecord is the driver-earnings artifact derived from a
// successful capture. Exactly one record exists per booking; the payout
// batcher groups PENDING records into settlement batches downstream.
type EarningsRecord struct {
	ID                 string
	DriverID           string
	RideID             string
	BookingID          string
	PaymentIntentID    string
	GrossAmount        int64
	PlatformFeePercent int
	PlatformFee        int64
	NetAmount          int64
	Status             EarningsStatus
	CreatedAt          time.Time
	PayoutBatchID      *string
}

func NewEarningsRecord(id, driverID, rideID, bookingID, paymentIntentID string, grossAmount int64) (*EarningsRecord, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("earnings record ID")
	}
	if driverID == "" {
		return nil, NewMissingRequiredFieldError("driver ID")
	}
	if bookingID == "" {
		return nil, NewMissingRequiredFieldError("booking ID")
	}
	if grossAmount <= 0 {
		return nil, NewInvalidAmountError(grossAmount)
	}

	r := &EarningsRecord{
		ID:                 id,
		DriverID:           driverID,
		RideID:             rideID,
		BookingID:          bookingID,
		PaymentIntentID:    paymentIntentID,
		GrossAmount:        grossAmount,
		PlatformFeePercent: PlatformFeePercent,
		Status:             EarningsPending,
		CreatedAt:          time.Now(),
	}
	r.recompute()
	return r, nil
}

// AlignToBalance sets the posted gross to the ledger's remaining
// captured balance after refunds and recomputes fee and net. The target
// comes from the ledger rather than a refund delta, so repeating the
// call converges on the same record instead of deducting twice.
func (r *EarningsRecord) AlignToBalance(remaining int64) error {
	if remaining < 0 || remaining > r.GrossAmount {
		return NewInvalidAmountError(remaining)
	}
	r.GrossAmount = remaining
	r.recompute()
	return nil
}

// recompute derives fee and net: fee = round(gross × 15%), half up.
func (r *EarningsRecord) recompute() {
	r.PlatformFee = (r.GrossAmount*int64(r.PlatformFeePercent) + 50) / 100
	r.NetAmount = r.GrossAmount - r.PlatformFee
}
