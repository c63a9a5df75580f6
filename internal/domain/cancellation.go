package domain

import (
	"time"
)

// ActorRole identifies who initiated a cancellation.
type ActorRole string

const (
	ActorDriver    ActorRole = "driver"
	ActorPassenger ActorRole = "passenger"
)

// CancellationDecision is the monetary outcome of a cancellation:
// what share of the total the rider gets back and what share is kept
// as a fee (captured and paid through to the driver).
type CancellationDecision struct {
	RideID               string
	ActorRole            ActorRole
	HoursBeforeDeparture float64
	RefundPercentage     int
	FeePercentage        int
}

// Refund tiers for passenger-initiated cancellations, in hours before
// departure. A departure already in the past lands below the lowest
// tier and yields no refund, which is how no-shows are charged.
const (
	fullRefundHours = 24
	halfRefundHours = 12
)

// DecideCancellation maps actor role and time to departure to a
// refund/fee split. Driver-initiated cancellations always refund the
// passenger in full.
func DecideCancellation(rideID string, actor ActorRole, departureTime, now time.Time) CancellationDecision {
	hoursBefore := departureTime.Sub(now).Hours()

	decision := CancellationDecision{
		RideID:               rideID,
		ActorRole:            actor,
		HoursBeforeDeparture: hoursBefore,
	}

	switch {
	case actor == ActorDriver:
		decision.RefundPercentage = 100
	case hoursBefore >= fullRefundHours:
		decision.RefundPercentage = 100
	case hoursBefore >= halfRefundHours:
		decision.RefundPercentage = 50
	default:
		decision.RefundPercentage = 0
	}
	decision.FeePercentage = 100 - decision.RefundPercentage

	return decision
}

// RefundAmount is the share of total returned to the rider.
func (d CancellationDecision) RefundAmount(total int64) int64 {
	return total * int64(d.RefundPercentage) / 100
}

// FeeAmount is the share of total kept as a cancellation fee.
func (d CancellationDecision) FeeAmount(total int64) int64 {
	return total - d.RefundAmount(total)
}
