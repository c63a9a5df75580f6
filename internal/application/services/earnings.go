package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/rideloop/payments/internal/application"
	"github.com/rideloop/payments/internal/domain"
)

// EarningsPoster derives driver earnings from successful captures.
// Records are upserted by booking ID, so reposting after a worker crash
// or a duplicate capture confirmation cannot double-pay a driver.
type EarningsPoster struct {
	earnings application.EarningsRepository
	logger   *slog.Logger
}

func NewEarningsPoster(earnings application.EarningsRepository, logger *slog.Logger) *EarningsPoster {
	return &EarningsPoster{
		earnings: earnings,
		logger:   logger,
	}
}

// PostCapture records the driver's earning for a captured amount. The
// captured amount is the gross; the platform fee is retained from it.
func (p *EarningsPoster) PostCapture(ctx context.Context, intent *domain.PaymentIntent, grossAmount int64) (*domain.EarningsRecord, error) {
	record, err := domain.NewEarningsRecord(
		uuid.New().String(),
		intent.DriverID,
		intent.RideID,
		intent.BookingID,
		intent.ID,
		grossAmount,
	)
	if err != nil {
		return nil, err
	}

	if err := p.earnings.UpsertByBooking(ctx, record); err != nil {
		return nil, err
	}

	p.logger.Info("earnings posted",
		"booking_id", record.BookingID,
		"driver_id", record.DriverID,
		"gross", record.GrossAmount,
		"platform_fee", record.PlatformFee,
		"net", record.NetAmount,
	)
	return record, nil
}

// AdjustForRefund aligns the posted earning with the intent's remaining
// captured balance, keeping the driver's net payable equal to
// captured-minus-refunded. The target comes from the ledger, so a call
// that failed after the ledger write can be repeated and converges
// instead of deducting twice. Nothing happens when no earning was
// posted (a pre-capture cancellation) or the record already matches.
func (p *EarningsPoster) AdjustForRefund(ctx context.Context, intent *domain.PaymentIntent) error {
	record, err := p.earnings.FindByBookingID(ctx, intent.BookingID)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}

	remaining := intent.RefundableAmount()
	if record.GrossAmount == remaining {
		return nil
	}
	if err := record.AlignToBalance(remaining); err != nil {
		return err
	}
	if err := p.earnings.Update(ctx, record); err != nil {
		return err
	}

	p.logger.Info("earnings adjusted for refund",
		"booking_id", record.BookingID,
		"refunded_total", intent.RefundedAmount,
		"gross", record.GrossAmount,
		"net", record.NetAmount,
	)
	return nil
}
