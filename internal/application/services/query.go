package services

import (
	"context"

	"github.com/rideloop/payments/internal/application"
	"github.com/rideloop/payments/internal/domain"
)

// QueryService serves read-only lookups for the REST layer.
type QueryService struct {
	intents  application.IntentRepository
	earnings application.EarningsRepository
}

func NewQueryService(intents application.IntentRepository, earnings application.EarningsRepository) *QueryService {
	return &QueryService{
		intents:  intents,
		earnings: earnings,
	}
}

func (s *QueryService) GetIntent(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	return s.intents.FindByID(ctx, id)
}

func (s *QueryService) GetIntentByBooking(ctx context.Context, bookingID string) (*domain.PaymentIntent, error) {
	return s.intents.FindByBookingID(ctx, bookingID)
}

// ListPendingEarnings returns earnings awaiting payout, for the payout
// batcher and support tooling.
func (s *QueryService) ListPendingEarnings(ctx context.Context, limit int) ([]*domain.EarningsRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.earnings.FindPending(ctx, limit)
}
