package postgres

import (
	"github.com/rideloop/payments/internal/domain"
)

func toIntentDomain(m IntentModel) *domain.PaymentIntent {
	return domain.ReconstituteIntent(
		m.ID, m.ExternalRef,
		m.RideID, m.BookingID, m.RiderID, m.DriverID,
		m.AmountSubtotal, m.DiscountAmount, m.AmountTotal, m.Currency,
		domain.IntentStatus(m.Status),
		m.CapturedAmount, m.RefundedAmount,
		m.DiscountGrantID,
		m.CreatedAt,
		m.AuthorizedAt, m.CapturedAt, m.CanceledAt,
		m.LastError,
		m.Version,
	)
}

func toIntentModel(p *domain.PaymentIntent) *IntentModel {
	return &IntentModel{
		ID:              p.ID,
		ExternalRef:     p.ExternalRef,
		RideID:          p.RideID,
		BookingID:       p.BookingID,
		RiderID:         p.RiderID,
		DriverID:        p.DriverID,
		AmountSubtotal:  p.AmountSubtotal,
		DiscountAmount:  p.DiscountAmount,
		AmountTotal:     p.AmountTotal,
		Currency:        p.Currency,
		Status:          string(p.Status),
		CapturedAmount:  p.CapturedAmount,
		RefundedAmount:  p.RefundedAmount,
		DiscountGrantID: p.DiscountGrantID,
		CreatedAt:       p.CreatedAt,
		AuthorizedAt:    p.AuthorizedAt,
		CapturedAt:      p.CapturedAt,
		CanceledAt:      p.CanceledAt,
		LastError:       p.LastError,
		Version:         p.Version,
	}
}

func toCaptureItemDomain(m CaptureItemModel) *domain.CaptureQueueItem {
	return &domain.CaptureQueueItem{
		ID:              m.ID,
		PaymentIntentID: m.PaymentIntentID,
		AmountCents:     m.AmountCents,
		Attempts:        m.Attempts,
		MaxAttempts:     m.MaxAttempts,
		Status:          domain.CaptureStatus(m.Status),
		NextAttemptAt:   m.NextAttemptAt,
		LastAttemptAt:   m.LastAttemptAt,
		ErrorMessage:    m.ErrorMessage,
		CreatedAt:       m.CreatedAt,
	}
}

func toEarningsDomain(m EarningsModel) *domain.EarningsRecord {
	return &domain.EarningsRecord{
		ID:                 m.ID,
		DriverID:           m.DriverID,
		RideID:             m.RideID,
		BookingID:          m.BookingID,
		PaymentIntentID:    m.PaymentIntentID,
		GrossAmount:        m.GrossAmount,
		PlatformFeePercent: m.PlatformFeePercent,
		PlatformFee:        m.PlatformFee,
		NetAmount:          m.NetAmount,
		Status:             domain.EarningsStatus(m.Status),
		CreatedAt:          m.CreatedAt,
		PayoutBatchID:      m.PayoutBatchID,
	}
}

func toGrantDomain(m GrantModel) *domain.ReferralDiscountGrant {
	return &domain.ReferralDiscountGrant{
		ID:            m.ID,
		ReferralUseID: m.ReferralUseID,
		BeneficiaryID: m.BeneficiaryID,
		Role:          domain.GrantRole(m.Role),
		Percent:       m.Percent,
		Status:        domain.GrantStatus(m.Status),
		CreatedAt:     m.CreatedAt,
		ConsumedAt:    m.ConsumedAt,
		UnlockedAt:    m.UnlockedAt,
	}
}
