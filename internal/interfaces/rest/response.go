package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rideloop/payments/internal/application"
	"github.com/rideloop/payments/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PaymentIntentResponse struct {
	ID              string     `json:"id"`
	RideID          string     `json:"ride_id"`
	BookingID       string     `json:"booking_id"`
	RiderID         string     `json:"rider_id"`
	DriverID        string     `json:"driver_id"`
	AmountSubtotal  int64      `json:"amount_subtotal"`
	DiscountAmount  int64      `json:"discount_amount"`
	AmountTotal     int64      `json:"amount_total"`
	Currency        string     `json:"currency"`
	CaptureMethod   string     `json:"capture_method"`
	Status          string     `json:"status"`
	CapturedAmount  int64      `json:"captured_amount"`
	RefundedAmount  int64      `json:"refunded_amount"`
	ExternalRef     *string    `json:"external_ref,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	AuthorizedAt    *time.Time `json:"authorized_at,omitempty"`
	CapturedAt      *time.Time `json:"captured_at,omitempty"`
	CanceledAt      *time.Time `json:"canceled_at,omitempty"`
	LastError       *string    `json:"last_error,omitempty"`
}

func toPaymentIntentResponse(p *domain.PaymentIntent) PaymentIntentResponse {
	return PaymentIntentResponse{
		ID:             p.ID,
		RideID:         p.RideID,
		BookingID:      p.BookingID,
		RiderID:        p.RiderID,
		DriverID:       p.DriverID,
		AmountSubtotal: p.AmountSubtotal,
		DiscountAmount: p.DiscountAmount,
		AmountTotal:    p.AmountTotal,
		Currency:       p.Currency,
		CaptureMethod:  p.CaptureMethod,
		Status:         string(p.Status),
		CapturedAmount: p.CapturedAmount,
		RefundedAmount: p.RefundedAmount,
		ExternalRef:    p.ExternalRef,
		CreatedAt:      p.CreatedAt,
		AuthorizedAt:   p.AuthorizedAt,
		CapturedAt:     p.CapturedAt,
		CanceledAt:     p.CanceledAt,
		LastError:      p.LastError,
	}
}

func respondWithJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: status >= 200 && status < 300,
	}

	if response.Success {
		response.Data = data
	} else {
		if apiErr, ok := data.(*APIError); ok {
			response.Error = apiErr
		}
	}

	_ = json.NewEncoder(w).Encode(response)
}

// WriteError maps application and domain errors onto HTTP statuses.
func WriteError(w http.ResponseWriter, err error) {
	if svcErr, ok := application.IsServiceError(err); ok {
		respondWithJSON(w, svcErr.HTTPStatus, &APIError{
			Code:    svcErr.Code,
			Message: svcErr.Message,
		})
		return
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		status := http.StatusBadRequest
		switch domainErr.Code {
		case domain.ErrCodeIntentNotFound:
			status = http.StatusNotFound
		case domain.ErrCodeInvalidTransition, domain.ErrCodeDuplicateQueueItem,
			domain.ErrCodeVersionConflict, domain.ErrCodeCaptureInFlight:
			status = http.StatusConflict
		case domain.ErrCodeRefundExceedsBalance:
			status = http.StatusUnprocessableEntity
		}
		respondWithJSON(w, status, &APIError{
			Code:    domainErr.Code,
			Message: domainErr.Message,
		})
		return
	}

	respondWithJSON(w, http.StatusInternalServerError, &APIError{
		Code:    application.ErrCodeInternal,
		Message: "An internal error occurred",
	})
}
