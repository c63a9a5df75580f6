package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rideloop/payments/internal/application/services"
	"github.com/rideloop/payments/internal/domain"
)

type CancelBookingRequest struct {
	ActorRole     string    `json:"actor_role" validate:"required,oneof=driver passenger"`
	DepartureTime time.Time `json:"departure_time" validate:"required"`
	Reason        string    `json:"reason"`
}

type CancellationResponse struct {
	RefundPercentage int                   `json:"refund_percentage"`
	FeePercentage    int                   `json:"fee_percentage"`
	RefundedCents    int64                 `json:"refunded_cents"`
	CapturedCents    int64                 `json:"captured_cents"`
	Payment          PaymentIntentResponse `json:"payment"`
}

// HandleCancelBooking applies the refund policy to a booking's payment:
// releasing the hold, capturing a cancellation fee, or refunding
// captured funds. The outcome is returned synchronously.
func (h *PaymentHandler) HandleCancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := r.PathValue("bookingID")

	var req CancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, &APIError{
			Code:    "VALIDATION_ERROR",
			Message: "invalid request body",
		})
		return
	}

	if err := h.validate.Struct(req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, &APIError{
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		})
		return
	}

	result, err := h.cancellationService.CancelBooking(r.Context(), services.CancelBookingCommand{
		BookingID:     bookingID,
		ActorRole:     domain.ActorRole(req.ActorRole),
		DepartureTime: req.DepartureTime,
		Reason:        req.Reason,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, CancellationResponse{
		RefundPercentage: result.Decision.RefundPercentage,
		FeePercentage:    result.Decision.FeePercentage,
		RefundedCents:    result.RefundedCents,
		CapturedCents:    result.CapturedCents,
		Payment:          toPaymentIntentResponse(result.Intent),
	})
}
