package rest

import (
	"encoding/json"
	"net/http"

	"github.com/rideloop/payments/internal/application/services"
)

type AuthorizeRequest struct {
	RideID        string `json:"ride_id" validate:"required"`
	BookingID     string `json:"booking_id" validate:"required"`
	RiderID       string `json:"rider_id" validate:"required"`
	DriverID      string `json:"driver_id" validate:"required"`
	SubtotalCents int64  `json:"subtotal_cents" validate:"required,gt=0"`
	Currency      string `json:"currency" validate:"required,len=3"`
	CustomerRef   string `json:"customer_ref" validate:"required"`
}

// HandleAuthorize opens a payment intent for a booking and places the
// provider hold. Repeating the call for the same booking returns the
// existing intent.
func (h *PaymentHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req AuthorizeRequest
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

	intent, err := h.authorizeService.Authorize(r.Context(), services.AuthorizeCommand{
		RideID:        req.RideID,
		BookingID:     req.BookingID,
		RiderID:       req.RiderID,
		DriverID:      req.DriverID,
		SubtotalCents: req.SubtotalCents,
		Currency:      req.Currency,
		CustomerRef:   req.CustomerRef,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, toPaymentIntentResponse(intent))
}
