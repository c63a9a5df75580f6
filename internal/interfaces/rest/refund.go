package rest

import (
	"encoding/json"
	"net/http"

	"github.com/rideloop/payments/internal/application/services"
)

type RefundRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Reason      string `json:"reason"`
}

// HandleRefund returns part or all of a captured payment to the rider.
func (h *PaymentHandler) HandleRefund(w http.ResponseWriter, r *http.Request) {
	paymentIntentID := r.PathValue("paymentIntentID")

	var req RefundRequest
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

	intent, err := h.refundService.Refund(r.Context(), services.RefundCommand{
		PaymentIntentID: paymentIntentID,
		AmountCents:     req.AmountCents,
		Reason:          req.Reason,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toPaymentIntentResponse(intent))
}
