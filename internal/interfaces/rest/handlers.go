// Package rest exposes the payment ledger over HTTP.
package rest

import (
	"net/http"

	"github.com/go-playground/validator"

	"github.com/rideloop/payments/internal/application/services"
)

type PaymentHandler struct {
	authorizeService    *services.AuthorizeService
	completionService   *services.CompletionService
	cancellationService *services.CancellationService
	refundService       *services.RefundService
	queryService        *services.QueryService
	validate            *validator.Validate
}

func NewPaymentHandler(
	authorizeService *services.AuthorizeService,
	completionService *services.CompletionService,
	cancellationService *services.CancellationService,
	refundService *services.RefundService,
	queryService *services.QueryService,
) *PaymentHandler {
	return &PaymentHandler{
		authorizeService:    authorizeService,
		completionService:   completionService,
		cancellationService: cancellationService,
		refundService:       refundService,
		queryService:        queryService,
		validate:            validator.New(),
	}
}

func (h *PaymentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /payments/authorize", h.HandleAuthorize)
	mux.HandleFunc("POST /bookings/{bookingID}/cancel", h.HandleCancelBooking)
	mux.HandleFunc("POST /payments/{paymentIntentID}/refund", h.HandleRefund)
	mux.HandleFunc("POST /events/ride-completed", h.HandleRideCompleted)
	mux.HandleFunc("GET /payments/{paymentIntentID}", h.HandleGetPayment)
	mux.HandleFunc("GET /bookings/{bookingID}/payment", h.HandleGetBookingPayment)
	mux.HandleFunc("GET /earnings/pending", h.HandlePendingEarnings)
	mux.HandleFunc("GET /health", h.HandleHealth)
}

func (h *PaymentHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
