package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rideloop/payments/internal/domain"
)

func (h *PaymentHandler) HandleGetPayment(w http.ResponseWriter, r *http.Request) {
	intent, err := h.queryService.GetIntent(r.Context(), r.PathValue("paymentIntentID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toPaymentIntentResponse(intent))
}

func (h *PaymentHandler) HandleGetBookingPayment(w http.ResponseWriter, r *http.Request) {
	intent, err := h.queryService.GetIntentByBooking(r.Context(), r.PathValue("bookingID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toPaymentIntentResponse(intent))
}

type EarningsResponse struct {
	ID              string    `json:"id"`
	DriverID        string    `json:"driver_id"`
	RideID          string    `json:"ride_id"`
	BookingID       string    `json:"booking_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	GrossAmount     int64     `json:"gross_amount"`
	PlatformFee     int64     `json:"platform_fee"`
	NetAmount       int64     `json:"net_amount"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

func (h *PaymentHandler) HandlePendingEarnings(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := h.queryService.ListPendingEarnings(r.Context(), limit)
	if err != nil {
		WriteError(w, err)
		return
	}

	out := make([]EarningsResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toEarningsResponse(rec))
	}
	respondWithJSON(w, http.StatusOK, out)
}

func toEarningsResponse(rec *domain.EarningsRecord) EarningsResponse {
	return EarningsResponse{
		ID:              rec.ID,
		DriverID:        rec.DriverID,
		RideID:          rec.RideID,
		BookingID:       rec.BookingID,
		PaymentIntentID: rec.PaymentIntentID,
		GrossAmount:     rec.GrossAmount,
		PlatformFee:     rec.PlatformFee,
		NetAmount:       rec.NetAmount,
		Status:          string(rec.Status),
		CreatedAt:       rec.CreatedAt,
	}
}
