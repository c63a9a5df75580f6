package rest

import (
	"encoding/json"
	"net/http"

	"github.com/rideloop/payments/internal/application/services"
)

// HandleRideCompleted accepts the ride-completed event from the ride
// lifecycle collaborator and enqueues one capture per booking. The
// event may be redelivered safely.
func (h *PaymentHandler) HandleRideCompleted(w http.ResponseWriter, r *http.Request) {
	var evt services.RideCompletedEvent
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		respondWithJSON(w, http.StatusBadRequest, &APIError{
			Code:    "VALIDATION_ERROR",
			Message: "invalid request body",
		})
		return
	}

	if evt.RideID == "" || len(evt.BookingIDs) == 0 {
		respondWithJSON(w, http.StatusBadRequest, &APIError{
			Code:    "VALIDATION_ERROR",
			Message: "ride_id and booking_ids are required",
		})
		return
	}

	if err := h.completionService.HandleRideCompleted(r.Context(), evt); err != nil {
		WriteError(w, err)
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]int{"bookings": len(evt.BookingIDs)})
}
