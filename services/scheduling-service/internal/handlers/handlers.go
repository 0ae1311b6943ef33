package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bookline-dev/bookline/services/scheduling-service/internal/booking"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeBookingError maps the engine's typed errors onto HTTP statuses.
// Unknown errors become an opaque 500 so storage details never leak.
func writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		http.Error(w, "appointment or booking type not found", http.StatusNotFound)
	case errors.Is(err, booking.ErrSlotTaken):
		http.Error(w, "requested slot is no longer available", http.StatusConflict)
	case errors.Is(err, booking.ErrAlreadyCancelled):
		http.Error(w, "appointment is already cancelled", http.StatusConflict)
	case errors.Is(err, booking.ErrPastAppointment):
		http.Error(w, "appointment is in the past", http.StatusUnprocessableEntity)
	case errors.Is(err, booking.ErrOutsideAvailability):
		http.Error(w, "requested time is outside availability", http.StatusUnprocessableEntity)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
