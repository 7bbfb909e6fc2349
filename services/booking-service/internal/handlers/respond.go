package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/norastrand/bookwise/services/booking-service/internal/model"
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

// writeDomainError maps the domain sentinels onto HTTP statuses. Anything
// unrecognized is logged and surfaced as a bare 500.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrInvalidWindow):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrInsufficientTier):
		status = http.StatusPaymentRequired
	case errors.Is(err, model.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrOfferingNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrSlotConflict),
		errors.Is(err, model.ErrInvalidStateTransition),
		errors.Is(err, model.ErrOfferingHasBookings),
		errors.Is(err, model.ErrDailyCapReached):
		status = http.StatusConflict
	case errors.Is(err, model.ErrOfferingInactive):
		status = http.StatusGone
	case errors.Is(err, model.ErrOutsideAvailability):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed", "err", err)
		http.Error(w, "internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}
