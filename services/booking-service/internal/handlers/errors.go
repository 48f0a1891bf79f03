package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps booking error kinds onto HTTP statuses and stable codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrQueueEmpty):
		return http.StatusNotFound, "queue_empty"
	case errors.Is(err, model.ErrSlotUnavailable):
		return http.StatusConflict, "slot_unavailable"
	case errors.Is(err, model.ErrPartitionConflict):
		return http.StatusConflict, "partition_conflict"
	case errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, model.ErrDurationExceedsWindow):
		return http.StatusUnprocessableEntity, "duration_exceeds_window"
	case errors.Is(err, model.ErrInvalidConfiguration):
		return http.StatusUnprocessableEntity, "invalid_configuration"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "err", err)
		msg = "internal error"
	}
	if errors.Is(err, model.ErrPartitionConflict) {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

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

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid json body", model.ErrInvalidRequest)
	}
	return nil
}
