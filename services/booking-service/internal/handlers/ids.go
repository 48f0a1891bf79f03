package handlers

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/model"
)

// parseID checks that an identifier from the request is a UUID and returns it
// in canonical form.
func parseID(field, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: %s required", model.ErrInvalidRequest, field)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s must be a uuid", model.ErrInvalidRequest, field)
	}
	return id.String(), nil
}
