package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/model"
)

// CatalogStore persists providers and their services.
type CatalogStore interface {
	SaveProvider(ctx context.Context, p model.Provider) error
	LoadProvider(ctx context.Context, id string) (model.Provider, error)
	SaveService(ctx context.Context, s model.Service) error
	ListServices(ctx context.Context, providerID string) ([]model.Service, error)
}

type SetupHandler struct {
	store  CatalogStore
	logger *slog.Logger
	now    func() time.Time
}

func NewSetupHandler(store CatalogStore, logger *slog.Logger) *SetupHandler {
	return &SetupHandler{store: store, logger: logger, now: time.Now}
}

func (h *SetupHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/providers", h.Provider)
	mux.HandleFunc("/api/v1/services", h.Services)
}

type providerRequest struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Timezone     string                 `json:"timezone"`
	WorkingHours model.WorkingHours     `json:"working_hours"`
	Holidays     []string               `json:"holidays"`
	Settings     model.ProviderSettings `json:"settings"`
}

type serviceRequest struct {
	ProviderID        string   `json:"provider_id"`
	Name              string   `json:"name"`
	DurationMinutes   int      `json:"duration_minutes"`
	AllowedPriorities []string `json:"allowed_priorities"`
	DefaultPriority   string   `json:"default_priority"`
	MaxAdvanceDays    int      `json:"max_advance_days"`
	AllowWalkIn       bool     `json:"allow_walk_in"`
}

// Provider upserts a provider with its working hours, holidays and booking switches.
func (h *SetupHandler) Provider(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
	case http.MethodGet:
		id, err := parseID("provider_id", r.URL.Query().Get("provider_id"))
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		p, err := h.store.LoadProvider(r.Context(), id)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req providerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	p := model.Provider{
		ID:           strings.TrimSpace(req.ID),
		Name:         strings.TrimSpace(req.Name),
		Timezone:     strings.TrimSpace(req.Timezone),
		WorkingHours: req.WorkingHours,
		Settings:     req.Settings,
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	} else {
		id, err := parseID("id", p.ID)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		p.ID = id
	}
	if p.Name == "" {
		writeError(w, h.logger, fmt.Errorf("%w: name required", model.ErrInvalidRequest))
		return
	}
	for _, raw := range req.Holidays {
		d, err := model.ParseDate(raw)
		if err != nil {
			writeError(w, h.logger, &model.ConfigError{Field: "holidays", Value: raw})
			return
		}
		p.Holidays = append(p.Holidays, d)
	}
	if _, err := p.Location(); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := calendar.Validate(p.WorkingHours); err != nil {
		writeError(w, h.logger, err)
		return
	}
	now := h.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	if err := h.store.SaveProvider(r.Context(), p); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("provider saved", "provider_id", p.ID)
	writeJSON(w, http.StatusOK, p)
}

// Services creates a service (POST) or lists a provider's services (GET).
func (h *SetupHandler) Services(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		providerID, err := parseID("provider_id", r.URL.Query().Get("provider_id"))
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		list, err := h.store.ListServices(r.Context(), providerID)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		if list == nil {
			list = []model.Service{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"services": list})
		return
	case http.MethodPost:
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req serviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	s := model.Service{
		ID:              uuid.NewString(),
		ProviderID:      strings.TrimSpace(req.ProviderID),
		Name:            strings.TrimSpace(req.Name),
		DurationMinutes: req.DurationMinutes,
		DefaultPriority: model.Priority(strings.ToLower(strings.TrimSpace(req.DefaultPriority))),
		MaxAdvanceDays:  req.MaxAdvanceDays,
		AllowWalkIn:     req.AllowWalkIn,
		CreatedAt:       h.now().UTC(),
	}
	for _, p := range req.AllowedPriorities {
		s.AllowedPriorities = append(s.AllowedPriorities, model.Priority(strings.ToLower(strings.TrimSpace(p))))
	}
	providerID, err := parseID("provider_id", s.ProviderID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	s.ProviderID = providerID
	if err := s.Validate(); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.store.SaveService(r.Context(), s); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("service created", "service_id", s.ID, "provider_id", s.ProviderID)
	writeJSON(w, http.StatusCreated, s)
}
