package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/model"
)

// BookingService is the booking core as seen by HTTP.
type BookingService interface {
	AvailableSlots(ctx context.Context, serviceID string, date model.Date) ([]model.Clock, error)
	Book(ctx context.Context, req booking.BookRequest) (booking.BookResult, error)
	Transition(ctx context.Context, appointmentID string, action lifecycle.Action, reason string) (model.Appointment, error)
	CallNext(ctx context.Context, providerID, serviceID string, date model.Date) (model.Appointment, error)
	QueueSnapshot(ctx context.Context, providerID, serviceID string, date model.Date) ([]model.QueueEntry, error)
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
}

type BookingHandler struct {
	svc    BookingService
	logger *slog.Logger
}

func NewBookingHandler(svc BookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

// Register mounts the booking routes on mux.
func (h *BookingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/public/slots", h.Slots)
	mux.HandleFunc("/api/v1/public/book", h.Create)
	mux.HandleFunc("/api/v1/appointments", h.Get)
	mux.HandleFunc("/api/v1/appointments/transition", h.Transition)
	mux.HandleFunc("/api/v1/appointments/cancel", h.Cancel)
	mux.HandleFunc("/api/v1/queue", h.Queue)
	mux.HandleFunc("/api/v1/queue/call-next", h.CallNext)
}

type createBookingRequest struct {
	ServiceID string `json:"service_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	Priority  string `json:"priority"`
	Channel   string `json:"booking_channel"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Notes     string `json:"notes"`
}

type createBookingResponse struct {
	AppointmentID        string `json:"appointment_id"`
	ConfirmationCode     string `json:"confirmation_code"`
	Status               string `json:"status"`
	Date                 string `json:"date"`
	StartTime            string `json:"start_time"`
	QueuePosition        *int   `json:"queue_position,omitempty"`
	EstimatedWaitMinutes *int   `json:"estimated_wait_minutes,omitempty"`
}

type transitionRequest struct {
	AppointmentID string `json:"appointment_id"`
	Action        string `json:"action"`
	Reason        string `json:"reason"`
}

type cancelBookingRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

type callNextRequest struct {
	ProviderID string `json:"provider_id"`
	ServiceID  string `json:"service_id"`
	Date       string `json:"date"`
}

type slotsResponse struct {
	ServiceID string   `json:"service_id"`
	Date      string   `json:"date"`
	Slots     []string `json:"slots"`
}

type queueResponse struct {
	ProviderID string             `json:"provider_id"`
	ServiceID  string             `json:"service_id"`
	Date       string             `json:"date"`
	Entries    []model.QueueEntry `json:"entries"`
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	serviceID, err := parseID("service_id", r.URL.Query().Get("service_id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	date, err := model.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	slots, err := h.svc.AvailableSlots(r.Context(), serviceID, date)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	resp := slotsResponse{ServiceID: serviceID, Date: date.String(), Slots: make([]string, 0, len(slots))}
	for _, c := range slots {
		resp.Slots = append(resp.Slots, c.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	bookReq, err := req.toBookRequest()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	bookReq.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	res, err := h.svc.Book(r.Context(), bookReq)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	appt := res.Appointment
	writeJSON(w, status, createBookingResponse{
		AppointmentID:        appt.ID,
		ConfirmationCode:     appt.ConfirmationCode(),
		Status:               string(appt.Status),
		Date:                 appt.Date.String(),
		StartTime:            appt.StartTime.String(),
		QueuePosition:        appt.QueuePosition,
		EstimatedWaitMinutes: appt.EstimatedWaitMinutes,
	})
}

func (req createBookingRequest) toBookRequest() (booking.BookRequest, error) {
	serviceID, err := parseID("service_id", req.ServiceID)
	if err != nil {
		return booking.BookRequest{}, err
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return booking.BookRequest{}, err
	}
	start, err := model.ParseClock(req.StartTime)
	if err != nil {
		return booking.BookRequest{}, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err)
	}
	out := booking.BookRequest{
		ServiceID: serviceID,
		Date:      date,
		StartTime: start,
		Contact: model.Contact{
			UserID: req.UserID,
			Name:   req.Name,
			Phone:  req.Phone,
			Email:  req.Email,
		},
		Notes: req.Notes,
	}
	if strings.TrimSpace(req.Priority) != "" {
		if out.Priority, err = model.ParsePriority(req.Priority); err != nil {
			return booking.BookRequest{}, err
		}
	}
	if strings.TrimSpace(req.Channel) != "" {
		if out.Channel, err = model.ParseChannel(req.Channel); err != nil {
			return booking.BookRequest{}, err
		}
	}
	return out, nil
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := parseID("appointment_id", r.URL.Query().Get("appointment_id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	appt, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *BookingHandler) Transition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	action, ok := lifecycle.ParseAction(req.Action)
	if !ok {
		writeError(w, h.logger, fmt.Errorf("%w: unknown action %q", model.ErrInvalidRequest, req.Action))
		return
	}
	h.transition(w, r, req.AppointmentID, action, req.Reason)
}

// Cancel is kept as its own route for clients that only ever cancel.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req cancelBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.transition(w, r, req.AppointmentID, lifecycle.ActionCancel, req.Reason)
}

func (h *BookingHandler) transition(w http.ResponseWriter, r *http.Request, rawID string, action lifecycle.Action, reason string) {
	id, err := parseID("appointment_id", rawID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	appt, err := h.svc.Transition(r.Context(), id, action, reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *BookingHandler) Queue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	date, err := model.ParseDate(q.Get("date"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	providerID, err := parseID("provider_id", q.Get("provider_id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	serviceID, err := parseID("service_id", q.Get("service_id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	entries, err := h.svc.QueueSnapshot(r.Context(), providerID, serviceID, date)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if entries == nil {
		entries = []model.QueueEntry{}
	}
	writeJSON(w, http.StatusOK, queueResponse{ProviderID: providerID, ServiceID: serviceID, Date: date.String(), Entries: entries})
}

func (h *BookingHandler) CallNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req callNextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	providerID, err := parseID("provider_id", req.ProviderID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	serviceID, err := parseID("service_id", req.ServiceID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	appt, err := h.svc.CallNext(r.Context(), providerID, serviceID, date)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}
