// Package booking admits appointments, drives their lifecycle and keeps each
// service-day queue sequenced.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/queue"
)

type Config struct {
	GranularityMinutes int
	OverlapMode        availability.Mode
	BufferMinutes      int

	Cache   SnapshotCache
	Metrics *metrics.BookingMetrics
	Now     func() time.Time
	NewID   func() string
}

type Service struct {
	store   Store
	logger  *slog.Logger
	seq     *queue.Sequencer
	cache   SnapshotCache
	metrics *metrics.BookingMetrics
	now     func() time.Time
	newID   func() string
	gran    int
	mode    availability.Mode
}

func NewService(store Store, logger *slog.Logger, cfg Config) *Service {
	if cfg.GranularityMinutes <= 0 {
		cfg.GranularityMinutes = availability.DefaultGranularityMinutes
	}
	if cfg.OverlapMode == "" {
		cfg.OverlapMode = availability.ModeInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.NewString() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		logger:  logger,
		seq:     queue.NewSequencer(queue.Config{BufferMinutes: cfg.BufferMinutes}),
		cache:   cfg.Cache,
		metrics: cfg.Metrics,
		now:     cfg.Now,
		newID:   cfg.NewID,
		gran:    cfg.GranularityMinutes,
		mode:    cfg.OverlapMode,
	}
}

func (s *Service) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	if id == "" {
		return model.Appointment{}, fmt.Errorf("%w: appointment id required", model.ErrInvalidRequest)
	}
	return s.store.LoadAppointment(ctx, id)
}

// plan resolves what the slot generator needs for one service-day. ok is false when
// the day offers nothing: closed, a holiday, in the past or beyond the booking horizon.
func (s *Service) plan(svc model.Service, prov model.Provider, date model.Date) (*calendar.Window, availability.Options, bool, error) {
	opts := availability.Options{GranularityMinutes: s.gran, Mode: s.mode}

	loc, err := prov.Location()
	if err != nil {
		return nil, opts, false, err
	}
	now := s.now().In(loc)
	today := model.DateOf(now)
	if date.Before(today) {
		return nil, opts, false, nil
	}
	if svc.MaxAdvanceDays > 0 && date.After(today.AddDays(svc.MaxAdvanceDays)) {
		return nil, opts, false, nil
	}
	if calendar.IsHoliday(date, prov.Holidays) {
		return nil, opts, false, nil
	}
	window, err := calendar.GetWindow(date, prov.WorkingHours)
	if err != nil {
		return nil, opts, false, err
	}
	if window == nil {
		return nil, opts, false, nil
	}
	if date == today {
		// Slots that already started are gone; the current minute still counts.
		opts.NotBefore = model.ClockOf(now)
	}
	return window, opts, true, nil
}

func (s *Service) loadCatalog(ctx context.Context, serviceID string) (model.Service, model.Provider, error) {
	svc, err := s.store.LoadService(ctx, serviceID)
	if err != nil {
		return model.Service{}, model.Provider{}, fmt.Errorf("load service: %w", err)
	}
	if err := svc.Validate(); err != nil {
		return model.Service{}, model.Provider{}, err
	}
	prov, err := s.store.LoadProvider(ctx, svc.ProviderID)
	if err != nil {
		return model.Service{}, model.Provider{}, fmt.Errorf("load provider: %w", err)
	}
	return svc, prov, nil
}

// AvailableSlots lists the start times still free for serviceID on date.
func (s *Service) AvailableSlots(ctx context.Context, serviceID string, date model.Date) ([]model.Clock, error) {
	if serviceID == "" {
		return nil, fmt.Errorf("%w: service id required", model.ErrInvalidRequest)
	}
	svc, prov, err := s.loadCatalog(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	window, opts, ok, err := s.plan(svc, prov, date)
	if err != nil || !ok {
		return []model.Clock{}, err
	}
	existing, err := s.store.LoadAppointments(ctx, prov.ID, date)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	slots := []model.Clock{}
	for c := range availability.GenerateSlots(svc, date, window, existing, opts) {
		slots = append(slots, c)
	}
	s.metrics.AddSlotsServed(len(slots))
	return slots, nil
}

// appendResequenced records the new order of one service-day queue.
func (s *Service) appendResequenced(ctx context.Context, tx Tx, key model.PartitionKey, entries []model.QueueEntry, now time.Time) error {
	positions := make([]outbox.QueuePositionV1, 0, len(entries))
	for _, e := range entries {
		positions = append(positions, outbox.QueuePositionV1{
			AppointmentID:        e.AppointmentID,
			Position:             e.Position,
			EstimatedWaitMinutes: e.EstimatedWaitMinutes,
		})
	}
	evt, err := outbox.NewEvent(outbox.AggregateQueue, key.String(), outbox.TypeQueueResequenced, outbox.QueueResequencedV1{
		ProviderID: key.ProviderID,
		ServiceID:  key.ServiceID,
		Date:       key.Date.String(),
		Entries:    positions,
		OccurredAt: now,
	})
	if err != nil {
		return err
	}
	return tx.AppendEvent(ctx, evt)
}

// invalidateCache drops a partition's snapshot after a committed write. A failed
// invalidation leaves the old snapshot until it expires.
func (s *Service) invalidateCache(ctx context.Context, key model.PartitionKey) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.logger.Error("queue cache invalidate failed", "partition", key.String(), "err", err)
	}
}

// resultLabel maps an outcome onto a low-cardinality metric label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, model.ErrDurationExceedsWindow):
		return "duration_exceeds_window"
	case errors.Is(err, model.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, model.ErrPartitionConflict):
		return "partition_conflict"
	case errors.Is(err, model.ErrInvalidConfiguration):
		return "invalid_configuration"
	case errors.Is(err, model.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrQueueEmpty):
		return "queue_empty"
	default:
		return "error"
	}
}
