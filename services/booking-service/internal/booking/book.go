package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/outbox"
)

type BookRequest struct {
	ServiceID string
	Date      model.Date
	StartTime model.Clock
	// Priority falls back to the service default, then medium.
	Priority model.Priority
	// Channel defaults to web.
	Channel        model.Channel
	Contact        model.Contact
	Notes          string
	IdempotencyKey string
}

type BookResult struct {
	Appointment model.Appointment
	// Replayed is set when IdempotencyKey matched an earlier booking.
	Replayed bool
}

func (r *BookRequest) normalize() error {
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	r.Contact.UserID = strings.TrimSpace(r.Contact.UserID)
	r.Contact.Name = strings.TrimSpace(r.Contact.Name)
	r.Contact.Phone = strings.TrimSpace(r.Contact.Phone)
	r.Contact.Email = strings.TrimSpace(r.Contact.Email)
	r.IdempotencyKey = strings.TrimSpace(r.IdempotencyKey)

	if r.ServiceID == "" {
		return fmt.Errorf("%w: service id required", model.ErrInvalidRequest)
	}
	if !r.Date.IsValid() {
		return fmt.Errorf("%w: invalid date", model.ErrInvalidRequest)
	}
	if r.StartTime < 0 || r.StartTime >= 24*60 {
		return fmt.Errorf("%w: invalid start time", model.ErrInvalidRequest)
	}
	if r.Contact.UserID == "" && (r.Contact.Name == "" || r.Contact.Phone == "") {
		return fmt.Errorf("%w: user id or guest name and phone required", model.ErrInvalidRequest)
	}
	if r.Channel == "" {
		r.Channel = model.ChannelWeb
	}
	return nil
}

// checkPolicy applies the provider's channel switches and the service's priority rules,
// resolving the effective priority.
func checkPolicy(req *BookRequest, svc model.Service, prov model.Provider) error {
	switch req.Channel {
	case model.ChannelWalkIn:
		if !svc.AllowWalkIn || !prov.Settings.AllowWalkIn {
			return fmt.Errorf("%w: walk-in bookings are not accepted for this service", model.ErrInvalidRequest)
		}
	case model.ChannelWeb:
		if !prov.Settings.AllowOnlineBooking {
			return fmt.Errorf("%w: online booking is disabled", model.ErrInvalidRequest)
		}
	case model.ChannelPhone:
		if !prov.Settings.AllowPhoneBooking {
			return fmt.Errorf("%w: phone booking is disabled", model.ErrInvalidRequest)
		}
	}

	if req.Priority == "" {
		req.Priority = svc.DefaultPriority
	}
	if req.Priority == "" {
		req.Priority = model.PriorityMedium
	}
	if !svc.Eligible(req.Priority) {
		return fmt.Errorf("%w: priority %s not offered for this service", model.ErrInvalidRequest, req.Priority)
	}
	return nil
}

// Book admits a new appointment in the scheduled state and places it in its
// service-day queue. The slot must be among those AvailableSlots would return at
// the moment the partition lock is held.
func (s *Service) Book(ctx context.Context, req BookRequest) (BookResult, error) {
	res, err := s.book(ctx, req)
	s.metrics.ObserveBooking(resultLabel(err))
	if err != nil {
		s.logger.Info("booking rejected",
			"service_id", req.ServiceID,
			"date", req.Date.String(),
			"start_time", req.StartTime.String(),
			"reason", resultLabel(err),
		)
		return BookResult{}, err
	}
	return res, nil
}

func (s *Service) book(ctx context.Context, req BookRequest) (BookResult, error) {
	if err := req.normalize(); err != nil {
		return BookResult{}, err
	}
	svc, prov, err := s.loadCatalog(ctx, req.ServiceID)
	if err != nil {
		return BookResult{}, err
	}
	if err := checkPolicy(&req, svc, prov); err != nil {
		return BookResult{}, err
	}
	window, opts, ok, err := s.plan(svc, prov, req.Date)
	if err != nil {
		return BookResult{}, err
	}
	if !ok {
		return BookResult{}, fmt.Errorf("%w: %s is not bookable", model.ErrSlotUnavailable, req.Date)
	}

	key := model.PartitionKey{ProviderID: prov.ID, ServiceID: svc.ID, Date: req.Date}
	var (
		result  BookResult
		entries []model.QueueEntry
	)
	err = s.store.InPartition(ctx, prov.ID, req.Date, func(ctx context.Context, tx Tx) error {
		existing, err := tx.LoadAppointments(ctx, prov.ID, req.Date)
		if err != nil {
			return fmt.Errorf("load appointments: %w", err)
		}

		if req.IdempotencyKey != "" {
			prevID, found, err := tx.FindIdempotencyKey(ctx, prov.ID, req.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("find idempotency key: %w", err)
			}
			if found {
				for _, a := range existing {
					if a.ID == prevID {
						result = BookResult{Appointment: a, Replayed: true}
						return nil
					}
				}
				return fmt.Errorf("%w: idempotency key already used for another booking", model.ErrInvalidRequest)
			}
		}

		slots := availability.GenerateSlots(svc, req.Date, window, existing, opts)
		if !availability.Contains(slots, req.StartTime) {
			return fmt.Errorf("%w: %s %s", model.ErrSlotUnavailable, req.Date, req.StartTime)
		}
		if !window.Fits(req.StartTime, svc.DurationMinutes) {
			return fmt.Errorf("%w: %s + %dm runs past %s", model.ErrDurationExceedsWindow, req.StartTime, svc.DurationMinutes, window.Close)
		}

		now := s.now().UTC()
		appt := model.Appointment{
			ID:              s.newID(),
			ProviderID:      prov.ID,
			ServiceID:       svc.ID,
			Contact:         req.Contact,
			Date:            req.Date,
			StartTime:       req.StartTime,
			DurationMinutes: svc.DurationMinutes,
			Status:          model.StatusScheduled,
			Channel:         req.Channel,
			Priority:        req.Priority,
			Notes:           strings.TrimSpace(req.Notes),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		all := append(existing, appt)
		var changed []int
		entries, changed = s.seq.Apply(svc.ID, req.Date, all)
		appt = all[len(all)-1]

		if err := tx.CreateAppointment(ctx, appt); err != nil {
			return err
		}
		for _, i := range changed {
			if all[i].ID == appt.ID {
				continue
			}
			if err := tx.UpdateAppointment(ctx, all[i]); err != nil {
				return err
			}
		}
		if req.IdempotencyKey != "" {
			if err := tx.SaveIdempotencyKey(ctx, prov.ID, req.IdempotencyKey, appt.ID); err != nil {
				return fmt.Errorf("save idempotency key: %w", err)
			}
		}

		evt, err := outbox.NewEvent(outbox.AggregateAppointment, appt.ID, outbox.TypeAppointmentBooked, bookedPayload(appt, prov.Settings.AutoConfirm))
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, evt); err != nil {
			return err
		}
		if err := s.appendResequenced(ctx, tx, key, entries, now); err != nil {
			return err
		}
		result = BookResult{Appointment: appt}
		return nil
	})
	if err != nil {
		return BookResult{}, err
	}
	if result.Replayed {
		return result, nil
	}

	s.invalidateCache(ctx, key)
	appt := result.Appointment
	if appt.EstimatedWaitMinutes != nil {
		s.metrics.ObserveQueueWait(*appt.EstimatedWaitMinutes)
	}
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"provider_id", appt.ProviderID,
		"service_id", appt.ServiceID,
		"date", appt.Date.String(),
		"start_time", appt.StartTime.String(),
		"priority", string(appt.Priority),
		"queue_position", deref(appt.QueuePosition),
	)
	return result, nil
}

func bookedPayload(appt model.Appointment, autoConfirm bool) outbox.AppointmentBookedV1 {
	return outbox.AppointmentBookedV1{
		AppointmentID:        appt.ID,
		ProviderID:           appt.ProviderID,
		ServiceID:            appt.ServiceID,
		UserID:               appt.Contact.UserID,
		GuestName:            appt.Contact.Name,
		GuestPhone:           appt.Contact.Phone,
		GuestEmail:           appt.Contact.Email,
		Date:                 appt.Date.String(),
		StartTime:            appt.StartTime.String(),
		DurationMinutes:      appt.DurationMinutes,
		Channel:              string(appt.Channel),
		Priority:             string(appt.Priority),
		QueuePosition:        deref(appt.QueuePosition),
		EstimatedWaitMinutes: deref(appt.EstimatedWaitMinutes),
		ConfirmationCode:     appt.ConfirmationCode(),
		AutoConfirm:          autoConfirm,
		OccurredAt:           appt.CreatedAt,
	}
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
