package booking

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/outbox"
)

// Transition applies a lifecycle action to one appointment and resequences its queue.
// reason is kept for cancellations.
func (s *Service) Transition(ctx context.Context, appointmentID string, action lifecycle.Action, reason string) (model.Appointment, error) {
	appt, err := s.transition(ctx, appointmentID, action, reason)
	s.metrics.ObserveTransition(string(action), resultLabel(err))
	return appt, err
}

func (s *Service) transition(ctx context.Context, appointmentID string, action lifecycle.Action, reason string) (model.Appointment, error) {
	appointmentID = strings.TrimSpace(appointmentID)
	if appointmentID == "" {
		return model.Appointment{}, fmt.Errorf("%w: appointment id required", model.ErrInvalidRequest)
	}
	// Provider and day never change, so the unlocked read only locates the partition.
	current, err := s.store.LoadAppointment(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}

	var (
		out     model.Appointment
		entries []model.QueueEntry
	)
	err = s.store.InPartition(ctx, current.ProviderID, current.Date, func(ctx context.Context, tx Tx) error {
		appts, err := tx.LoadAppointments(ctx, current.ProviderID, current.Date)
		if err != nil {
			return fmt.Errorf("load appointments: %w", err)
		}
		i := slices.IndexFunc(appts, func(a model.Appointment) bool { return a.ID == appointmentID })
		if i < 0 {
			return fmt.Errorf("%w: appointment %s", model.ErrNotFound, appointmentID)
		}
		out, entries, err = s.applyLocked(ctx, tx, appts, i, action, reason)
		return err
	})
	if err != nil {
		return model.Appointment{}, err
	}
	s.afterTransition(ctx, out, action, entries)
	return out, nil
}

// CallNext starts service for the first checked-in appointment in queue order.
func (s *Service) CallNext(ctx context.Context, providerID, serviceID string, date model.Date) (model.Appointment, error) {
	appt, err := s.callNext(ctx, providerID, serviceID, date)
	s.metrics.ObserveTransition(string(lifecycle.ActionCallNext), resultLabel(err))
	return appt, err
}

func (s *Service) callNext(ctx context.Context, providerID, serviceID string, date model.Date) (model.Appointment, error) {
	if providerID == "" || serviceID == "" {
		return model.Appointment{}, fmt.Errorf("%w: provider id and service id required", model.ErrInvalidRequest)
	}

	var (
		out     model.Appointment
		entries []model.QueueEntry
	)
	err := s.store.InPartition(ctx, providerID, date, func(ctx context.Context, tx Tx) error {
		appts, err := tx.LoadAppointments(ctx, providerID, date)
		if err != nil {
			return fmt.Errorf("load appointments: %w", err)
		}
		var nextID string
		for _, e := range s.seq.Resequence(serviceID, date, appts) {
			if e.CheckedIn {
				nextID = e.AppointmentID
				break
			}
		}
		if nextID == "" {
			return model.ErrQueueEmpty
		}
		i := slices.IndexFunc(appts, func(a model.Appointment) bool { return a.ID == nextID })
		out, entries, err = s.applyLocked(ctx, tx, appts, i, lifecycle.ActionCallNext, "")
		return err
	})
	if err != nil {
		return model.Appointment{}, err
	}
	s.afterTransition(ctx, out, lifecycle.ActionCallNext, entries)
	return out, nil
}

// applyLocked moves appts[i] through action, resequences its service-day and stages
// every changed row plus events on tx.
func (s *Service) applyLocked(ctx context.Context, tx Tx, appts []model.Appointment, i int, action lifecycle.Action, reason string) (model.Appointment, []model.QueueEntry, error) {
	now := s.now().UTC()
	from := appts[i].Status
	if err := lifecycle.Apply(&appts[i], action, now); err != nil {
		return model.Appointment{}, nil, err
	}
	if appts[i].Status == model.StatusCancelled {
		appts[i].CancelReason = strings.TrimSpace(reason)
	}

	target := appts[i]
	entries, changed := s.seq.Apply(target.ServiceID, target.Date, appts)
	target = appts[i]

	if err := tx.UpdateAppointment(ctx, target); err != nil {
		return model.Appointment{}, nil, err
	}
	for _, j := range changed {
		if j == i {
			continue
		}
		if err := tx.UpdateAppointment(ctx, appts[j]); err != nil {
			return model.Appointment{}, nil, err
		}
	}

	evt, err := outbox.NewEvent(outbox.AggregateAppointment, target.ID, outbox.TypeAppointmentTransitioned, outbox.AppointmentTransitionedV1{
		AppointmentID: target.ID,
		ProviderID:    target.ProviderID,
		ServiceID:     target.ServiceID,
		Action:        string(action),
		From:          string(from),
		To:            string(target.Status),
		Reason:        target.CancelReason,
		OccurredAt:    now,
	})
	if err != nil {
		return model.Appointment{}, nil, err
	}
	if err := tx.AppendEvent(ctx, evt); err != nil {
		return model.Appointment{}, nil, err
	}
	if len(changed) > 0 {
		key := model.PartitionKey{ProviderID: target.ProviderID, ServiceID: target.ServiceID, Date: target.Date}
		if err := s.appendResequenced(ctx, tx, key, entries, now); err != nil {
			return model.Appointment{}, nil, err
		}
	}
	return target, entries, nil
}

func (s *Service) afterTransition(ctx context.Context, appt model.Appointment, action lifecycle.Action, entries []model.QueueEntry) {
	key := model.PartitionKey{ProviderID: appt.ProviderID, ServiceID: appt.ServiceID, Date: appt.Date}
	s.invalidateCache(ctx, key)
	s.logger.Info("appointment transitioned",
		"appointment_id", appt.ID,
		"provider_id", appt.ProviderID,
		"service_id", appt.ServiceID,
		"date", appt.Date.String(),
		"action", string(action),
		"status", string(appt.Status),
		"waiting", len(entries),
	)
}
