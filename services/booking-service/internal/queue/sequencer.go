// Package queue orders the waiting appointments of one provider, service and day.
package queue

import (
	"cmp"
	"slices"

	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/model"
)

type Config struct {
	// BufferMinutes is added to the wait estimate for every entry ahead.
	BufferMinutes int
}

// Sequencer is stateless apart from its configuration and safe for concurrent use.
type Sequencer struct {
	buffer int
}

func NewSequencer(cfg Config) *Sequencer {
	if cfg.BufferMinutes < 0 {
		cfg.BufferMinutes = 0
	}
	return &Sequencer{buffer: cfg.BufferMinutes}
}

// Placement is where an admitted appointment landed.
type Placement struct {
	Position             int
	EstimatedWaitMinutes int
}

// Resequence returns the waiting appointments of (serviceID, date) as queue entries in
// service order with dense 1-based positions. appts may hold any mix of providers,
// services, days and states; only waiting members of the partition are ranked.
func (s *Sequencer) Resequence(serviceID string, date model.Date, appts []model.Appointment) []model.QueueEntry {
	waiting := make([]model.Appointment, 0, len(appts))
	for _, a := range appts {
		if a.ServiceID == serviceID && a.Date == date && a.Status.Waiting() {
			waiting = append(waiting, a)
		}
	}
	slices.SortStableFunc(waiting, compare)

	entries := make([]model.QueueEntry, 0, len(waiting))
	wait := 0
	for i, a := range waiting {
		entries = append(entries, model.QueueEntry{
			AppointmentID:        a.ID,
			ProviderID:           a.ProviderID,
			ServiceID:            a.ServiceID,
			Date:                 a.Date,
			StartTime:            a.StartTime,
			DurationMinutes:      a.DurationMinutes,
			Priority:             a.Priority,
			Position:             i + 1,
			EstimatedWaitMinutes: wait,
			Status:               model.QueueWaiting,
			CheckedIn:            a.Status == model.StatusConfirmed,
		})
		wait += a.DurationMinutes + s.buffer
	}
	return entries
}

// Admit places appt among the partition's current members and returns its position
// and wait estimate. appt is added to the ranking if it is not already in partition.
func (s *Sequencer) Admit(partition []model.Appointment, appt model.Appointment) (Placement, bool) {
	members := partition
	if !slices.ContainsFunc(partition, func(a model.Appointment) bool { return a.ID == appt.ID }) {
		members = append(slices.Clip(partition), appt)
	}
	for _, e := range s.Resequence(appt.ServiceID, appt.Date, members) {
		if e.AppointmentID == appt.ID {
			return Placement{Position: e.Position, EstimatedWaitMinutes: e.EstimatedWaitMinutes}, true
		}
	}
	return Placement{}, false
}

// Apply resequences the partition and writes positions and wait estimates back into
// appts in place. Members of the partition that are no longer waiting have both
// fields cleared. It returns the new queue and the indexes of appts whose queue
// fields changed, for the caller to persist.
func (s *Sequencer) Apply(serviceID string, date model.Date, appts []model.Appointment) ([]model.QueueEntry, []int) {
	entries := s.Resequence(serviceID, date, appts)
	byID := make(map[string]model.QueueEntry, len(entries))
	for _, e := range entries {
		byID[e.AppointmentID] = e
	}

	var changed []int
	for i := range appts {
		a := &appts[i]
		if a.ServiceID != serviceID || a.Date != date {
			continue
		}
		var pos, wait *int
		if e, ok := byID[a.ID]; ok {
			p, w := e.Position, e.EstimatedWaitMinutes
			pos, wait = &p, &w
		}
		if equalPtr(a.QueuePosition, pos) && equalPtr(a.EstimatedWaitMinutes, wait) {
			continue
		}
		a.QueuePosition = pos
		a.EstimatedWaitMinutes = wait
		changed = append(changed, i)
	}
	return entries, changed
}

// compare orders by priority rank, then scheduled start, then creation order.
func compare(a, b model.Appointment) int {
	if c := cmp.Compare(a.Priority.Rank(), b.Priority.Rank()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.StartTime, b.StartTime); c != 0 {
		return c
	}
	return model.CompareCreation(a, b)
}

func equalPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
