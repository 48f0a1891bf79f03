// Package lifecycle is the appointment state machine.
package lifecycle

import (
	"slices"
	"strings"
	"time"

	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/model"
)

type Action string

const (
	ActionCheckIn      Action = "check_in"
	ActionStartService Action = "start_service"
	ActionCallNext     Action = "call_next"
	ActionComplete     Action = "complete"
	ActionCancel       Action = "cancel"
	ActionNoShow       Action = "no_show"
)

type edge struct {
	from []model.Status
	to   model.Status
}

var transitions = map[Action]edge{
	ActionCheckIn:      {from: []model.Status{model.StatusScheduled}, to: model.StatusConfirmed},
	ActionStartService: {from: []model.Status{model.StatusConfirmed}, to: model.StatusInProgress},
	ActionCallNext:     {from: []model.Status{model.StatusConfirmed}, to: model.StatusInProgress},
	ActionComplete:     {from: []model.Status{model.StatusInProgress}, to: model.StatusCompleted},
	ActionCancel:       {from: []model.Status{model.StatusScheduled, model.StatusConfirmed}, to: model.StatusCancelled},
	ActionNoShow:       {from: []model.Status{model.StatusScheduled, model.StatusConfirmed, model.StatusInProgress}, to: model.StatusNoShow},
}

// ParseAction accepts the canonical names plus dashed spellings ("check-in").
func ParseAction(raw string) (Action, bool) {
	a := Action(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_"))
	_, ok := transitions[a]
	return a, ok
}

// Next returns the state action leads to from the given state.
func Next(from model.Status, action Action) (model.Status, error) {
	e, ok := transitions[action]
	if !ok {
		return "", &model.TransitionError{From: from, Action: string(action)}
	}
	if !slices.Contains(e.from, from) {
		return "", &model.TransitionError{From: from, To: e.to, Action: string(action)}
	}
	return e.to, nil
}

// Apply moves appt through action, stamping check-in and completion times and
// refreshing UpdatedAt. appt is left untouched on error.
func Apply(appt *model.Appointment, action Action, now time.Time) error {
	to, err := Next(appt.Status, action)
	if err != nil {
		return err
	}
	switch to {
	case model.StatusConfirmed:
		appt.CheckInTime = &now
	case model.StatusCompleted:
		appt.CompletedTime = &now
	}
	appt.Status = to
	appt.UpdatedAt = now
	return nil
}

// LeavesQueue reports whether reaching status removes an appointment from the waiting set.
func LeavesQueue(to model.Status) bool {
	return !to.Waiting()
}
