package model

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no-show"
)

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Waiting reports whether an appointment in state s still waits for service.
// Check-in does not leave the waiting set.
func (s Status) Waiting() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.TrimSpace(raw)); s {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, raw)
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities for service: lower ranks are served first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

func ParsePriority(raw string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(raw))); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidRequest, raw)
}

type Channel string

const (
	ChannelWeb    Channel = "web"
	ChannelPhone  Channel = "phone"
	ChannelWalkIn Channel = "walk-in"
	ChannelSMS    Channel = "sms"
	ChannelVoice  Channel = "voice"
)

func ParseChannel(raw string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(raw))); c {
	case ChannelWeb, ChannelPhone, ChannelWalkIn, ChannelSMS, ChannelVoice:
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown booking channel %q", ErrInvalidRequest, raw)
}

// Contact identifies who the appointment is for: a registered user, a guest, or both.
type Contact struct {
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Email  string `json:"email,omitempty"`
}

type Appointment struct {
	ID                   string     `json:"id"`
	ProviderID           string     `json:"provider_id"`
	ServiceID            string     `json:"service_id"`
	Contact              Contact    `json:"contact"`
	Date                 Date       `json:"date"`
	StartTime            Clock      `json:"start_time"`
	DurationMinutes      int        `json:"duration_minutes"`
	Status               Status     `json:"status"`
	Channel              Channel    `json:"booking_channel"`
	Priority             Priority   `json:"priority"`
	QueuePosition        *int       `json:"queue_position,omitempty"`
	EstimatedWaitMinutes *int       `json:"estimated_wait_minutes,omitempty"`
	CheckInTime          *time.Time `json:"check_in_time,omitempty"`
	CompletedTime        *time.Time `json:"completed_time,omitempty"`
	Notes                string     `json:"notes,omitempty"`
	CancelReason         string     `json:"cancellation_reason,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`

	// Seq is the store's insertion counter. It orders appointments created
	// within the same clock tick; zero means not yet stored.
	Seq int64 `json:"-"`
}

// CompareCreation orders a and b by creation: CreatedAt, then insertion
// order, then id. An unstored appointment sorts after stored ones with the
// same CreatedAt.
func CompareCreation(a, b Appointment) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.Seq == b.Seq:
	case a.Seq == 0:
		return 1
	case b.Seq == 0:
		return -1
	case a.Seq < b.Seq:
		return -1
	default:
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

func (a Appointment) EndTime() Clock {
	return a.StartTime.Add(a.DurationMinutes)
}

// ConfirmationCode is the short code handed to the person who booked.
func (a Appointment) ConfirmationCode() string {
	id := strings.ReplaceAll(a.ID, "-", "")
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	return "SE" + strings.ToUpper(id)
}
