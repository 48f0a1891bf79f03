package outbox

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	AggregateAppointment = "appointment"
	AggregateQueue       = "queue"

	TypeAppointmentBooked       = "booking.appointment.booked.v1"
	TypeAppointmentTransitioned = "booking.appointment.transitioned.v1"
	TypeQueueResequenced        = "booking.queue.resequenced.v1"
)

type AppointmentBookedV1 struct {
	AppointmentID        string    `json:"appointment_id"`
	ProviderID           string    `json:"provider_id"`
	ServiceID            string    `json:"service_id"`
	UserID               string    `json:"user_id,omitempty"`
	GuestName            string    `json:"guest_name,omitempty"`
	GuestPhone           string    `json:"guest_phone,omitempty"`
	GuestEmail           string    `json:"guest_email,omitempty"`
	Date                 string    `json:"date"`
	StartTime            string    `json:"start_time"`
	DurationMinutes      int       `json:"duration_minutes"`
	Channel              string    `json:"booking_channel"`
	Priority             string    `json:"priority"`
	QueuePosition        int       `json:"queue_position"`
	EstimatedWaitMinutes int       `json:"estimated_wait_minutes"`
	ConfirmationCode     string    `json:"confirmation_code"`
	AutoConfirm          bool      `json:"auto_confirm"`
	OccurredAt           time.Time `json:"occurred_at"`
}

type AppointmentTransitionedV1 struct {
	AppointmentID string    `json:"appointment_id"`
	ProviderID    string    `json:"provider_id"`
	ServiceID     string    `json:"service_id"`
	Action        string    `json:"action"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type QueuePositionV1 struct {
	AppointmentID        string `json:"appointment_id"`
	Position             int    `json:"position"`
	EstimatedWaitMinutes int    `json:"estimated_wait_minutes"`
}

type QueueResequencedV1 struct {
	ProviderID string            `json:"provider_id"`
	ServiceID  string            `json:"service_id"`
	Date       string            `json:"date"`
	Entries    []QueuePositionV1 `json:"entries"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// NewEvent marshals payload into an envelope.
func NewEvent(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       b,
	}, nil
}
