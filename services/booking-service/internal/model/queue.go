package model

type QueueStatus string

const (
	QueueWaiting   QueueStatus = "waiting"
	QueueCalled    QueueStatus = "called"
	QueueInService QueueStatus = "in-service"
	QueueCompleted QueueStatus = "completed"
	QueueNoShow    QueueStatus = "no-show"
)

// QueueStatusOf projects an appointment status onto the queue. Cancelled appointments
// have no queue status.
func QueueStatusOf(s Status) (QueueStatus, bool) {
	switch s {
	case StatusScheduled, StatusConfirmed:
		return QueueWaiting, true
	case StatusInProgress:
		return QueueInService, true
	case StatusCompleted:
		return QueueCompleted, true
	case StatusNoShow:
		return QueueNoShow, true
	}
	return "", false
}

// QueueEntry is the computed queue view of one waiting appointment.
type QueueEntry struct {
	AppointmentID        string      `json:"appointment_id"`
	ProviderID           string      `json:"provider_id"`
	ServiceID            string      `json:"service_id"`
	Date                 Date        `json:"date"`
	StartTime            Clock       `json:"start_time"`
	DurationMinutes      int         `json:"duration_minutes"`
	Priority             Priority    `json:"priority"`
	Position             int         `json:"position"`
	EstimatedWaitMinutes int         `json:"estimated_wait_minutes"`
	Status               QueueStatus `json:"status"`
	CheckedIn            bool        `json:"checked_in"`
}

// PartitionKey scopes queue ordering: one provider, one service, one day.
type PartitionKey struct {
	ProviderID string
	ServiceID  string
	Date       Date
}

func (k PartitionKey) String() string {
	return k.ProviderID + ":" + k.ServiceID + ":" + k.Date.String()
}
