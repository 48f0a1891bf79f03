package booking

import (
	"context"

	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/outbox"
)

// Store is the persistence the booking core runs against. Reads outside InPartition
// are unlocked snapshots; every write goes through InPartition.
type Store interface {
	LoadProvider(ctx context.Context, id string) (model.Provider, error)
	LoadService(ctx context.Context, id string) (model.Service, error)
	LoadAppointment(ctx context.Context, id string) (model.Appointment, error)
	LoadAppointments(ctx context.Context, providerID string, date model.Date) ([]model.Appointment, error)

	// InPartition runs fn with exclusive write access to one provider's day. fn's
	// writes are committed together when it returns nil and discarded otherwise.
	InPartition(ctx context.Context, providerID string, date model.Date, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the write side of one partition lock.
type Tx interface {
	LoadAppointments(ctx context.Context, providerID string, date model.Date) ([]model.Appointment, error)
	CreateAppointment(ctx context.Context, appt model.Appointment) error
	UpdateAppointment(ctx context.Context, appt model.Appointment) error
	AppendEvent(ctx context.Context, evt outbox.Event) error

	// FindIdempotencyKey returns the appointment a provider-scoped key was used for.
	FindIdempotencyKey(ctx context.Context, providerID, key string) (string, bool, error)
	SaveIdempotencyKey(ctx context.Context, providerID, key, appointmentID string) error
}

// SnapshotCache holds computed queue snapshots. The store stays authoritative:
// readers fill the cache with what they loaded, writers invalidate it after commit.
type SnapshotCache interface {
	Get(ctx context.Context, key model.PartitionKey) ([]model.QueueEntry, bool, error)

	// Version is read before loading from the store and handed back to Fill,
	// which refuses the entries if Invalidate ran in between.
	Version(ctx context.Context, key model.PartitionKey) (int64, error)
	Fill(ctx context.Context, key model.PartitionKey, version int64, entries []model.QueueEntry) (bool, error)
	Invalidate(ctx context.Context, key model.PartitionKey) error
}
