package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/outbox"
)

type dayKey struct {
	providerID string
	date       model.Date
}

// Memory is an in-process Store for local runs and tests. It enforces the same
// uniqueness rule as the appointments table.
type Memory struct {
	mu        sync.RWMutex
	providers map[string]model.Provider
	services  map[string]model.Service
	appts     map[string]model.Appointment
	idem      map[string]string
	events    []outbox.Event
	seq       int64

	locksMu sync.Mutex
	locks   map[dayKey]*sync.Mutex
}

func NewMemory() *Memory {
	return &Memory{
		providers: map[string]model.Provider{},
		services:  map[string]model.Service{},
		appts:     map[string]model.Appointment{},
		idem:      map[string]string{},
		locks:     map[dayKey]*sync.Mutex{},
	}
}

func (m *Memory) SaveProvider(_ context.Context, p model.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.providers[p.ID]; ok {
		p.CreatedAt = prev.CreatedAt
	}
	m.providers[p.ID] = p
	return nil
}

func (m *Memory) SaveService(_ context.Context, s model.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[s.ProviderID]; !ok {
		return fmt.Errorf("%w: provider %s", model.ErrNotFound, s.ProviderID)
	}
	m.services[s.ID] = s
	return nil
}

func (m *Memory) ListServices(_ context.Context, providerID string) ([]model.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Service
	for _, s := range m.services {
		if s.ProviderID == providerID {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b model.Service) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *Memory) LoadProvider(_ context.Context, id string) (model.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[id]
	if !ok {
		return model.Provider{}, fmt.Errorf("%w: provider %s", model.ErrNotFound, id)
	}
	return p, nil
}

func (m *Memory) LoadService(_ context.Context, id string) (model.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.services[id]
	if !ok {
		return model.Service{}, fmt.Errorf("%w: service %s", model.ErrNotFound, id)
	}
	return s, nil
}

func (m *Memory) LoadAppointment(_ context.Context, id string) (model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("%w: appointment %s", model.ErrNotFound, id)
	}
	return a, nil
}

func (m *Memory) LoadAppointments(_ context.Context, providerID string, date model.Date) ([]model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.day(providerID, date), nil
}

// Events returns every event committed so far.
func (m *Memory) Events() []outbox.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.events)
}

// day lists one provider's appointments for date in creation order. Callers hold mu.
func (m *Memory) day(providerID string, date model.Date) []model.Appointment {
	var out []model.Appointment
	for _, a := range m.appts {
		if a.ProviderID == providerID && a.Date == date {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, model.CompareCreation)
	return out
}

func (m *Memory) lockFor(k dayKey) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[k]
	if !ok {
		l = &sync.Mutex{}
		m.locks[k] = l
	}
	return l
}

func (m *Memory) InPartition(ctx context.Context, providerID string, date model.Date, fn func(ctx context.Context, tx booking.Tx) error) error {
	l := m.lockFor(dayKey{providerID: providerID, date: date})
	l.Lock()
	defer l.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{m: m, writes: map[string]model.Appointment{}, idem: map[string]string{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

type memoryTx struct {
	m      *Memory
	order  []string
	writes map[string]model.Appointment
	idem   map[string]string
	events []outbox.Event
}

func (tx *memoryTx) LoadAppointments(_ context.Context, providerID string, date model.Date) ([]model.Appointment, error) {
	tx.m.mu.RLock()
	out := tx.m.day(providerID, date)
	tx.m.mu.RUnlock()

	for i, a := range out {
		if w, ok := tx.writes[a.ID]; ok {
			out[i] = w
		}
	}
	for _, id := range tx.order {
		w := tx.writes[id]
		if w.ProviderID != providerID || w.Date != date {
			continue
		}
		if !slices.ContainsFunc(out, func(a model.Appointment) bool { return a.ID == id }) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (tx *memoryTx) CreateAppointment(ctx context.Context, appt model.Appointment) error {
	current, err := tx.LoadAppointments(ctx, appt.ProviderID, appt.Date)
	if err != nil {
		return err
	}
	for _, a := range current {
		if a.ID == appt.ID {
			return fmt.Errorf("%w: appointment %s exists", model.ErrPartitionConflict, appt.ID)
		}
		if a.Status != model.StatusCancelled && a.StartTime == appt.StartTime {
			return fmt.Errorf("%w: %s %s already taken", model.ErrPartitionConflict, appt.Date, appt.StartTime)
		}
	}
	tx.order = append(tx.order, appt.ID)
	tx.writes[appt.ID] = appt
	return nil
}

func (tx *memoryTx) UpdateAppointment(_ context.Context, appt model.Appointment) error {
	if _, ok := tx.writes[appt.ID]; !ok {
		tx.m.mu.RLock()
		_, ok = tx.m.appts[appt.ID]
		tx.m.mu.RUnlock()
		if !ok {
			return fmt.Errorf("%w: appointment %s", model.ErrNotFound, appt.ID)
		}
	}
	tx.writes[appt.ID] = appt
	return nil
}

func (tx *memoryTx) AppendEvent(_ context.Context, evt outbox.Event) error {
	tx.events = append(tx.events, evt)
	return nil
}

func (tx *memoryTx) FindIdempotencyKey(_ context.Context, providerID, key string) (string, bool, error) {
	k := providerID + "|" + key
	if id, ok := tx.idem[k]; ok {
		return id, true, nil
	}
	tx.m.mu.RLock()
	defer tx.m.mu.RUnlock()
	id, ok := tx.m.idem[k]
	return id, ok, nil
}

func (tx *memoryTx) SaveIdempotencyKey(_ context.Context, providerID, key, appointmentID string) error {
	tx.idem[providerID+"|"+key] = appointmentID
	return nil
}

func (tx *memoryTx) commit() error {
	tx.m.mu.Lock()
	defer tx.m.mu.Unlock()
	for _, id := range tx.order {
		a := tx.writes[id]
		tx.m.seq++
		a.Seq = tx.m.seq
		tx.writes[id] = a
	}
	for id, a := range tx.writes {
		if prev, ok := tx.m.appts[id]; ok {
			a.Seq = prev.Seq
		}
		tx.m.appts[id] = a
	}
	for k, id := range tx.idem {
		tx.m.idem[k] = id
	}
	tx.m.events = append(tx.m.events, tx.events...)
	return nil
}

var _ booking.Store = (*Memory)(nil)
