package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/outbox"
)

func memAppt(id string, start model.Clock) model.Appointment {
	return model.Appointment{
		ID:              id,
		ProviderID:      "p-1",
		ServiceID:       "s-1",
		Date:            testDay,
		StartTime:       start,
		DurationMinutes: 30,
		Status:          model.StatusScheduled,
		CreatedAt:       time.Now(),
	}
}

func TestMemory_WritesCommitTogether(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.InPartition(ctx, "p-1", testDay, func(ctx context.Context, tx booking.Tx) error {
		if err := tx.CreateAppointment(ctx, memAppt("a-1", 540)); err != nil {
			return err
		}
		got, _ := tx.LoadAppointments(ctx, "p-1", testDay)
		if len(got) != 1 {
			t.Fatalf("expected the tx to see its own write, got %d", len(got))
		}
		return tx.AppendEvent(ctx, outbox.Event{EventType: outbox.TypeAppointmentBooked})
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := m.LoadAppointment(ctx, "a-1"); err != nil {
		t.Fatalf("expected committed appointment: %v", err)
	}
	if len(m.Events()) != 1 {
		t.Fatalf("expected 1 event, got %d", len(m.Events()))
	}
}

func TestMemory_FailedPartitionDiscardsWrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	boom := errors.New("boom")

	err := m.InPartition(ctx, "p-1", testDay, func(ctx context.Context, tx booking.Tx) error {
		_ = tx.CreateAppointment(ctx, memAppt("a-1", 540))
		_ = tx.AppendEvent(ctx, outbox.Event{EventType: outbox.TypeAppointmentBooked})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := m.LoadAppointment(ctx, "a-1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected discarded write, got %v", err)
	}
	if len(m.Events()) != 0 {
		t.Fatalf("expected no events")
	}
}

func TestMemory_SameStartIsConflictUnlessCancelled(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	create := func(a model.Appointment) error {
		return m.InPartition(ctx, "p-1", testDay, func(ctx context.Context, tx booking.Tx) error {
			return tx.CreateAppointment(ctx, a)
		})
	}
	if err := create(memAppt("a-1", 540)); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := create(memAppt("a-2", 540)); !errors.Is(err, model.ErrPartitionConflict) {
		t.Fatalf("expected ErrPartitionConflict, got %v", err)
	}

	err := m.InPartition(ctx, "p-1", testDay, func(ctx context.Context, tx booking.Tx) error {
		a, _ := m.LoadAppointment(ctx, "a-1")
		a.Status = model.StatusCancelled
		return tx.UpdateAppointment(ctx, a)
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := create(memAppt("a-3", 540)); err != nil {
		t.Fatalf("expected cancelled slot to be reusable: %v", err)
	}
}

func TestMemory_PartitionSerialisesWriters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		inside int
		peak   int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.InPartition(ctx, "p-1", testDay, func(ctx context.Context, tx booking.Tx) error {
				mu.Lock()
				inside++
				if inside > peak {
					peak = inside
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if peak != 1 {
		t.Fatalf("expected one writer at a time, saw %d", peak)
	}
}

func TestMemory_Catalog(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.SaveService(ctx, model.Service{ID: "s-1", ProviderID: "nobody"}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected unknown provider to fail, got %v", err)
	}
	if err := m.SaveProvider(ctx, model.Provider{ID: "p-1", Name: "Clinic"}); err != nil {
		t.Fatalf("save provider: %v", err)
	}
	if err := m.SaveService(ctx, model.Service{ID: "s-1", ProviderID: "p-1", DurationMinutes: 30}); err != nil {
		t.Fatalf("save service: %v", err)
	}
	list, err := m.ListServices(ctx, "p-1")
	if err != nil || len(list) != 1 || list[0].ID != "s-1" {
		t.Fatalf("unexpected services %v %v", list, err)
	}
}

func TestMemory_EqualCreatedAtKeepsInsertionOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	tick := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	// Ids sort opposite to insertion order.
	for i, id := range []string{"zz", "mm", "aa"} {
		a := memAppt(id, model.Clock(9*60+30*i))
		a.CreatedAt = tick
		err := m.InPartition(ctx, "p-1", testDay, func(ctx context.Context, tx booking.Tx) error {
			return tx.CreateAppointment(ctx, a)
		})
		if err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	got, err := m.LoadAppointments(ctx, "p-1", testDay)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var order []string
	for _, a := range got {
		order = append(order, a.ID)
	}
	if len(order) != 3 || order[0] != "zz" || order[1] != "mm" || order[2] != "aa" {
		t.Fatalf("expected insertion order, got %v", order)
	}

	// Updates keep the original sequence.
	updated := got[0]
	updated.Status = model.StatusConfirmed
	updated.Seq = 0
	err = m.InPartition(ctx, "p-1", testDay, func(ctx context.Context, tx booking.Tx) error {
		return tx.UpdateAppointment(ctx, updated)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	a, _ := m.LoadAppointment(ctx, "zz")
	if a.Seq != got[0].Seq {
		t.Fatalf("update changed seq from %d to %d", got[0].Seq, a.Seq)
	}
}
