package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBookingMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveBooking("booked")
	m.ObserveBooking("booked")
	m.ObserveBooking("slot_unavailable")
	m.ObserveTransition("check_in", "ok")
	m.ObserveQueueWait(30)
	m.AddSlotsServed(4)
	m.AddSlotsServed(0)

	if got := testutil.ToFloat64(m.bookingsTotal.WithLabelValues("booked")); got != 2 {
		t.Fatalf("expected 2 booked, got %v", got)
	}
	if got := testutil.ToFloat64(m.transitionsTotal.WithLabelValues("check_in", "ok")); got != 1 {
		t.Fatalf("expected 1 transition, got %v", got)
	}
	if got := testutil.ToFloat64(m.slotsServed); got != 4 {
		t.Fatalf("expected 4 slots served, got %v", got)
	}
	if n := testutil.CollectAndCount(m.queueWait); n != 1 {
		t.Fatalf("expected one histogram series, got %d", n)
	}
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveBooking("booked")
	m.ObserveTransition("cancel", "invalid_transition")
	m.ObserveQueueWait(5)
	m.AddSlotsServed(3)
}
