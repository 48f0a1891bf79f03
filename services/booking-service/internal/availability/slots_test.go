package availability

import (
	"slices"
	"testing"

	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/model"
)

var day = model.Date{Year: 2026, Month: 1, Day: 28}

func clocks(raw ...string) []model.Clock {
	out := make([]model.Clock, 0, len(raw))
	for _, r := range raw {
		c, err := model.ParseClock(r)
		if err != nil {
			panic(err)
		}
		out = append(out, c)
	}
	return out
}

func booked(start string, minutes int, status model.Status) model.Appointment {
	c := clocks(start)[0]
	return model.Appointment{ProviderID: "p1", Date: day, StartTime: c, DurationMinutes: minutes, Status: status}
}

func TestGenerateSlots_Basic(t *testing.T) {
	svc := model.Service{ProviderID: "p1", DurationMinutes: 30}
	win := &calendar.Window{Open: 9 * 60, Close: 10 * 60}

	got := slices.Collect(GenerateSlots(svc, day, win, nil, Options{}))
	if !slices.Equal(got, clocks("09:00", "09:30")) {
		t.Fatalf("expected [09:00 09:30], got %v", got)
	}

	existing := []model.Appointment{booked("09:00", 30, model.StatusScheduled)}
	got = slices.Collect(GenerateSlots(svc, day, win, existing, Options{}))
	if !slices.Equal(got, clocks("09:30")) {
		t.Fatalf("expected [09:30], got %v", got)
	}

	existing[0].Status = model.StatusCancelled
	got = slices.Collect(GenerateSlots(svc, day, win, existing, Options{}))
	if !slices.Equal(got, clocks("09:00", "09:30")) {
		t.Fatalf("cancelled booking should free its slot, got %v", got)
	}
}

func TestGenerateSlots_IntervalVersusExact(t *testing.T) {
	svc := model.Service{ProviderID: "p1", DurationMinutes: 15}
	win := &calendar.Window{Open: 9 * 60, Close: 10 * 60}
	// A 45 minute booking at 09:15 covers 09:15-10:00.
	existing := []model.Appointment{booked("09:15", 45, model.StatusConfirmed)}

	interval := slices.Collect(GenerateSlots(svc, day, win, existing, Options{GranularityMinutes: 15}))
	if !slices.Equal(interval, clocks("09:00")) {
		t.Fatalf("interval mode: expected [09:00], got %v", interval)
	}

	exact := slices.Collect(GenerateSlots(svc, day, win, existing, Options{GranularityMinutes: 15, Mode: ModeExact}))
	if !slices.Equal(exact, clocks("09:00", "09:30", "09:45")) {
		t.Fatalf("exact mode: expected [09:00 09:30 09:45], got %v", exact)
	}
}

func TestGenerateSlots_IgnoresOtherProvidersAndDays(t *testing.T) {
	svc := model.Service{ProviderID: "p1", DurationMinutes: 30}
	win := &calendar.Window{Open: 9 * 60, Close: 10 * 60}
	other := booked("09:00", 30, model.StatusScheduled)
	other.ProviderID = "p2"
	otherDay := booked("09:30", 30, model.StatusScheduled)
	otherDay.Date = day.AddDays(1)

	got := slices.Collect(GenerateSlots(svc, day, win, []model.Appointment{other, otherDay}, Options{}))
	if !slices.Equal(got, clocks("09:00", "09:30")) {
		t.Fatalf("expected all slots free, got %v", got)
	}
}

func TestGenerateSlots_ClosedBreaksAndNotBefore(t *testing.T) {
	svc := model.Service{ProviderID: "p1", DurationMinutes: 30}
	if got := slices.Collect(GenerateSlots(svc, day, nil, nil, Options{})); len(got) != 0 {
		t.Fatalf("closed day should yield nothing, got %v", got)
	}

	win := &calendar.Window{
		Open:   9 * 60,
		Close:  12 * 60,
		Breaks: []calendar.Interval{{Start: 10 * 60, End: 11 * 60}},
	}
	got := slices.Collect(GenerateSlots(svc, day, win, nil, Options{NotBefore: 9*60 + 1}))
	if !slices.Equal(got, clocks("09:30", "11:00", "11:30")) {
		t.Fatalf("expected [09:30 11:00 11:30], got %v", got)
	}
}

func TestGenerateSlots_IntervalModeKeepsBreaksClear(t *testing.T) {
	svc := model.Service{ProviderID: "p1", DurationMinutes: 45}
	win := &calendar.Window{
		Open:   9 * 60,
		Close:  12 * 60,
		Breaks: []calendar.Interval{{Start: 10 * 60, End: 10*60 + 30}},
	}

	// 09:30 would run 09:30-10:15 into the break.
	interval := slices.Collect(GenerateSlots(svc, day, win, nil, Options{}))
	if !slices.Equal(interval, clocks("09:00", "10:30", "11:00", "11:30")) {
		t.Fatalf("interval mode: expected [09:00 10:30 11:00 11:30], got %v", interval)
	}

	exact := slices.Collect(GenerateSlots(svc, day, win, nil, Options{Mode: ModeExact}))
	if !slices.Equal(exact, clocks("09:00", "09:30", "10:30", "11:00", "11:30")) {
		t.Fatalf("exact mode: expected [09:00 09:30 10:30 11:00 11:30], got %v", exact)
	}
}

func TestGenerateSlots_DoesNotClipAtClose(t *testing.T) {
	svc := model.Service{ProviderID: "p1", DurationMinutes: 45}
	win := &calendar.Window{Open: 9 * 60, Close: 10 * 60}
	got := slices.Collect(GenerateSlots(svc, day, win, nil, Options{}))
	if !slices.Equal(got, clocks("09:00", "09:30")) {
		t.Fatalf("expected [09:00 09:30], got %v", got)
	}
}

func TestGenerateSlots_Restartable(t *testing.T) {
	svc := model.Service{ProviderID: "p1", DurationMinutes: 30}
	win := &calendar.Window{Open: 9 * 60, Close: 11 * 60}
	seq := GenerateSlots(svc, day, win, nil, Options{})

	for range seq {
		break
	}
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if !slices.Equal(first, second) || len(first) != 4 {
		t.Fatalf("expected identical 4-slot runs, got %v and %v", first, second)
	}
	if !Contains(seq, 10*60) || Contains(seq, 10*60+15) {
		t.Fatal("Contains mismatch")
	}
}
