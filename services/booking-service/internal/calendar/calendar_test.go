package calendar

import (
	"errors"
	"testing"

	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/model"
)

func weekHours() model.WorkingHours {
	return model.WorkingHours{
		"Monday":   {Open: "08:00", Close: "17:00", IsOpen: true, Breaks: []model.Break{{Start: "12:00", End: "13:00"}}},
		"Saturday": {Open: "09:00", Close: "13:00", IsOpen: true},
		"Sunday":   {Open: "09:00", Close: "13:00", IsOpen: false},
	}
}

func TestGetWindow_OpenDay(t *testing.T) {
	// 2026-01-26 is a Monday.
	date := model.Date{Year: 2026, Month: 1, Day: 26}
	w, err := GetWindow(date, weekHours())
	if err != nil {
		t.Fatalf("GetWindow failed: %v", err)
	}
	if w == nil {
		t.Fatal("expected an open window")
	}
	if w.Open.String() != "08:00" || w.Close.String() != "17:00" {
		t.Fatalf("unexpected window %s-%s", w.Open, w.Close)
	}
	if !w.InBreak(12*60+30) || w.InBreak(13*60) {
		t.Fatal("expected 12:30 inside break and 13:00 outside")
	}
	if !w.Fits(16*60+30, 30) || w.Fits(16*60+45, 30) {
		t.Fatal("expected 16:30+30m to fit and 16:45+30m to overflow")
	}
}

func TestGetWindow_ClosedAndMissingDays(t *testing.T) {
	sunday := model.Date{Year: 2026, Month: 1, Day: 25}
	tuesday := model.Date{Year: 2026, Month: 1, Day: 27}
	for _, d := range []model.Date{sunday, tuesday} {
		open, err := IsOpen(d, weekHours())
		if err != nil {
			t.Fatalf("IsOpen(%s) failed: %v", d, err)
		}
		if open {
			t.Fatalf("expected %s (%s) closed", d, d.Weekday())
		}
	}
}

func TestGetWindow_MalformedTimes(t *testing.T) {
	monday := model.Date{Year: 2026, Month: 1, Day: 26}
	cases := []model.DayHours{
		{Open: "8am", Close: "17:00", IsOpen: true},
		{Open: "08:00", Close: "", IsOpen: true},
		{Open: "17:00", Close: "08:00", IsOpen: true},
		{Open: "08:00", Close: "17:00", IsOpen: true, Breaks: []model.Break{{Start: "18:00", End: "19:00"}}},
	}
	for _, day := range cases {
		_, err := GetWindow(monday, model.WorkingHours{"Monday": day})
		if !errors.Is(err, model.ErrInvalidConfiguration) {
			t.Fatalf("expected ErrInvalidConfiguration for %+v, got %v", day, err)
		}
	}
}

func TestWindow_OverlapsBreak(t *testing.T) {
	w := Window{Open: 9 * 60, Close: 17 * 60, Breaks: []Interval{{Start: 12 * 60, End: 13 * 60}}}
	cases := []struct {
		start   model.Clock
		minutes int
		want    bool
	}{
		{11 * 60, 60, false},
		{11*60 + 30, 45, true},
		{12*60 + 15, 15, true},
		{13 * 60, 30, false},
		{11 * 60, 180, true},
	}
	for _, c := range cases {
		if got := w.OverlapsBreak(c.start, c.minutes); got != c.want {
			t.Fatalf("OverlapsBreak(%s, %d): expected %v, got %v", c.start, c.minutes, c.want, got)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(weekHours()); err != nil {
		t.Fatalf("expected valid hours, got %v", err)
	}
	if err := Validate(model.WorkingHours{"Funday": {Open: "08:00", Close: "09:00", IsOpen: true}}); !errors.Is(err, model.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration for unknown weekday, got %v", err)
	}
	if err := Validate(model.WorkingHours{"Monday": {IsOpen: false}}); err != nil {
		t.Fatalf("closed day without times should be valid, got %v", err)
	}
}

func TestIsHoliday(t *testing.T) {
	xmas := model.Date{Year: 2026, Month: 12, Day: 25}
	if !IsHoliday(xmas, []model.Date{xmas}) {
		t.Fatal("expected holiday")
	}
	if IsHoliday(xmas.AddDays(1), []model.Date{xmas}) {
		t.Fatal("expected regular day")
	}
}
