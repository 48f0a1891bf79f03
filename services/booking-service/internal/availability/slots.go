package availability

import (
	"iter"

	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/model"
)

const DefaultGranularityMinutes = 30

// Mode selects how existing appointments block candidate slots.
type Mode string

const (
	// ModeInterval blocks a candidate whose [start, start+duration) overlaps any booking
	// or any break.
	ModeInterval Mode = "interval"
	// ModeExact blocks a candidate only when a booking starts at the same minute or the
	// candidate itself starts inside a break.
	ModeExact Mode = "exact"
)

func ParseMode(raw string) (Mode, bool) {
	switch Mode(raw) {
	case ModeInterval, ModeExact:
		return Mode(raw), true
	}
	return "", false
}

type Options struct {
	GranularityMinutes int
	Mode               Mode
	// NotBefore drops candidates starting earlier than this time of day (same-day bookings).
	NotBefore model.Clock
}

// GenerateSlots returns the free slot start times for service on date, ascending.
//
// Candidates start at window open and step by the granularity while strictly before
// close. The generator does not check that start+duration fits before close; booking
// validation does that. A nil window (closed day) yields an empty sequence. The
// sequence is lazy and may be ranged over any number of times.
func GenerateSlots(service model.Service, date model.Date, window *calendar.Window, existing []model.Appointment, opts Options) iter.Seq[model.Clock] {
	step := opts.GranularityMinutes
	if step <= 0 {
		step = DefaultGranularityMinutes
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModeInterval
	}
	busy := busyIntervals(service.ProviderID, date, existing)

	return func(yield func(model.Clock) bool) {
		if window == nil || service.DurationMinutes <= 0 {
			return
		}
		for t := window.Open; t < window.Close; t = t.Add(step) {
			if t < opts.NotBefore || window.InBreak(t) {
				continue
			}
			if mode == ModeInterval && window.OverlapsBreak(t, service.DurationMinutes) {
				continue
			}
			if blocked(t, service.DurationMinutes, busy, mode) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// Contains reports whether slots offers c.
func Contains(slots iter.Seq[model.Clock], c model.Clock) bool {
	for s := range slots {
		if s == c {
			return true
		}
		if s > c {
			return false
		}
	}
	return false
}

func busyIntervals(providerID string, date model.Date, existing []model.Appointment) []calendar.Interval {
	busy := make([]calendar.Interval, 0, len(existing))
	for _, a := range existing {
		if a.Status == model.StatusCancelled || a.ProviderID != providerID || a.Date != date {
			continue
		}
		busy = append(busy, calendar.Interval{Start: a.StartTime, End: a.EndTime()})
	}
	return busy
}

func blocked(start model.Clock, duration int, busy []calendar.Interval, mode Mode) bool {
	if mode == ModeExact {
		for _, b := range busy {
			if b.Start == start {
				return true
			}
		}
		return false
	}
	return overlapsAny(start, start.Add(duration), busy)
}

func overlapsAny(start, end model.Clock, busy []calendar.Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start < b.End && b.Start < end {
			return true
		}
	}
	return false
}
