// Package calendar resolves a provider's working hours for a calendar day.
package calendar

import (
	"errors"
	"time"

	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/model"
)

// Interval is a half-open time-of-day range [Start, End).
type Interval struct {
	Start model.Clock
	End   model.Clock
}

func (i Interval) Contains(c model.Clock) bool {
	return c >= i.Start && c < i.End
}

// Window is the resolved operating window of one open day.
type Window struct {
	Open   model.Clock
	Close  model.Clock
	Breaks []Interval
}

// InBreak reports whether c falls inside one of the window's breaks.
func (w Window) InBreak(c model.Clock) bool {
	for _, b := range w.Breaks {
		if b.Contains(c) {
			return true
		}
	}
	return false
}

// OverlapsBreak reports whether [start, start+minutes) intersects a break.
func (w Window) OverlapsBreak(start model.Clock, minutes int) bool {
	end := start.Add(minutes)
	for _, b := range w.Breaks {
		if start < b.End && b.Start < end {
			return true
		}
	}
	return false
}

// Fits reports whether a booking of the given length starting at start ends by close.
func (w Window) Fits(start model.Clock, minutes int) bool {
	return start >= w.Open && start.Add(minutes) <= w.Close
}

// IsOpen reports whether the provider operates on date.
func IsOpen(date model.Date, hours model.WorkingHours) (bool, error) {
	w, err := GetWindow(date, hours)
	if err != nil {
		return false, err
	}
	return w != nil, nil
}

// GetWindow returns the operating window for date, or nil when the weekday is absent
// from hours or marked closed. Malformed times fail with model.ErrInvalidConfiguration.
func GetWindow(date model.Date, hours model.WorkingHours) (*Window, error) {
	day, ok := hours[date.Weekday().String()]
	if !ok || !day.IsOpen {
		return nil, nil
	}
	return resolve(date.Weekday(), day)
}

// IsHoliday is the provider's date-exclusion check, applied before GetWindow.
func IsHoliday(date model.Date, holidays []model.Date) bool {
	for _, h := range holidays {
		if h == date {
			return true
		}
	}
	return false
}

// Validate checks every configured day, including closed ones, so that bad data is
// rejected when it is saved rather than when someone tries to book.
func Validate(hours model.WorkingHours) error {
	for name, day := range hours {
		wd, ok := weekdayByName[name]
		if !ok {
			return &model.ConfigError{Field: "working_hours", Value: name, Err: errors.New("unknown weekday")}
		}
		if !day.IsOpen && day.Open == "" && day.Close == "" {
			continue
		}
		if _, err := resolve(wd, day); err != nil {
			return err
		}
	}
	return nil
}

func resolve(wd time.Weekday, day model.DayHours) (*Window, error) {
	field := wd.String()
	open, err := model.ParseClock(day.Open)
	if err != nil {
		return nil, &model.ConfigError{Field: field + ".open", Value: day.Open, Err: err}
	}
	closing, err := model.ParseClock(day.Close)
	if err != nil {
		return nil, &model.ConfigError{Field: field + ".close", Value: day.Close, Err: err}
	}
	if closing <= open {
		return nil, &model.ConfigError{Field: field, Value: day.Open + "-" + day.Close, Err: errors.New("close must be after open")}
	}

	w := &Window{Open: open, Close: closing}
	for _, b := range day.Breaks {
		start, err := model.ParseClock(b.Start)
		if err != nil {
			return nil, &model.ConfigError{Field: field + ".breaks.start", Value: b.Start, Err: err}
		}
		end, err := model.ParseClock(b.End)
		if err != nil {
			return nil, &model.ConfigError{Field: field + ".breaks.end", Value: b.End, Err: err}
		}
		if end <= start || start < open || end > closing {
			return nil, &model.ConfigError{Field: field + ".breaks", Value: b.Start + "-" + b.End, Err: errors.New("break must lie inside opening hours")}
		}
		w.Breaks = append(w.Breaks, Interval{Start: start, End: end})
	}
	return w, nil
}

var weekdayByName = map[string]time.Weekday{
	"Sunday":    time.Sunday,
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
}
