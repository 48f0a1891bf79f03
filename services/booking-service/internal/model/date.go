package model

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Date is a calendar day without a time zone.
type Date = civil.Date

func ParseDate(raw string) (Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("%w: invalid date %q (want YYYY-MM-DD)", ErrInvalidRequest, raw)
	}
	return d, nil
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	return civil.DateOf(t)
}

// Clock is a time of day in minutes since midnight. 24:00 is allowed as an end bound.
type Clock int

const endOfDay Clock = 24 * 60

func ParseClock(raw string) (Clock, error) {
	raw = strings.TrimSpace(raw)
	if raw == "24:00" {
		return endOfDay, nil
	}
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q (want HH:MM)", raw)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

// ClockOf returns the time of day of t truncated to the minute.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

func (c Clock) Minutes() int {
	return int(c)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
