package model

import "time"

// DayHours is the raw operating configuration for one weekday. Times are HH:MM strings
// and are validated when the calendar resolves them.
type DayHours struct {
	Open   string  `json:"open"`
	Close  string  `json:"close"`
	IsOpen bool    `json:"is_open"`
	Breaks []Break `json:"breaks,omitempty"`
}

type Break struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WorkingHours is keyed by English weekday name ("Monday" ... "Sunday").
type WorkingHours map[string]DayHours

type ProviderSettings struct {
	AllowOnlineBooking bool `json:"allow_online_booking"`
	AllowPhoneBooking  bool `json:"allow_phone_booking"`
	AllowWalkIn        bool `json:"allow_walk_in"`
	AutoConfirm        bool `json:"auto_confirm"`
}

type Provider struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Timezone     string           `json:"timezone"`
	WorkingHours WorkingHours     `json:"working_hours"`
	Holidays     []Date           `json:"holidays,omitempty"`
	Settings     ProviderSettings `json:"settings"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Location resolves the provider's time zone; an empty zone means UTC.
func (p Provider) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, &ConfigError{Field: "timezone", Value: p.Timezone, Err: err}
	}
	return loc, nil
}

type Service struct {
	ID                string     `json:"id"`
	ProviderID        string     `json:"provider_id"`
	Name              string     `json:"name"`
	DurationMinutes   int        `json:"duration_minutes"`
	AllowedPriorities []Priority `json:"allowed_priorities,omitempty"`
	DefaultPriority   Priority   `json:"default_priority,omitempty"`
	MaxAdvanceDays    int        `json:"max_advance_days"`
	AllowWalkIn       bool       `json:"allow_walk_in"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Eligible reports whether p may be requested for this service. An empty allow-list
// admits every priority.
func (s Service) Eligible(p Priority) bool {
	if len(s.AllowedPriorities) == 0 {
		return true
	}
	for _, allowed := range s.AllowedPriorities {
		if allowed == p {
			return true
		}
	}
	return false
}

func (s Service) Validate() error {
	if s.ProviderID == "" {
		return &ConfigError{Field: "provider_id", Value: s.ProviderID}
	}
	if s.DurationMinutes <= 0 || s.DurationMinutes > 24*60 {
		return &ConfigError{Field: "duration_minutes", Value: s.DurationMinutes}
	}
	if s.MaxAdvanceDays < 0 {
		return &ConfigError{Field: "max_advance_days", Value: s.MaxAdvanceDays}
	}
	for _, p := range s.AllowedPriorities {
		if _, err := ParsePriority(string(p)); err != nil {
			return &ConfigError{Field: "allowed_priorities", Value: p}
		}
	}
	if s.DefaultPriority != "" {
		if _, err := ParsePriority(string(s.DefaultPriority)); err != nil {
			return &ConfigError{Field: "default_priority", Value: s.DefaultPriority}
		}
	}
	return nil
}
