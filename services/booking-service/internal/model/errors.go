package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfiguration  = errors.New("invalid configuration")
	ErrSlotUnavailable       = errors.New("slot unavailable")
	ErrDurationExceedsWindow = errors.New("duration exceeds working window")
	ErrInvalidTransition     = errors.New("invalid transition")
	ErrPartitionConflict     = errors.New("partition conflict")
	ErrNotFound              = errors.New("not found")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrQueueEmpty            = errors.New("no checked-in appointment waiting")
)

// ConfigError describes malformed provider or service configuration.
type ConfigError struct {
	Field string
	Value any
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration: %s=%v: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid configuration: %s=%v", e.Field, e.Value)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// TransitionError names the current state, the attempted state and the action
// that asked for it. To is empty when the action is unknown.
type TransitionError struct {
	From   Status
	To     Status
	Action string
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("invalid transition: unknown action %q from %s", e.Action, e.From)
	}
	return fmt.Sprintf("invalid transition: %s -> %s (%s)", e.From, e.To, e.Action)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
