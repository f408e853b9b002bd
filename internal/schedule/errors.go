package schedule

import "errors"

// Domain errors for the schedule package.
var (
	// ErrInvalidDay is returned when a day-of-week is outside 0..6.
	ErrInvalidDay = errors.New("schedule: invalid day of week")

	// ErrInvalidTime is returned when an hour or minute is out of range.
	ErrInvalidTime = errors.New("schedule: invalid time of day")

	// ErrNoActiveWindow is returned when no window covers the queried
	// day and clock time.
	ErrNoActiveWindow = errors.New("schedule: no active window")
)
