package thermostat

import "errors"

// Domain errors for the thermostat package.
var (
	// ErrNotFound is returned when a thermostat ID does not exist.
	ErrNotFound = errors.New("thermostat: not found")

	// ErrExists is returned when creating a thermostat whose ID or MAC
	// address already exists.
	ErrExists = errors.New("thermostat: already exists")

	// ErrInvalidKind is returned when a kind value is not recognised.
	ErrInvalidKind = errors.New("thermostat: invalid kind")

	// ErrNoParent is returned when a slave unit has no master bound.
	ErrNoParent = errors.New("thermostat: slave has no parent")
)
