package command

import "errors"

// Domain errors for the command ledger.
var (
	// ErrNotFound is returned when a command ID does not exist.
	ErrNotFound = errors.New("command: not found")
)
