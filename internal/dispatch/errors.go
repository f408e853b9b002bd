package dispatch

import "errors"

// Domain errors for the dispatch package.
var (
	// ErrDeliveryFailed indicates the gateway connect or write failed.
	// The ledger record keeps executed=false; recovery is a later
	// resend check, never an automatic immediate retry.
	ErrDeliveryFailed = errors.New("dispatch: delivery failed")

	// ErrClosed is returned when using a dispatcher after Close.
	ErrClosed = errors.New("dispatch: dispatcher closed")

	// ErrNoParentMode is returned when a cascade cannot resolve the
	// master unit's stored mode.
	ErrNoParentMode = errors.New("dispatch: master mode unavailable")
)
