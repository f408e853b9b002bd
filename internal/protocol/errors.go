package protocol

import "errors"

// Domain errors for the protocol package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, protocol.ErrUnknownRegister) {
//	    // attribute name is not part of this protocol generation
//	}
var (
	// ErrUnknownRegister is returned when an attribute name has no
	// individual register code in the catalog.
	ErrUnknownRegister = errors.New("protocol: unknown register")

	// ErrUnknownOffset is returned when an attribute name has no
	// settings-block byte offset in the catalog.
	ErrUnknownOffset = errors.New("protocol: unknown settings offset")

	// ErrInvalidFrame is returned when raw frame data has the wrong
	// length or cannot be decoded from its hex form.
	ErrInvalidFrame = errors.New("protocol: invalid frame")
)
