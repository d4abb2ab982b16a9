package sandbox

import "errors"

// Errors for sandbox state operations.
var (
	// ErrClosed is returned when operating on a closed state.
	ErrClosed = errors.New("sandbox state is closed")

	// ErrAlreadyInstantiated is returned when an identity already has a
	// live state in the runtime.
	ErrAlreadyInstantiated = errors.New("sandbox already instantiated")

	// ErrEmptyIdentity is returned when an identity is required but empty.
	ErrEmptyIdentity = errors.New("identity is empty")
)
