package channel

import "errors"

// Channel errors.
var (
	// ErrInvalidPattern indicates a malformed subscription pattern.
	ErrInvalidPattern = errors.New("invalid path pattern")

	// ErrNilHandler indicates a nil handler was provided.
	ErrNilHandler = errors.New("handler cannot be nil")
)
