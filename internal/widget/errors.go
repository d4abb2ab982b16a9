package widget

import "errors"

// Errors returned by the lifecycle manager and the loader.
var (
	// ErrNoSpecs is returned when Start is called with an empty batch.
	ErrNoSpecs = errors.New("no widget specs given")

	// ErrEmptyIdentity is returned when a spec has no identity.
	ErrEmptyIdentity = errors.New("widget identity is empty")

	// ErrInvalidIdentity is returned when an identity cannot be used as a
	// bundle directory or module path element.
	ErrInvalidIdentity = errors.New("widget identity is not a valid path element")

	// ErrDuplicateSpec is returned when an identity appears twice in one
	// batch.
	ErrDuplicateSpec = errors.New("widget listed twice in one batch")

	// ErrAlreadyStarted is returned when starting an identity that already
	// occupies a manager slot.
	ErrAlreadyStarted = errors.New("widget already started")

	// ErrNotStarted is returned when operating on an identity the manager
	// does not hold.
	ErrNotStarted = errors.New("widget not started")

	// ErrBundleNotFound is returned when no bundle exists for an identity.
	ErrBundleNotFound = errors.New("widget bundle not found")

	// ErrNoEntryPoint is returned when a bundle directory has no manifest
	// and no conventional entry file.
	ErrNoEntryPoint = errors.New("widget has no entry point")

	// ErrLoadFailed wraps faults raised while executing a widget's module.
	ErrLoadFailed = errors.New("widget load failed")

	// ErrLoadTimeout marks a widget whose module load exceeded the
	// deadline. It is recorded on the host, never returned from Start.
	ErrLoadTimeout = errors.New("widget load timed out")
)
