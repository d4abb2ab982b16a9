package mediator

import "errors"

// Sentinel errors for the mediator.
var (
	// ErrInvalidPath is returned when an event path is empty or malformed.
	ErrInvalidPath = errors.New("invalid event path")

	// ErrEmptyIdentity is returned when a subscriber identity is missing.
	ErrEmptyIdentity = errors.New("subscriber identity cannot be empty")

	// ErrNilHandler is returned when a nil handler is provided.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrHandlerPanic is returned when a subscriber handler panics during
	// delivery.
	ErrHandlerPanic = errors.New("handler panicked")
)

// DeliveryError wraps a fault raised by one subscriber during fan-out.
type DeliveryError struct {
	// Widget is the identity owning the channel the fault occurred on.
	Widget string

	// SubscriptionID is the ID of the failing subscription.
	SubscriptionID string

	// Path is the event path being delivered.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	return "delivery to " + e.Widget + " (subscription " + e.SubscriptionID + ") on " + e.Path + " failed: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// PanicError wraps a panic value raised by a subscriber handler.
type PanicError struct {
	// Widget is the identity owning the channel the panic occurred on.
	Widget string

	// Path is the event path being delivered.
	Path string

	// Value is the value passed to panic().
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return "handler panic on channel " + e.Widget + " for " + e.Path
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}
