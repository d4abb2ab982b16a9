// Package faults provides error classification shared across the mediation
// core. It distinguishes caller mistakes (invalid), degradable runtime faults
// (transient), and unrecoverable load faults (fatal), and offers helpers for
// consistent wrapping.
package faults

import (
	"errors"
	"fmt"
)

// Class represents the classification of a fault for handling purposes.
type Class int

const (
	// ClassTransient represents faults that degrade to a logged warning:
	// delivery faults, malformed permission rules, module-load timeouts.
	ClassTransient Class = iota
	// ClassInvalid represents malformed calls: bad paths, empty identities,
	// nil handlers. Always surfaced synchronously to the caller.
	ClassInvalid
	// ClassFatal represents faults that abort the operation that raised
	// them, such as a non-timeout module-load failure.
	ClassFatal
)

// String returns the string representation of the class.
func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassInvalid:
		return "invalid"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Fault wraps an error with its classification and origin.
type Fault struct {
	Class     Class
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Message != "" {
		return f.Message
	}
	return f.Err.Error()
}

// Unwrap returns the underlying error.
func (f *Fault) Unwrap() error {
	return f.Err
}

// IsInvalid reports whether the error is classified as a caller mistake.
func IsInvalid(err error) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Class == ClassInvalid
	}
	return false
}

// IsTransient reports whether the error is classified as degradable.
func IsTransient(err error) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Class == ClassTransient
	}
	return false
}

// IsFatal reports whether the error is classified as fatal.
func IsFatal(err error) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Class == ClassFatal
	}
	return false
}

// newFault creates a classified fault. Use the Wrap helpers instead.
func newFault(class Class, err error, component, operation, message string) *Fault {
	return &Fault{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern
// "component.operation: action failed: %w".
func Wrap(err error, component, operation, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, operation, action, err)
}

// WrapInvalid wraps an error as a caller mistake with context.
func WrapInvalid(err error, component, operation, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, operation, action)
	return newFault(ClassInvalid, wrapped, component, operation, wrapped.Error())
}

// WrapTransient wraps an error as degradable with context.
func WrapTransient(err error, component, operation, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, operation, action)
	return newFault(ClassTransient, wrapped, component, operation, wrapped.Error())
}

// WrapFatal wraps an error as fatal with context.
func WrapFatal(err error, component, operation, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, operation, action)
	return newFault(ClassFatal, wrapped, component, operation, wrapped.Error())
}
