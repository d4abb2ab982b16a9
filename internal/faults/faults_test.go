package faults

import (
	"errors"
	"fmt"
	"testing"
)

func TestClass_String(t *testing.T) {
	tests := []struct {
		class    Class
		expected string
	}{
		{ClassTransient, "transient"},
		{ClassInvalid, "invalid"},
		{ClassFatal, "fatal"},
		{Class(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.class.String(); got != tt.expected {
				t.Errorf("Class.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestWrapInvalid(t *testing.T) {
	base := errors.New("empty identity")
	err := WrapInvalid(base, "mediator", "On", "validate arguments")

	if err == nil {
		t.Fatal("WrapInvalid returned nil for non-nil error")
	}
	if !IsInvalid(err) {
		t.Error("IsInvalid() = false, want true")
	}
	if IsTransient(err) || IsFatal(err) {
		t.Error("wrong classification for invalid fault")
	}
	if !errors.Is(err, base) {
		t.Error("wrapped fault does not unwrap to base error")
	}

	want := "mediator.On: validate arguments failed: empty identity"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrapTransient(t *testing.T) {
	base := errors.New("handler panicked")
	err := WrapTransient(base, "channel", "Deliver", "invoke handler")

	if !IsTransient(err) {
		t.Error("IsTransient() = false, want true")
	}
	if !errors.Is(err, base) {
		t.Error("wrapped fault does not unwrap to base error")
	}
}

func TestWrapFatal(t *testing.T) {
	base := errors.New("module panicked during load")
	err := WrapFatal(base, "widget", "Start", "load main module")

	if !IsFatal(err) {
		t.Error("IsFatal() = false, want true")
	}
	if IsInvalid(err) {
		t.Error("IsInvalid() = true for fatal fault, want false")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "c", "o", "a") != nil {
		t.Error("Wrap(nil) != nil")
	}
	if WrapInvalid(nil, "c", "o", "a") != nil {
		t.Error("WrapInvalid(nil) != nil")
	}
	if WrapTransient(nil, "c", "o", "a") != nil {
		t.Error("WrapTransient(nil) != nil")
	}
	if WrapFatal(nil, "c", "o", "a") != nil {
		t.Error("WrapFatal(nil) != nil")
	}
}

func TestClassificationThroughWrapping(t *testing.T) {
	base := errors.New("boom")
	classified := WrapFatal(base, "widget", "Start", "load")
	rewrapped := fmt.Errorf("starting batch: %w", classified)

	if !IsFatal(rewrapped) {
		t.Error("classification lost through fmt.Errorf wrapping")
	}
	if !errors.Is(rewrapped, base) {
		t.Error("base error lost through double wrapping")
	}
}

func TestPredicatesOnUnclassified(t *testing.T) {
	plain := errors.New("plain")

	if IsInvalid(plain) || IsTransient(plain) || IsFatal(plain) {
		t.Error("unclassified error matched a class predicate")
	}
	if IsInvalid(nil) || IsTransient(nil) || IsFatal(nil) {
		t.Error("nil error matched a class predicate")
	}
}
