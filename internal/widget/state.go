package widget

// State represents the lifecycle state of a widget.
type State int

// Widget states.
const (
	// StateUnloaded - the widget is not loaded.
	StateUnloaded State = iota

	// StateLoading - the widget's module is loading; its events are held
	// in the suspension queue.
	StateLoading

	// StateReady - the widget loaded and is handling events.
	StateReady

	// StateError - the widget failed or timed out while loading.
	StateError
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// IsActive returns true if the widget occupies a manager slot (loading,
// ready or errored, but not unloaded).
func (s State) IsActive() bool {
	return s == StateLoading || s == StateReady || s == StateError
}
