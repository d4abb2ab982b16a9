package sandbox

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Runtime owns the sandboxed states and the module registry. Each widget
// identity gets at most one live State, and every module a widget loads is
// recorded under a slash-separated path inside the widget's namespace
// ("widgets/<identity>/<stem>"), so a whole dependency tree can be inspected
// or dropped by prefix.
type Runtime struct {
	logger *slog.Logger

	mu          sync.RWMutex
	states      map[string]*State
	stateOrder  []string
	modules     map[string]string // module path -> owning identity
	moduleOrder []string
}

// NewRuntime creates an empty runtime. A nil logger falls back to
// slog.Default.
func NewRuntime(logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		logger:  logger,
		states:  make(map[string]*State),
		modules: make(map[string]string),
	}
}

// Instantiate creates a fresh sandboxed state for the identity and records
// it. Instantiating an identity that already has a state is an error; close
// it first.
func (r *Runtime) Instantiate(identity string) (*State, error) {
	if identity == "" {
		return nil, ErrEmptyIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.states[identity]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInstantiated, identity)
	}

	s := New(identity)
	r.states[identity] = s
	r.stateOrder = append(r.stateOrder, identity)

	r.logger.Debug("sandbox instantiated", "identity", identity)
	return s, nil
}

// Replace swaps the recorded state for an identity, for callers that wrap or
// substitute the state after instantiation. The previous state is returned
// unclosed; the caller decides its fate. Replacing an unknown identity
// records the state as if instantiated.
func (r *Runtime) Replace(identity string, s *State) *State {
	if identity == "" || s == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.states[identity]
	r.states[identity] = s
	if !ok {
		r.stateOrder = append(r.stateOrder, identity)
	}
	return prev
}

// Lookup returns the live state for an identity.
func (r *Runtime) Lookup(identity string) (*State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.states[identity]
	return s, ok
}

// Identities returns the identities with live states, in instantiation
// order.
func (r *Runtime) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.stateOrder))
	copy(out, r.stateOrder)
	return out
}

// Define records a module path as loaded by the given identity. Redefining a
// path moves ownership without disturbing definition order.
func (r *Runtime) Define(modulePath, identity string) {
	if modulePath == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.modules[modulePath]; !ok {
		r.moduleOrder = append(r.moduleOrder, modulePath)
	}
	r.modules[modulePath] = identity
}

// Defined reports whether a module path is registered.
func (r *Runtime) Defined(modulePath string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.modules[modulePath]
	return ok
}

// DefinedModules returns registered module paths in definition order. A
// non-empty prefix restricts the result to the path itself and anything
// below it; "widgets/clock" matches "widgets/clock/main" but never
// "widgets/clockwork/main".
func (r *Runtime) DefinedModules(prefix string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.moduleOrder))
	for _, p := range r.moduleOrder {
		if underPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out
}

// Unload removes one module path from the registry. Returns false when the
// path was not registered.
func (r *Runtime) Unload(modulePath string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.modules[modulePath]; !ok {
		return false
	}
	r.dropModuleLocked(modulePath)
	return true
}

// UnloadPrefix removes every module path under the prefix and returns the
// removed paths in definition order. An empty prefix removes nothing.
func (r *Runtime) UnloadPrefix(prefix string) []string {
	if prefix == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for _, p := range r.moduleOrder {
		if underPrefix(p, prefix) {
			removed = append(removed, p)
		}
	}
	for _, p := range removed {
		r.dropModuleLocked(p)
	}
	return removed
}

// Close closes the identity's state, removes it from the runtime and drops
// every module it owns. Closing an unknown identity is a no-op.
func (r *Runtime) Close(identity string) error {
	r.mu.Lock()

	s, ok := r.states[identity]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.states, identity)
	r.stateOrder = remove(r.stateOrder, identity)

	var owned []string
	for _, p := range r.moduleOrder {
		if r.modules[p] == identity {
			owned = append(owned, p)
		}
	}
	for _, p := range owned {
		r.dropModuleLocked(p)
	}
	r.mu.Unlock()

	err := s.Close()
	r.logger.Debug("sandbox closed", "identity", identity, "modules", len(owned))
	return err
}

// CloseAll closes every live state in reverse instantiation order.
func (r *Runtime) CloseAll() {
	r.mu.RLock()
	ids := make([]string, len(r.stateOrder))
	copy(ids, r.stateOrder)
	r.mu.RUnlock()

	for i := len(ids) - 1; i >= 0; i-- {
		_ = r.Close(ids[i])
	}
}

// Len returns the number of live states.
func (r *Runtime) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}

func (r *Runtime) dropModuleLocked(modulePath string) {
	delete(r.modules, modulePath)
	r.moduleOrder = remove(r.moduleOrder, modulePath)
}

// underPrefix reports whether module path p sits at or below prefix, on
// slash boundaries.
func underPrefix(p, prefix string) bool {
	if prefix == "" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

func remove(list []string, v string) []string {
	for i, s := range list {
		if s == v {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
