package widget

import (
	"context"
	"sync"

	"github.com/mosaicui/mosaic/internal/mediator"
	"github.com/mosaicui/mosaic/internal/path"
	"github.com/mosaicui/mosaic/internal/sandbox"
)

// Host is one loaded widget: its bundle, options, interpreter and the event
// subscriptions its script holds. It implements sandbox.Host, so the core
// module installed in the widget's interpreter reaches the mediator through
// it and every script operation carries the widget's identity.
type Host struct {
	identity string
	med      *mediator.Mediator

	mu        sync.RWMutex
	bundle    *Bundle
	options   map[string]any // merged set the module saw
	overrides map[string]any // start options before manifest defaults
	element   string
	state     State
	err       error
	sbx       *sandbox.State
	core      *sandbox.Core
	subs      map[string]*mediator.Subscription
}

func newHost(identity string, med *mediator.Mediator) *Host {
	return &Host{
		identity: identity,
		med:      med,
		state:    StateUnloaded,
		subs:     make(map[string]*mediator.Subscription),
	}
}

// Identity returns the widget identity.
func (h *Host) Identity() string {
	return h.identity
}

// State returns the widget's lifecycle state.
func (h *Host) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Err returns the fault that put the widget in StateError, if any.
func (h *Host) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Element returns the surface selector the widget was started with.
func (h *Host) Element() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.element
}

// Options returns the options the widget was started with, manifest
// defaults included.
func (h *Host) Options() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.options
}

// Bundle returns the resolved bundle, or nil before resolution.
func (h *Host) Bundle() *Bundle {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bundle
}

// Sandbox returns the widget's interpreter state, or nil before
// instantiation.
func (h *Host) Sandbox() *sandbox.State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sbx
}

// Subscriptions returns how many live subscriptions the widget holds.
func (h *Host) Subscriptions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Subscribe implements sandbox.Host: the script's core.on lands here. A
// filtered subscription returns an empty local id and no error, so the
// script observes a silent no-op.
func (h *Host) Subscribe(eventPath string, handler func(args []any)) (string, error) {
	sub, err := h.med.On(path.Path(eventPath), h.identity, mediator.HandlerFunc(
		func(_ context.Context, ev mediator.Event) error {
			handler(ev.Args)
			return nil
		}))
	if err != nil {
		return "", err
	}
	if sub == nil {
		return "", nil
	}

	h.mu.Lock()
	h.subs[sub.ID()] = sub
	h.mu.Unlock()
	return sub.ID(), nil
}

// Unsubscribe implements sandbox.Host.
func (h *Host) Unsubscribe(id string) bool {
	h.mu.Lock()
	sub, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()

	if !ok {
		return false
	}
	return h.med.Off(sub)
}

// Publish implements sandbox.Host: the script's core.emit flows through
// EmitFrom so emit enforcement sees the originating identity.
func (h *Host) Publish(eventPath string, args ...any) (bool, error) {
	return h.med.EmitFrom(context.Background(), h.identity, path.Path(eventPath), args...)
}

// begin claims the host for a fresh load.
func (h *Host) begin(options map[string]any, element string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.options = options
	h.overrides = options
	h.element = element
	h.state = StateLoading
	h.err = nil
}

// attach records the resolved bundle, the instantiated sandbox and the
// options the module will see (manifest defaults under spec overrides).
func (h *Host) attach(bundle *Bundle, sbx *sandbox.State, core *sandbox.Core, options map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bundle = bundle
	h.sbx = sbx
	h.core = core
	h.options = options
}

// ready marks the load complete.
func (h *Host) ready() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = StateReady
}

// fail records a load fault.
func (h *Host) fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = StateError
	h.err = err
}

// spec reconstructs the widget's start spec for reloads. Options are the
// original overrides, not the merged set, so a reload picks up changed
// manifest defaults for every key the caller never overrode.
func (h *Host) spec() Spec {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Spec{Identity: h.identity, Options: h.overrides, Element: h.element}
}

// load executes the widget's entry module and its optional init entry
// point. It runs on a loader goroutine under the load deadline.
func (h *Host) load(ctx context.Context) error {
	h.mu.RLock()
	sbx, bundle, options := h.sbx, h.bundle, h.options
	h.mu.RUnlock()

	if err := sbx.DoFile(ctx, bundle.Main); err != nil {
		return err
	}
	_, err := sbx.CallOptional(ctx, "init", options)
	return err
}

// releaseScript drops the script's mediator resources: the pinned handler
// table and every subscription the script holds. The lifecycle state is
// untouched, so a failed load can release and still read as errored.
func (h *Host) releaseScript() {
	h.mu.RLock()
	core := h.core
	h.mu.RUnlock()
	if core != nil {
		core.Cleanup()
	}

	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*mediator.Subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		h.med.Off(sub)
	}
}

// shutdown releases the script's mediator resources and marks the host
// unloaded. The interpreter itself is closed by the runtime.
func (h *Host) shutdown() {
	h.releaseScript()

	h.mu.Lock()
	h.state = StateUnloaded
	h.err = nil
	h.mu.Unlock()
}
