// Package widget manages widget lifecycles on top of the mediator: batch
// starts behind a suspension barrier, sandboxed module loading under a
// deadline, and teardown that releases channels, modules and surface
// mounts together.
package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mosaicui/mosaic/internal/faults"
	"github.com/mosaicui/mosaic/internal/mediator"
	"github.com/mosaicui/mosaic/internal/sandbox"
)

// Spec describes one widget to start.
type Spec struct {
	// Identity names the widget; it doubles as the channel identity, the
	// bundle directory name and the module namespace element.
	Identity string

	// Options are passed to the module's init entry point, layered over
	// the manifest's option defaults.
	Options map[string]any

	// Element is the surface selector the widget renders into; cleared
	// when the widget stops.
	Element string
}

// Manager drives widget lifecycles. Batch starts suspend event delivery
// until every module in the batch settles, so early subscribers never see
// events their slower siblings would miss.
type Manager struct {
	med     *mediator.Mediator
	loader  *Loader
	runtime *sandbox.Runtime
	surface Surface
	hook    SandboxHook
	logger  *slog.Logger
	metrics *metrics

	loadTimeout time.Duration

	mu      sync.RWMutex
	widgets map[string]*Host
	order   []string
}

// NewManager creates a widget manager publishing through med and resolving
// bundles through loader.
func NewManager(med *mediator.Mediator, loader *Loader, opts ...Option) *Manager {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.logger.With("component", "widget")

	mets, err := newMetrics(cfg.registerer)
	if err != nil {
		logger.Error("failed to register widget metrics", "error", err)
		mets = nil // Continue without metrics
	}

	return &Manager{
		med:         med,
		loader:      loader,
		runtime:     sandbox.NewRuntime(cfg.logger),
		surface:     cfg.surface,
		hook:        cfg.hook,
		logger:      logger,
		metrics:     mets,
		loadTimeout: cfg.loadTimeout,
		widgets:     make(map[string]*Host),
	}
}

// Runtime returns the sandbox runtime holding the widgets' interpreters and
// module registry.
func (m *Manager) Runtime() *sandbox.Runtime {
	return m.runtime
}

// Start loads a batch of widgets concurrently. Event delivery is suspended
// for the whole batch before any module runs and resumes once every load
// settles, success or not. A module fault unloads that widget and is
// surfaced after the batch completes; a load timeout only logs a warning
// and leaves the widget errored. Malformed specs fail the call up front,
// before anything is suspended.
func (m *Manager) Start(ctx context.Context, specs ...Spec) error {
	if len(specs) == 0 {
		return faults.WrapInvalid(ErrNoSpecs, "widget", "Start", "validate specs")
	}

	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if spec.Identity == "" {
			return faults.WrapInvalid(ErrEmptyIdentity, "widget", "Start", "validate specs")
		}
		if !ValidIdentity(spec.Identity) {
			return faults.WrapInvalid(fmt.Errorf("%w: %q", ErrInvalidIdentity, spec.Identity), "widget", "Start", "validate specs")
		}
		if seen[spec.Identity] {
			return faults.WrapInvalid(fmt.Errorf("%w: %s", ErrDuplicateSpec, spec.Identity), "widget", "Start", "validate specs")
		}
		seen[spec.Identity] = true
	}

	hosts, err := m.claim(specs)
	if err != nil {
		return err
	}

	ids := make([]string, len(specs))
	for i, spec := range specs {
		ids[i] = spec.Identity
	}
	m.med.Suspend(ids...)

	var g errgroup.Group
	for i, spec := range specs {
		spec := spec
		host := hosts[i]
		g.Go(func() error {
			// Settle even on failure: buffered events flush only after the
			// whole batch has reported in.
			defer m.med.Settle(ctx, host.Identity())
			return m.load(ctx, host, spec)
		})
	}
	return g.Wait()
}

// StartOne starts a single widget.
func (m *Manager) StartOne(ctx context.Context, identity string, options map[string]any) error {
	return m.Start(ctx, Spec{Identity: identity, Options: options})
}

// claim reserves a manager slot per spec, all or nothing.
func (m *Manager) claim(specs []Spec) ([]*Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, spec := range specs {
		if _, ok := m.widgets[spec.Identity]; ok {
			return nil, faults.WrapInvalid(fmt.Errorf("widget %q: %w", spec.Identity, ErrAlreadyStarted), "widget", "Start", "claim slots")
		}
	}

	hosts := make([]*Host, len(specs))
	for i, spec := range specs {
		h := newHost(spec.Identity, m.med)
		h.begin(spec.Options, spec.Element)
		m.widgets[spec.Identity] = h
		m.order = append(m.order, spec.Identity)
		hosts[i] = h
	}
	return hosts, nil
}

// load runs one widget's start sequence on its own goroutine: resolve the
// bundle, materialize the channel and its grants, instantiate the sandbox,
// then execute the module under the load deadline.
func (m *Manager) load(ctx context.Context, host *Host, spec Spec) error {
	identity := spec.Identity

	bundle, err := m.loader.Resolve(identity)
	if err != nil {
		return m.failLoad(host, err)
	}

	// Channel and grants exist before any script runs, so the module's own
	// subscribes resolve against its permissions.
	m.med.Registry().Get(identity)
	if err := m.med.Gate().Load(identity); err != nil {
		return m.failLoad(host, err)
	}

	sbx, err := m.runtime.Instantiate(identity)
	if err != nil {
		return m.failLoad(host, err)
	}
	if m.hook != nil {
		if hooked := m.hook(sbx, identity); hooked != nil && hooked != sbx {
			if prev := m.runtime.Replace(identity, hooked); prev != nil {
				_ = prev.Close()
			}
			sbx = hooked
		}
	}

	core := sandbox.NewCore(sbx, host, m.logger)
	if err := core.Register(); err != nil {
		_ = m.runtime.Close(identity)
		return m.failLoad(host, err)
	}
	host.attach(bundle, sbx, core, mergeOptions(bundle.DefaultOptions(), spec.Options))

	// The module runs off this goroutine so a wedged script cannot outlive
	// the deadline; SetContext halts the VM when the deadline fires.
	loadCtx, cancel := context.WithTimeout(ctx, m.loadTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- host.load(loadCtx) }()

	select {
	case err := <-done:
		if err != nil {
			if errors.Is(loadCtx.Err(), context.DeadlineExceeded) {
				return m.timeoutLoad(host)
			}
			m.unload(host)
			return m.failLoad(host, err)
		}
		m.runtime.Define(bundle.Module(), identity)
		host.ready()
		m.metrics.incLoaded()
		m.logger.Info("widget ready", "widget", identity, "module", bundle.Module())
		return nil
	case <-loadCtx.Done():
		if errors.Is(loadCtx.Err(), context.DeadlineExceeded) {
			return m.timeoutLoad(host)
		}
		m.unload(host)
		return m.failLoad(host, loadCtx.Err())
	}
}

// timeoutLoad settles a deadline overrun without failing the batch: the
// widget lands in StateError with a warning and siblings proceed.
func (m *Manager) timeoutLoad(host *Host) error {
	host.fail(ErrLoadTimeout)
	m.metrics.incTimeout()
	m.logger.Warn("widget load timed out", "widget", host.Identity(), "timeout", m.loadTimeout)
	return nil
}

// failLoad records a fault on the host and surfaces it to the batch.
func (m *Manager) failLoad(host *Host, err error) error {
	host.fail(err)
	m.metrics.incFailure()
	m.logger.Error("widget load failed", "widget", host.Identity(), "error", err)
	return faults.WrapFatal(fmt.Errorf("%w: %w", ErrLoadFailed, err), "widget", "Start", "load "+host.Identity())
}

// unload drops whatever a failed load already planted: the script's
// subscriptions, its modules and its interpreter. The slot and channel stay
// so the fault remains observable until Stop.
func (m *Manager) unload(host *Host) {
	host.releaseScript()
	m.runtime.UnloadPrefix(ModulePath(host.Identity()))
	_ = m.runtime.Close(host.Identity())
}

// Stop tears a widget down: its channel (and with it every subscription and
// grant marker), its modules, its interpreter. Stopping an unknown identity
// is a safe no-op. An optional element selector asks the surface to clear
// the widget's mount point.
func (m *Manager) Stop(identity string, element ...string) error {
	if identity == "" {
		return faults.WrapInvalid(ErrEmptyIdentity, "widget", "Stop", "validate identity")
	}

	m.mu.Lock()
	host := m.widgets[identity]
	delete(m.widgets, identity)
	m.order = removeID(m.order, identity)
	m.mu.Unlock()

	// Channel first: no further deliveries reach the widget while the rest
	// of the teardown runs.
	m.med.Registry().Remove(identity)

	wasReady := false
	if host != nil {
		wasReady = host.State() == StateReady
		host.shutdown()
	}

	removed := m.runtime.UnloadPrefix(ModulePath(identity))
	_ = m.runtime.Close(identity)

	if host != nil {
		if wasReady {
			m.metrics.decActive()
		}
		m.logger.Info("widget stopped", "widget", identity, "modules", len(removed))
	}

	if len(element) > 0 && element[0] != "" {
		m.clearElement(identity, element[0])
	}
	return nil
}

// StopAll stops every widget in reverse start order, clearing each widget's
// own element.
func (m *Manager) StopAll() {
	m.mu.RLock()
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	m.mu.RUnlock()

	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		var element []string
		if h, ok := m.Get(id); ok && h.Element() != "" {
			element = []string{h.Element()}
		}
		_ = m.Stop(id, element...)
	}
}

// Reload stops a widget and starts it again with the options and element it
// was started with, picking up bundle changes from disk.
func (m *Manager) Reload(ctx context.Context, identity string) error {
	m.mu.RLock()
	host, ok := m.widgets[identity]
	m.mu.RUnlock()
	if !ok {
		return faults.WrapInvalid(fmt.Errorf("widget %q: %w", identity, ErrNotStarted), "widget", "Reload", "lookup widget")
	}

	spec := host.spec()
	if err := m.Stop(identity); err != nil {
		return err
	}

	m.metrics.incReload()
	m.logger.Info("widget reloading", "widget", identity)
	return m.Start(ctx, spec)
}

// clearElement asks the surface to empty the widget's mount point. Surface
// faults degrade to warnings; the widget itself is already gone.
func (m *Manager) clearElement(identity, selector string) {
	if m.surface == nil {
		m.logger.Warn("no surface configured, element left as-is", "widget", identity, "element", selector)
		return
	}
	el, err := m.surface.Find(selector)
	if err != nil {
		m.logger.Warn("element lookup failed", "widget", identity, "element", selector, "error", err)
		return
	}
	if err := el.RemoveChildren(); err != nil {
		m.logger.Warn("element cleanup failed", "widget", identity, "element", selector, "error", err)
	}
}

// Get returns the host for a started widget.
func (m *Manager) Get(identity string) (*Host, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.widgets[identity]
	return h, ok
}

// State returns the lifecycle state of an identity; unknown identities are
// StateUnloaded.
func (m *Manager) State(identity string) State {
	m.mu.RLock()
	h, ok := m.widgets[identity]
	m.mu.RUnlock()
	if !ok {
		return StateUnloaded
	}
	return h.State()
}

// States returns the lifecycle state of every started widget.
func (m *Manager) States() map[string]State {
	m.mu.RLock()
	hosts := make(map[string]*Host, len(m.widgets))
	for id, h := range m.widgets {
		hosts[id] = h
	}
	m.mu.RUnlock()

	states := make(map[string]State, len(hosts))
	for id, h := range hosts {
		states[id] = h.State()
	}
	return states
}

// Widgets returns started widget identities in start order.
func (m *Manager) Widgets() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of started widgets.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.widgets)
}

// mergeOptions layers spec overrides on top of manifest defaults.
func mergeOptions(defaults, overrides map[string]any) map[string]any {
	if len(defaults) == 0 {
		return overrides
	}
	merged := make(map[string]any, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

func removeID(list []string, v string) []string {
	for i, s := range list {
		if s == v {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
