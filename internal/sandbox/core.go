package sandbox

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// handlersGlobal is the Lua global holding pinned handler functions so the
// VM never garbage-collects a live subscription callback.
const handlersGlobal = "_mosaic_handlers"

// Host is the mediation surface a widget script reaches through the core
// module. Implementations bind a single widget identity, so scripts cannot
// subscribe or publish as anyone else.
type Host interface {
	// Subscribe registers handler for eventPath on the widget's channel.
	// An empty id with a nil error means the subscription was filtered by
	// permission rules.
	Subscribe(eventPath string, handler func(args []any)) (string, error)

	// Unsubscribe removes a subscription returned by Subscribe. Returns
	// true if the subscription existed.
	Unsubscribe(id string) bool

	// Publish emits an event attributed to the widget. The bool reports
	// whether the event was delivered now or buffered for replay.
	Publish(eventPath string, args ...any) (bool, error)
}

// Core implements the scripting API widgets see as the global core table:
//
//	core.on(path, fn) -> handle | nil
//	core.off(handle) -> bool
//	core.once(path, fn) -> handle | nil
//	core.emit(path, ...) -> bool
//	core.log(message, level?)
//	core.identity() -> string
//
// Handler functions are pinned in a Lua-side table until unsubscribed, and
// deliveries are posted onto the state so a handler publishing back at its
// own widget never deadlocks.
type Core struct {
	identity string
	state    *State
	host     Host
	logger   *slog.Logger

	mu       sync.Mutex
	subs     map[string]string // local handle -> host subscription id
	handlers *lua.LTable
	nextID   atomic.Uint64
}

// NewCore creates the core module for a state. A nil logger falls back to
// slog.Default.
func NewCore(state *State, host Host, logger *slog.Logger) *Core {
	if logger == nil {
		logger = slog.Default()
	}
	return &Core{
		identity: state.Identity(),
		state:    state,
		host:     host,
		logger:   logger.With("component", "sandbox", "widget", state.Identity()),
		subs:     make(map[string]string),
	}
}

// Register installs the core module into the state. Widget scripts have no
// stdout, so print is redirected to the host log as well.
func (c *Core) Register() error {
	return c.state.Exec(func(L *lua.LState) {
		c.mu.Lock()
		c.handlers = L.NewTable()
		c.mu.Unlock()
		L.SetGlobal(handlersGlobal, c.handlers)

		mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
			"on":       c.on,
			"off":      c.off,
			"once":     c.once,
			"emit":     c.emit,
			"log":      c.logMessage,
			"identity": c.whoami,
		})
		L.SetGlobal("core", mod)

		L.SetGlobal("print", L.NewFunction(c.printToLog))
	})
}

// Cleanup unsubscribes everything and releases pinned handlers. Called when
// the widget unloads.
func (c *Core) Cleanup() {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string]string)
	c.handlers = nil
	c.mu.Unlock()

	for _, hostID := range subs {
		c.host.Unsubscribe(hostID)
	}

	// Dropping the global lets the VM collect the handler functions. On a
	// closed state there is nothing left to release.
	_ = c.state.Exec(func(L *lua.LState) {
		L.SetGlobal(handlersGlobal, lua.LNil)
	})
}

// Subscriptions returns the number of live script subscriptions.
func (c *Core) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// on(path, fn) -> handle | nil
func (c *Core) on(L *lua.LState) int {
	return c.subscribe(L, false)
}

// once(path, fn) -> handle | nil
// The handler is released after its first invocation.
func (c *Core) once(L *lua.LState) int {
	return c.subscribe(L, true)
}

func (c *Core) subscribe(L *lua.LState, once bool) int {
	eventPath := L.CheckString(1)
	handler := L.CheckFunction(2)

	local := c.pin(L, handler)

	hostID, err := c.host.Subscribe(eventPath, c.deliver(local, once))
	if err != nil {
		c.unpin(L, local)
		L.RaiseError("on: %s", err.Error())
		return 0
	}
	if hostID == "" {
		// Filtered by permission rules.
		c.unpin(L, local)
		L.Push(lua.LNil)
		return 1
	}

	c.mu.Lock()
	c.subs[local] = hostID
	c.mu.Unlock()

	L.Push(lua.LString(local))
	return 1
}

// off(handle) -> bool
func (c *Core) off(L *lua.LState) int {
	local := L.CheckString(1)

	c.mu.Lock()
	hostID, exists := c.subs[local]
	delete(c.subs, local)
	if c.handlers != nil {
		c.handlers.RawSetString(local, lua.LNil)
	}
	c.mu.Unlock()

	if !exists {
		L.Push(lua.LFalse)
		return 1
	}
	c.host.Unsubscribe(hostID)
	L.Push(lua.LTrue)
	return 1
}

// emit(path, ...) -> bool
// Raises a Lua error on malformed paths; returns false when the event was
// buffered instead of delivered.
func (c *Core) emit(L *lua.LState) int {
	eventPath := L.CheckString(1)

	args := make([]any, 0, L.GetTop()-1)
	for i := 2; i <= L.GetTop(); i++ {
		args = append(args, FromLua(L.Get(i)))
	}

	delivered, err := c.host.Publish(eventPath, args...)
	if err != nil {
		L.RaiseError("emit: %s", err.Error())
		return 0
	}
	L.Push(lua.LBool(delivered))
	return 1
}

// log(message, level?) writes to the host log attributed to the widget.
// Unknown levels fall back to info.
func (c *Core) logMessage(L *lua.LState) int {
	msg := L.CheckString(1)
	switch strings.ToLower(L.OptString(2, "info")) {
	case "debug":
		c.logger.Debug(msg)
	case "warn":
		c.logger.Warn(msg)
	case "error":
		c.logger.Error(msg)
	default:
		c.logger.Info(msg)
	}
	return 0
}

// identity() -> string
func (c *Core) whoami(L *lua.LState) int {
	L.Push(lua.LString(c.identity))
	return 1
}

func (c *Core) printToLog(L *lua.LState) int {
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.Get(i).String())
	}
	c.logger.Info(strings.Join(parts, "\t"))
	return 0
}

// pin stores a handler in the Lua-side table under a fresh local handle.
// Runs inside a VM execution, so table access is already exclusive.
func (c *Core) pin(_ *lua.LState, fn *lua.LFunction) string {
	local := fmt.Sprintf("%s_%d", c.identity, c.nextID.Add(1))

	c.mu.Lock()
	if c.handlers != nil {
		c.handlers.RawSetString(local, fn)
	}
	c.mu.Unlock()
	return local
}

func (c *Core) unpin(_ *lua.LState, local string) {
	c.mu.Lock()
	if c.handlers != nil {
		c.handlers.RawSetString(local, lua.LNil)
	}
	delete(c.subs, local)
	c.mu.Unlock()
}

// deliver builds the Go callback for a subscription. The invocation posts
// onto the state, so delivery during an active execution parks instead of
// deadlocking. Handler faults are logged here; the router treats script
// subscriptions as clean.
func (c *Core) deliver(local string, once bool) func(args []any) {
	return func(args []any) {
		c.state.Post(func(L *lua.LState) {
			c.mu.Lock()
			handlers := c.handlers
			c.mu.Unlock()
			if handlers == nil {
				return // widget unloaded
			}

			fn := handlers.RawGetString(local)
			if fn.Type() != lua.LTFunction {
				return // handler removed
			}
			if once {
				handlers.RawSetString(local, lua.LNil)
			}

			L.Push(fn)
			for _, a := range args {
				L.Push(ToLua(L, a))
			}
			if err := protect(func() error { return L.PCall(len(args), 0, nil) }); err != nil {
				c.logger.Error("widget handler failed", "handle", local, "error", err)
			}
		})

		if once {
			c.forget(local)
		}
	}
}

// forget drops the Go-side tracking for a handle and unsubscribes it from
// the host. Safe to call from any goroutine.
func (c *Core) forget(local string) {
	c.mu.Lock()
	hostID, exists := c.subs[local]
	delete(c.subs, local)
	c.mu.Unlock()

	if exists {
		c.host.Unsubscribe(hostID)
	}
}
