// Package sandbox hosts widget modules in isolated Lua interpreters.
package sandbox

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// State wraps one widget's Lua interpreter.
//
// gopher-lua states are not goroutine-safe, so every execution path runs
// under execMu. Deliveries that arrive while the state is already executing
// (a script publishing back at its own widget) park in the inbox, and the
// active execution drains parked work before returning. That keeps delivery
// order FIFO without deadlocking on reentry.
type State struct {
	identity string

	execMu sync.Mutex
	L      *lua.LState
	closed bool

	inboxMu sync.Mutex
	inbox   []func(L *lua.LState)
}

// New creates a sandboxed Lua state for the given widget identity. Only the
// base, table, string and math libraries are opened; io, os, debug and the
// module loader stay out, and the code-loading globals are removed.
func New(identity string) *State {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	openSafeLibraries(L)
	removeUnsafeGlobals(L)

	return &State{identity: identity, L: L}
}

// openSafeLibraries opens only safe Lua standard libraries.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// Intentionally not opened:
	// - io (file system access)
	// - os (system calls)
	// - debug (can bypass the sandbox)
	// - package (widgets get the core module as a global, not via require)
}

// removeUnsafeGlobals strips the base-library functions that load code.
func removeUnsafeGlobals(L *lua.LState) {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// Identity returns the widget identity this state was created for.
func (s *State) Identity() string {
	return s.identity
}

// DoFile executes a Lua file. The context deadline interrupts long-running
// scripts between VM instructions.
func (s *State) DoFile(ctx context.Context, filename string) error {
	return s.run(ctx, func(L *lua.LState) error {
		return L.DoFile(filename)
	})
}

// DoString executes a Lua chunk.
func (s *State) DoString(ctx context.Context, code string) error {
	return s.run(ctx, func(L *lua.LState) error {
		return L.DoString(code)
	})
}

// Call calls a global Lua function with the given arguments. Returns an
// empty slice (not nil) if the function returns no values.
func (s *State) Call(ctx context.Context, fn string, args ...lua.LValue) ([]lua.LValue, error) {
	var results []lua.LValue
	err := s.run(ctx, func(L *lua.LState) error {
		fnVal := L.GetGlobal(fn)
		if fnVal == lua.LNil {
			return fmt.Errorf("function %q not found", fn)
		}
		if fnVal.Type() != lua.LTFunction {
			return fmt.Errorf("%q is not a function (got %s)", fn, fnVal.Type())
		}

		// Record stack top before pushing anything
		top := L.GetTop()

		L.Push(fnVal)
		for _, arg := range args {
			L.Push(arg)
		}
		if err := L.PCall(len(args), lua.MultRet, nil); err != nil {
			return err
		}

		// Collect only the values added by the call
		n := L.GetTop() - top
		if n <= 0 {
			results = []lua.LValue{}
			return nil
		}
		results = make([]lua.LValue, n)
		for i := 0; i < n; i++ {
			results[i] = L.Get(top + i + 1)
		}
		L.Pop(n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// CallOptional calls a global Lua function with Go arguments converted to
// their Lua representations. It reports false without error when the global
// is missing or not a function; widget entry points are optional.
func (s *State) CallOptional(ctx context.Context, fn string, args ...any) (bool, error) {
	called := false
	err := s.run(ctx, func(L *lua.LState) error {
		fnVal := L.GetGlobal(fn)
		if fnVal.Type() != lua.LTFunction {
			return nil
		}
		called = true

		L.Push(fnVal)
		for _, arg := range args {
			L.Push(ToLua(L, arg))
		}
		return L.PCall(len(args), 0, nil)
	})
	return called, err
}

// run executes fn with exclusive state access, panic recovery and the
// context installed for deadline checks. Parked work runs after fn returns.
func (s *State) run(ctx context.Context, fn func(L *lua.LState) error) error {
	s.execMu.Lock()
	if s.closed {
		s.execMu.Unlock()
		return ErrClosed
	}

	s.L.SetContext(ctx)
	err := protect(func() error { return fn(s.L) })
	s.L.RemoveContext()
	s.execMu.Unlock()

	s.pump()
	return err
}

// protect executes a function with panic recovery.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Exec runs f with exclusive access to the interpreter, for installing
// modules and globals. Parked work runs after f returns.
func (s *State) Exec(f func(L *lua.LState)) error {
	s.execMu.Lock()
	if s.closed {
		s.execMu.Unlock()
		return ErrClosed
	}
	f(s.L)
	s.execMu.Unlock()

	s.pump()
	return nil
}

// Post schedules f to run with exclusive state access. When the state is
// idle f runs before Post returns; when an execution is active, f runs as
// soon as that execution finishes, on whichever goroutine releases the
// state.
func (s *State) Post(f func(L *lua.LState)) {
	s.inboxMu.Lock()
	s.inbox = append(s.inbox, f)
	s.inboxMu.Unlock()

	s.pump()
}

// pump claims the state and runs parked work in FIFO order. When another
// execution holds the state it backs off; that execution pumps on exit, so
// nothing strands.
func (s *State) pump() {
	for {
		if !s.execMu.TryLock() {
			return
		}
		f, ok := s.nextParked()
		if !ok {
			s.execMu.Unlock()
			// A post may have parked between the pop and the unlock.
			if !s.hasParked() {
				return
			}
			continue
		}
		if !s.closed {
			f(s.L)
		}
		s.execMu.Unlock()
	}
}

func (s *State) nextParked() (func(L *lua.LState), bool) {
	s.inboxMu.Lock()
	defer s.inboxMu.Unlock()

	if len(s.inbox) == 0 {
		return nil, false
	}
	f := s.inbox[0]
	s.inbox = s.inbox[1:]
	return f, true
}

func (s *State) hasParked() bool {
	s.inboxMu.Lock()
	defer s.inboxMu.Unlock()
	return len(s.inbox) > 0
}

// RegisterModule installs a table of functions as a global module.
func (s *State) RegisterModule(name string, funcs map[string]lua.LGFunction) {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	if s.closed {
		return
	}
	mod := s.L.SetFuncs(s.L.NewTable(), funcs)
	s.L.SetGlobal(name, mod)
}

// SetGlobalValue converts v to its Lua representation and installs it as a
// global variable.
func (s *State) SetGlobalValue(name string, v any) {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	if s.closed {
		return
	}
	s.L.SetGlobal(name, ToLua(s.L, v))
}

// GetGlobal returns a global variable value, or LNil on a closed state.
func (s *State) GetGlobal(name string) lua.LValue {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.execMu.Lock()
	defer s.execMu.Unlock()
	return s.closed
}

// Close releases the interpreter. After Close all executions return
// ErrClosed and parked deliveries are dropped. Close is idempotent.
func (s *State) Close() error {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.L.Close()
	return nil
}
