package widget

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of file events into one reload.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads widgets when their bundles change on disk. File events
// map back to the owning identity and are debounced per widget, so an
// editor save burst triggers a single reload.
type Watcher struct {
	manager  *Manager
	loader   *Loader
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher watches the loader's base directory and every directory under
// it. A debounce of zero or less uses DefaultDebounce.
func NewWatcher(manager *Manager, loader *Loader, logger *slog.Logger, debounce time.Duration) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		manager:  manager,
		loader:   loader,
		fsw:      fsw,
		logger:   logger.With("component", "widget.watcher"),
		debounce: debounce,
		pending:  make(map[string]*time.Timer),
		closeCh:  make(chan struct{}),
	}

	if err := w.watchTree(loader.Base()); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// watchTree registers every directory under root; fsnotify reports file
// changes inside watched directories, not below them.
func (w *Watcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); p != root && len(name) > 0 && name[0] == '.' {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(p); addErr != nil {
			w.logger.Warn("watch failed", "path", p, "error", addErr)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// handle maps one file event to a debounced widget reload.
func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// New directories join the watch so files created below them keep
	// reporting.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(event.Name); err != nil {
				w.logger.Warn("watch failed", "path", event.Name, "error", err)
			}
		}
	}

	identity, ok := w.loader.IdentityFor(event.Name)
	if !ok {
		return
	}
	if st := w.manager.State(identity); st != StateReady && st != StateError {
		return
	}
	w.schedule(identity)
}

// schedule arms or extends the identity's debounce timer.
func (w *Watcher) schedule(identity string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if t, ok := w.pending[identity]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[identity] = time.AfterFunc(w.debounce, func() {
		w.reload(identity)
	})
}

// reload fires a debounced reload. The state is re-checked at fire time; a
// widget stopped during the debounce window stays stopped.
func (w *Watcher) reload(identity string) {
	w.mu.Lock()
	delete(w.pending, identity)
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}

	if st := w.manager.State(identity); st != StateReady && st != StateError {
		return
	}

	w.logger.Info("bundle changed, reloading", "widget", identity)
	if err := w.manager.Reload(context.Background(), identity); err != nil {
		w.logger.Error("reload failed", "widget", identity, "error", err)
	}
}

// Flush immediately fires all pending reloads.
func (w *Watcher) Flush() {
	w.mu.Lock()
	ids := make([]string, 0, len(w.pending))
	for id, t := range w.pending {
		t.Stop()
		ids = append(ids, id)
	}
	w.mu.Unlock()

	for _, id := range ids {
		w.reload(id)
	}
}

// PendingCount returns the number of widgets awaiting a debounced reload.
func (w *Watcher) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Close stops watching. Pending reloads are dropped. Close is idempotent.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for id, t := range w.pending {
		t.Stop()
		delete(w.pending, id)
	}
	close(w.closeCh)
	w.mu.Unlock()

	err := w.fsw.Close()
	w.wg.Wait()
	return err
}
