package widget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicui/mosaic/internal/faults"
	"github.com/mosaicui/mosaic/internal/mediator"
	"github.com/mosaicui/mosaic/internal/path"
	"github.com/mosaicui/mosaic/internal/permission"
	"github.com/mosaicui/mosaic/internal/sandbox"
)

func newTestManager(t *testing.T, opts ...Option) (*Manager, *mediator.Mediator, *permission.StaticSource, string) {
	t.Helper()

	base := t.TempDir()
	source := permission.NewStaticSource()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	med := mediator.New(source, mediator.WithLogger(logger))
	mgr := NewManager(med, NewLoader(base), append([]Option{WithLogger(logger)}, opts...)...)
	t.Cleanup(mgr.StopAll)
	return mgr, med, source, base
}

// writeWidget creates a directory bundle with a main.lua.
func writeWidget(t *testing.T, base, identity, script string) {
	t.Helper()

	dir := filepath.Join(base, identity)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.lua"), []byte(script), 0o644))
}

// observe subscribes a host-side listener and returns the delivered events.
func observe(t *testing.T, med *mediator.Mediator, source *permission.StaticSource, id string, pattern path.Path) *[]mediator.Event {
	t.Helper()

	source.SetShared(id, pattern)
	require.NoError(t, med.Gate().Load(id))

	got := &[]mediator.Event{}
	sub, err := med.On(pattern, id, mediator.HandlerFunc(func(_ context.Context, ev mediator.Event) error {
		*got = append(*got, ev)
		return nil
	}))
	require.NoError(t, err)
	require.NotNil(t, sub)
	return got
}

func TestManager_StartAndEmit(t *testing.T) {
	mgr, med, source, base := newTestManager(t)
	source.SetShared("clock", "news.*")
	writeWidget(t, base, "clock", `
		core.on("news.*", function(article)
			last = article
		end)
	`)

	require.NoError(t, mgr.Start(context.Background(), Spec{Identity: "clock"}))
	assert.Equal(t, StateReady, mgr.State("clock"))

	delivered, err := med.Emit(context.Background(), "news.update", "hello")
	require.NoError(t, err)
	assert.True(t, delivered)

	host, ok := mgr.Get("clock")
	require.True(t, ok)
	assert.Equal(t, "hello", host.Sandbox().GetGlobal("last").String())
	assert.Equal(t, 1, host.Subscriptions())

	modules := mgr.Runtime().DefinedModules(ModulePath("clock"))
	assert.Equal(t, []string{"widgets/clock/main"}, modules)
}

func TestManager_StartBuffersUntilBatchSettles(t *testing.T) {
	mgr, med, source, base := newTestManager(t)
	ready := observe(t, med, source, "observer", "widget.*")

	source.SetShared("clock", "*")
	writeWidget(t, base, "clock", `
		buffered = core.emit("widget.ready", core.identity())
	`)

	require.NoError(t, mgr.Start(context.Background(), Spec{Identity: "clock"}))

	// The emit happened mid-load: buffered then, delivered by the drain.
	host, _ := mgr.Get("clock")
	assert.Equal(t, "false", host.Sandbox().GetGlobal("buffered").String())
	require.Len(t, *ready, 1)
	assert.Equal(t, "clock", (*ready)[0].Arg(0))
	assert.Equal(t, "clock", (*ready)[0].Meta.Source)

	assert.False(t, med.Suspended())
	assert.Equal(t, uint64(1), med.Stats().Drains)
}

func TestManager_BatchDrainsOnceAfterTimeoutSettles(t *testing.T) {
	mgr, med, source, base := newTestManager(t, WithLoadTimeout(150*time.Millisecond))
	ready := observe(t, med, source, "observer", "widget.*")

	source.SetShared("fast", "*")
	writeWidget(t, base, "fast", `core.emit("widget.ready", "fast")`)
	writeWidget(t, base, "slow", `while true do end`)

	// A timeout settles without failing the batch.
	err := mgr.Start(context.Background(), Spec{Identity: "fast"}, Spec{Identity: "slow"})
	require.NoError(t, err)

	assert.Equal(t, StateReady, mgr.State("fast"))
	assert.Equal(t, StateError, mgr.State("slow"))
	slow, ok := mgr.Get("slow")
	require.True(t, ok)
	assert.ErrorIs(t, slow.Err(), ErrLoadTimeout)

	// Exactly one drain, after both loads settled.
	require.Len(t, *ready, 1)
	assert.Equal(t, uint64(1), med.Stats().Drains)
	assert.False(t, med.Suspended())

	// Delivery is immediate again.
	before := len(*ready)
	_, err = med.Emit(context.Background(), "widget.ping")
	require.NoError(t, err)
	assert.Len(t, *ready, before+1)
}

func TestManager_LoadFaultUnloadsAndSurfaces(t *testing.T) {
	mgr, med, source, base := newTestManager(t)
	ready := observe(t, med, source, "observer", "widget.*")

	source.SetShared("good", "*")
	writeWidget(t, base, "good", `core.emit("widget.ready", "good")`)
	writeWidget(t, base, "bad", `error("boom")`)

	err := mgr.Start(context.Background(), Spec{Identity: "good"}, Spec{Identity: "bad"})
	require.Error(t, err)
	assert.True(t, faults.IsFatal(err), "load faults are fatal-class: %v", err)
	assert.ErrorIs(t, err, ErrLoadFailed)

	// The sibling still loaded and the queue still drained.
	assert.Equal(t, StateReady, mgr.State("good"))
	assert.Len(t, *ready, 1)
	assert.False(t, med.Suspended())

	// The failed widget's partial module is gone: no interpreter, no
	// module definitions, no subscriptions.
	assert.Equal(t, StateError, mgr.State("bad"))
	_, live := mgr.Runtime().Lookup("bad")
	assert.False(t, live)
	assert.Empty(t, mgr.Runtime().DefinedModules(ModulePath("bad")))
}

func TestManager_StartValidation(t *testing.T) {
	mgr, med, _, base := newTestManager(t)
	writeWidget(t, base, "clock", ``)

	tests := []struct {
		name  string
		specs []Spec
	}{
		{name: "empty batch", specs: nil},
		{name: "empty identity", specs: []Spec{{Identity: ""}}},
		{name: "path separator in identity", specs: []Spec{{Identity: "../clock"}}},
		{name: "duplicate identity", specs: []Spec{{Identity: "clock"}, {Identity: "clock"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mgr.Start(context.Background(), tt.specs...)
			require.Error(t, err)
			assert.True(t, faults.IsInvalid(err), "expected invalid-class error, got %v", err)
			assert.False(t, med.Suspended(), "a rejected batch must not leave delivery suspended")
		})
	}
}

func TestManager_StartAlreadyStarted(t *testing.T) {
	mgr, _, source, base := newTestManager(t)
	source.SetShared("clock", "*")
	writeWidget(t, base, "clock", ``)

	require.NoError(t, mgr.Start(context.Background(), Spec{Identity: "clock"}))

	err := mgr.Start(context.Background(), Spec{Identity: "clock"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyStarted)
	assert.True(t, faults.IsInvalid(err))
}

func TestManager_BundleNotFound(t *testing.T) {
	mgr, med, _, _ := newTestManager(t)

	err := mgr.Start(context.Background(), Spec{Identity: "ghost"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBundleNotFound)
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.Equal(t, StateError, mgr.State("ghost"))
	assert.False(t, med.Suspended())
}

func TestManager_StopTearsDown(t *testing.T) {
	mgr, med, source, base := newTestManager(t)
	source.SetShared("clock", "*")
	writeWidget(t, base, "clock", `core.on("tick", function() end)`)

	require.NoError(t, mgr.Start(context.Background(), Spec{Identity: "clock"}))
	require.True(t, med.Registry().Has("clock"))

	require.NoError(t, mgr.Stop("clock"))

	assert.Equal(t, StateUnloaded, mgr.State("clock"))
	assert.False(t, med.Registry().Has("clock"))
	assert.Empty(t, mgr.Runtime().DefinedModules(ModulePath("clock")))
	_, live := mgr.Runtime().Lookup("clock")
	assert.False(t, live)
	assert.Zero(t, mgr.Len())

	// Second stop and stopping an unknown identity are safe no-ops.
	assert.NoError(t, mgr.Stop("clock"))
	assert.NoError(t, mgr.Stop("never-started"))

	err := mgr.Stop("")
	require.Error(t, err)
	assert.True(t, faults.IsInvalid(err))
}

type fakeElement struct {
	removed int
	err     error
}

func (e *fakeElement) RemoveChildren() error {
	e.removed++
	return e.err
}

type fakeSurface struct {
	element *fakeElement
	findErr error
	lookups []string
}

func (s *fakeSurface) Find(selector string) (Element, error) {
	s.lookups = append(s.lookups, selector)
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.element, nil
}

func TestManager_StopClearsElement(t *testing.T) {
	surface := &fakeSurface{element: &fakeElement{}}
	mgr, _, source, base := newTestManager(t, WithSurface(surface))
	source.SetShared("clock", "*")
	writeWidget(t, base, "clock", ``)

	require.NoError(t, mgr.Start(context.Background(), Spec{Identity: "clock", Element: "#clock-slot"}))
	require.NoError(t, mgr.Stop("clock", "#clock-slot"))

	assert.Equal(t, []string{"#clock-slot"}, surface.lookups)
	assert.Equal(t, 1, surface.element.removed)
}

func TestManager_StopSurfaceFaultsAreWarnings(t *testing.T) {
	surface := &fakeSurface{findErr: errors.New("no such element")}
	mgr, _, source, base := newTestManager(t, WithSurface(surface))
	source.SetShared("clock", "*")
	writeWidget(t, base, "clock", ``)

	require.NoError(t, mgr.Start(context.Background(), Spec{Identity: "clock", Element: "#gone"}))
	assert.NoError(t, mgr.Stop("clock", "#gone"))

	// No surface configured at all degrades the same way.
	mgr2, _, source2, base2 := newTestManager(t)
	source2.SetShared("clock", "*")
	writeWidget(t, base2, "clock", ``)
	require.NoError(t, mgr2.Start(context.Background(), Spec{Identity: "clock", Element: "#slot"}))
	assert.NoError(t, mgr2.Stop("clock", "#slot"))
}

func TestManager_Reload(t *testing.T) {
	mgr, med, source, base := newTestManager(t)
	boots := observe(t, med, source, "observer", "clock.*")

	source.SetShared("clock", "*")
	writeWidget(t, base, "clock", `
		version = "v1"
		core.emit("clock.boot")
	`)

	require.NoError(t, mgr.Start(context.Background(), Spec{Identity: "clock", Options: map[string]any{"tz": "UTC"}}))
	require.Len(t, *boots, 1)

	writeWidget(t, base, "clock", `
		version = "v2"
		core.emit("clock.boot")
	`)
	require.NoError(t, mgr.Reload(context.Background(), "clock"))

	assert.Equal(t, StateReady, mgr.State("clock"))
	assert.Len(t, *boots, 2)

	host, ok := mgr.Get("clock")
	require.True(t, ok)
	assert.Equal(t, "v2", host.Sandbox().GetGlobal("version").String())
	assert.Equal(t, "UTC", host.Options()["tz"])
}

func TestManager_ReloadUnknown(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)

	err := mgr.Reload(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.True(t, faults.IsInvalid(err))
}

func TestManager_SandboxHook(t *testing.T) {
	hook := func(s *sandbox.State, identity string) *sandbox.State {
		s.SetGlobalValue("injected", "for-"+identity)
		return nil
	}
	mgr, _, source, base := newTestManager(t, WithSandboxHook(hook))
	source.SetShared("clock", "*")
	writeWidget(t, base, "clock", `captured = injected`)

	require.NoError(t, mgr.Start(context.Background(), Spec{Identity: "clock"}))

	host, _ := mgr.Get("clock")
	assert.Equal(t, "for-clock", host.Sandbox().GetGlobal("captured").String())
}

func TestManager_ManifestOptionsMerge(t *testing.T) {
	mgr, _, source, base := newTestManager(t)
	source.SetShared("weather", "*")

	dir := filepath.Join(base, "weather")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	manifest := `
name = "weather"
version = "1.2.0"
main = "app.lua"

[options]
color = "blue"
units = "metric"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte(manifest), 0o644))
	app := `
		function init(options)
			color = options.color
			units = options.units
		end
	`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.lua"), []byte(app), 0o644))

	spec := Spec{Identity: "weather", Options: map[string]any{"units": "imperial"}}
	require.NoError(t, mgr.Start(context.Background(), spec))

	host, _ := mgr.Get("weather")
	assert.Equal(t, "blue", host.Sandbox().GetGlobal("color").String())
	assert.Equal(t, "imperial", host.Sandbox().GetGlobal("units").String())

	modules := mgr.Runtime().DefinedModules(ModulePath("weather"))
	assert.Equal(t, []string{"widgets/weather/app"}, modules)
}

func TestManager_EmitEnforcementFiltersScripts(t *testing.T) {
	base := t.TempDir()
	source := permission.NewStaticSource()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	med := mediator.New(source, mediator.WithLogger(logger), mediator.WithEmitEnforcement(true))
	mgr := NewManager(med, NewLoader(base), WithLogger(logger))
	t.Cleanup(mgr.StopAll)

	news := observe(t, med, source, "observer", "news.*")

	// "pub" may listen to everything but emit nothing.
	source.Set("pub", permission.RuleSet{On: []path.Path{"*"}})
	writeWidget(t, base, "pub", `ok = core.emit("news.scoop", 1)`)

	require.NoError(t, mgr.Start(context.Background(), Spec{Identity: "pub"}))

	host, _ := mgr.Get("pub")
	assert.Equal(t, "false", host.Sandbox().GetGlobal("ok").String())
	assert.Empty(t, *news)
	assert.Equal(t, uint64(1), med.Stats().DeniedEmit)
}

func TestManager_StartOneAndAccessors(t *testing.T) {
	mgr, _, source, base := newTestManager(t)
	source.SetShared("a", "*")
	source.SetShared("b", "*")
	writeWidget(t, base, "a", ``)
	writeWidget(t, base, "b", ``)

	require.NoError(t, mgr.StartOne(context.Background(), "a", nil))
	require.NoError(t, mgr.StartOne(context.Background(), "b", map[string]any{"k": "v"}))

	assert.Equal(t, []string{"a", "b"}, mgr.Widgets())
	assert.Equal(t, 2, mgr.Len())
	assert.Equal(t, map[string]State{"a": StateReady, "b": StateReady}, mgr.States())

	host, ok := mgr.Get("b")
	require.True(t, ok)
	assert.Equal(t, "v", host.Options()["k"])

	mgr.StopAll()
	assert.Zero(t, mgr.Len())
	assert.Empty(t, mgr.Widgets())
}

func TestManager_ConcurrentBatchLoads(t *testing.T) {
	mgr, med, source, base := newTestManager(t)
	ready := observe(t, med, source, "observer", "widget.*")

	specs := make([]Spec, 0, 8)
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("w%d", i)
		source.SetShared(id, "*")
		writeWidget(t, base, id, `core.emit("widget.ready", core.identity())`)
		specs = append(specs, Spec{Identity: id})
	}

	require.NoError(t, mgr.Start(context.Background(), specs...))

	assert.Len(t, *ready, 8)
	assert.Equal(t, uint64(1), med.Stats().Drains)
	for _, spec := range specs {
		assert.Equal(t, StateReady, mgr.State(spec.Identity))
	}
}
