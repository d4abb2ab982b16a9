package widget

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ModuleNamespace prefixes every widget module path in the sandbox runtime.
const ModuleNamespace = "widgets"

// Loader resolves widget identities to bundles under one base directory.
//
// A bundle is either a directory base/<identity>/ holding a widget.toml
// manifest, a main.lua or an init.lua, or a single file base/<identity>.lua.
type Loader struct {
	base string
}

// Bundle is a resolved widget module location.
type Bundle struct {
	Identity string
	Dir      string
	Main     string    // absolute path of the entry module
	Manifest *Manifest // nil for bundles without widget.toml
}

// NewLoader creates a loader rooted at base.
func NewLoader(base string) *Loader {
	return &Loader{base: base}
}

// Base returns the widget base directory.
func (l *Loader) Base() string {
	return l.base
}

// identityPattern keeps identities usable as single path elements: no
// separators, no leading dot.
var identityPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidIdentity reports whether an identity can be resolved safely against
// the filesystem and used as a module path segment.
func ValidIdentity(identity string) bool {
	return identityPattern.MatchString(identity)
}

// ModulePath returns the module namespace for a widget identity,
// "widgets/<identity>". Every module the widget loads registers under it,
// and stopping the widget unloads the whole prefix.
func ModulePath(identity string) string {
	return ModuleNamespace + "/" + identity
}

// Module returns the registry path of the bundle's entry module:
// "widgets/<identity>/<stem of the entry file>".
func (b *Bundle) Module() string {
	stem := strings.TrimSuffix(filepath.Base(b.Main), filepath.Ext(b.Main))
	return ModulePath(b.Identity) + "/" + stem
}

// DefaultOptions returns the manifest's option defaults, or nil.
func (b *Bundle) DefaultOptions() map[string]any {
	if b.Manifest == nil {
		return nil
	}
	return b.Manifest.Options
}

// Resolve locates the bundle for an identity. Directory bundles win over a
// single-file bundle of the same name.
func (l *Loader) Resolve(identity string) (*Bundle, error) {
	if !ValidIdentity(identity) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentity, identity)
	}

	dir := filepath.Join(l.base, identity)
	if stat, err := os.Stat(dir); err == nil && stat.IsDir() {
		return l.resolveDir(identity, dir)
	}

	single := filepath.Join(l.base, identity+".lua")
	if _, err := os.Stat(single); err == nil {
		return &Bundle{Identity: identity, Dir: l.base, Main: single}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrBundleNotFound, identity)
}

// resolveDir resolves a directory bundle: the manifest decides the entry
// module when present, otherwise the conventional entry files are tried.
func (l *Loader) resolveDir(identity, dir string) (*Bundle, error) {
	manifestPath := filepath.Join(dir, ManifestFile)
	if _, err := os.Stat(manifestPath); err == nil {
		m, err := LoadManifest(manifestPath)
		if err != nil {
			return nil, err
		}
		main := m.MainPath()
		if _, err := os.Stat(main); err != nil {
			return nil, fmt.Errorf("%w: %s: missing %s", ErrNoEntryPoint, identity, m.Main)
		}
		return &Bundle{Identity: identity, Dir: dir, Main: main, Manifest: m}, nil
	}

	for _, name := range []string{"main.lua", "init.lua"} {
		entry := filepath.Join(dir, name)
		if _, err := os.Stat(entry); err == nil {
			return &Bundle{Identity: identity, Dir: dir, Main: entry}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoEntryPoint, identity)
}

// Discover lists the widget identities available under the base directory,
// sorted by name. A missing base directory yields an empty list.
func (l *Loader) Discover() ([]string, error) {
	entries, err := os.ReadDir(l.base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	seen := make(map[string]bool)
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() {
			if filepath.Ext(name) != ".lua" {
				continue
			}
			name = strings.TrimSuffix(name, ".lua")
		}
		if ValidIdentity(name) {
			seen[name] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// IdentityFor maps a filesystem path inside the base directory back to the
// identity whose bundle contains it. Used by the watcher to turn file
// events into reloads.
func (l *Loader) IdentityFor(fsPath string) (string, bool) {
	rel, err := filepath.Rel(l.base, fsPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}

	name := rel
	if i := strings.IndexRune(rel, filepath.Separator); i >= 0 {
		name = rel[:i]
	} else {
		if filepath.Ext(name) != ".lua" {
			return "", false
		}
		name = strings.TrimSuffix(name, ".lua")
	}

	if !ValidIdentity(name) {
		return "", false
	}
	return name, true
}
