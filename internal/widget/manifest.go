package widget

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pelletier/go-toml/v2"
)

// ManifestFile is the optional bundle descriptor inside a widget directory.
const ManifestFile = "widget.toml"

// Manifest describes a widget bundle: metadata, the entry module and
// default options merged under the start options.
type Manifest struct {
	Name        string         `toml:"name"`
	Version     string         `toml:"version"`
	Description string         `toml:"description"`
	Main        string         `toml:"main"`
	Options     map[string]any `toml:"options"`

	// path to the bundle directory
	path string
}

// Manifest validation errors.
var (
	ErrInvalidMain    = errors.New("manifest: main must be a .lua file")
	ErrMainEscapes    = errors.New("manifest: main must stay inside the bundle")
	ErrInvalidVersion = errors.New("manifest: version must be valid semver")
)

// semverPattern validates version strings (simplified semver).
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// LoadManifest reads and validates a widget manifest from a file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	m.path = filepath.Dir(path)
	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// applyDefaults sets default values for optional fields.
func (m *Manifest) applyDefaults() {
	if m.Main == "" {
		m.Main = "main.lua"
	}
	if m.Name == "" {
		m.Name = filepath.Base(m.path)
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}
}

// Validate checks that the manifest is valid.
func (m *Manifest) Validate() error {
	if filepath.Ext(m.Main) != ".lua" {
		return fmt.Errorf("%w: %s", ErrInvalidMain, m.Main)
	}
	if !filepath.IsLocal(m.Main) {
		return fmt.Errorf("%w: %s", ErrMainEscapes, m.Main)
	}
	if m.Version != "" && !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
	}
	return nil
}

// Path returns the bundle directory.
func (m *Manifest) Path() string {
	return m.path
}

// MainPath returns the full path to the widget's entry module.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.path, m.Main)
}

// String returns a string representation of the manifest.
func (m *Manifest) String() string {
	return fmt.Sprintf("%s v%s", m.Name, m.Version)
}
