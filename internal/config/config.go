// Package config loads the host configuration for the mosaic binary.
//
// Configuration is a single TOML file. Every field has a default, so the
// host runs without one; a file named explicitly must exist and parse.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Defaults applied by Default and under omitted file keys.
const (
	DefaultWidgetPath  = "widgets"
	DefaultLogLevel    = "info"
	DefaultLoadTimeout = 10 * time.Second
	DefaultDebounce    = 500 * time.Millisecond
)

// Duration accepts TOML duration strings like "10s" or "500ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the host configuration.
type Config struct {
	// WidgetPath is the directory widget bundles are resolved under.
	WidgetPath string `toml:"widget_path"`

	// RulesFile is the permission rules file. The extension selects the
	// source: .yaml/.yml or .json. Empty runs without granted rules.
	RulesFile string `toml:"rules_file"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `toml:"log_level"`

	// LoadTimeout bounds a single widget module load.
	LoadTimeout Duration `toml:"load_timeout"`

	// DebounceInterval coalesces file events into one reload.
	DebounceInterval Duration `toml:"debounce_interval"`

	// EmitEnforcement filters widget publishes through emit grants.
	EmitEnforcement bool `toml:"emit_enforcement"`

	// Watch reloads widgets when their bundles change on disk.
	Watch bool `toml:"watch"`

	// Widgets are started at boot, in order.
	Widgets []WidgetEntry `toml:"widgets"`
}

// WidgetEntry declares one widget the host starts at boot.
type WidgetEntry struct {
	Identity string         `toml:"identity"`
	Element  string         `toml:"element"`
	Options  map[string]any `toml:"options"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		WidgetPath:       DefaultWidgetPath,
		LogLevel:         DefaultLogLevel,
		LoadTimeout:      Duration(DefaultLoadTimeout),
		DebounceInterval: Duration(DefaultDebounce),
	}
}

// Load reads and validates a configuration file. File keys override the
// defaults. A missing file is an error: a path named explicitly is
// expected to exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, newParseError(path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values. The first violation is returned as a
// *FieldError naming the offending key.
func (c *Config) Validate() error {
	if c.WidgetPath == "" {
		return &FieldError{Field: "widget_path", Message: "must not be empty"}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return &FieldError{Field: "log_level", Message: fmt.Sprintf("unknown level %q", c.LogLevel)}
	}
	if c.LoadTimeout <= 0 {
		return &FieldError{Field: "load_timeout", Message: "must be positive"}
	}
	if c.DebounceInterval <= 0 {
		return &FieldError{Field: "debounce_interval", Message: "must be positive"}
	}
	for i, w := range c.Widgets {
		if w.Identity == "" {
			return &FieldError{
				Field:   fmt.Sprintf("widgets[%d].identity", i),
				Message: "must not be empty",
			}
		}
	}
	return nil
}

// SlogLevel maps the configured log level onto slog. Validate guarantees
// the level is known; anything else reads as info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FieldError reports an invalid configuration field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ParseError reports a malformed configuration file.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func newParseError(path string, err error) *ParseError {
	pe := &ParseError{Path: path, Message: err.Error(), Err: err}
	var de *toml.DecodeError
	if errors.As(err, &de) {
		pe.Line, pe.Column = de.Position()
	}
	return pe
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
