// Package main is the entry point for the mosaic widget host.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mosaicui/mosaic/internal/config"
	"github.com/mosaicui/mosaic/internal/mediator"
	"github.com/mosaicui/mosaic/internal/permission"
	"github.com/mosaicui/mosaic/internal/widget"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	// Startup validation fails fast; everything after this point is a
	// runtime fault handled by the mediation layer.
	if stat, err := os.Stat(cfg.WidgetPath); err != nil || !stat.IsDir() {
		fmt.Fprintf(os.Stderr, "Error: widget path %s is not a directory\n", cfg.WidgetPath)
		return 1
	}
	source, err := rulesSource(cfg.RulesFile, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	med := mediator.New(source,
		mediator.WithLogger(logger),
		mediator.WithMetrics(prometheus.DefaultRegisterer),
		mediator.WithEmitEnforcement(cfg.EmitEnforcement),
	)
	loader := widget.NewLoader(cfg.WidgetPath)
	manager := widget.NewManager(med, loader,
		widget.WithLogger(logger),
		widget.WithMetrics(prometheus.DefaultRegisterer),
		widget.WithSurface(logSurface{logger: logger}),
		widget.WithLoadTimeout(cfg.LoadTimeout.Std()),
	)
	defer manager.StopAll()

	if specs := bootSpecs(cfg, opts.widgets); len(specs) > 0 {
		// Load faults are not fatal to the host: failed widgets read as
		// errored, the rest keep running.
		if err := manager.Start(context.Background(), specs...); err != nil {
			logger.Error("widget start failed", "error", err)
		}
	}

	if cfg.Watch {
		watcher, err := widget.NewWatcher(manager, loader, logger, cfg.DebounceInterval.Std())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to watch %s: %v\n", cfg.WidgetPath, err)
			return 1
		}
		defer watcher.Close()
	}

	logger.Info("mosaic host running",
		"version", version,
		"widgets", manager.Len(),
		"watch", cfg.Watch,
	)

	// Block until asked to stop; deferred teardown stops the watcher
	// first, then every widget.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals

	logger.Info("shutting down")
	return 0
}

// options carries parsed command-line flags.
type options struct {
	configPath string
	logLevel   string
	watch      bool
	watchSet   bool
	widgets    []string
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&opts.watch, "watch", false, "Reload widgets when their bundles change")
	flag.BoolVar(&opts.watch, "w", false, "Reload widgets when their bundles change (shorthand)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Mosaic - permissioned widget mediation host\n\n")
		fmt.Fprintf(os.Stderr, "Usage: mosaic [options] [widgets...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  mosaic                      Start widgets from the config file\n")
		fmt.Fprintf(os.Stderr, "  mosaic clock weather        Start the named widget bundles\n")
		fmt.Fprintf(os.Stderr, "  mosaic -c mosaic.toml -w    Start with live bundle reload\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("Mosaic %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "watch" || f.Name == "w" {
			opts.watchSet = true
		}
	})

	// Remaining arguments are widget identities to start
	opts.widgets = flag.Args()

	return opts
}

// loadConfig merges the config file with flag overrides and validates the
// result.
func loadConfig(opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.watchSet {
		cfg.Watch = opts.watch
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bootSpecs combines config widget entries with identities named on the
// command line.
func bootSpecs(cfg *config.Config, extra []string) []widget.Spec {
	specs := make([]widget.Spec, 0, len(cfg.Widgets)+len(extra))
	for _, w := range cfg.Widgets {
		specs = append(specs, widget.Spec{
			Identity: w.Identity,
			Options:  w.Options,
			Element:  w.Element,
		})
	}
	for _, id := range extra {
		specs = append(specs, widget.Spec{Identity: id})
	}
	return specs
}

// rulesSource selects the permission source by rules file extension. With
// no file configured widgets hold no grants and subscribe to nothing.
func rulesSource(file string, logger *slog.Logger) (permission.Source, error) {
	if file == "" {
		logger.Warn("no rules file configured, widgets hold no grants")
		return permission.NewStaticSource(), nil
	}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		return permission.NewYAMLSource(file)
	case ".json":
		return permission.NewJSONSource(file)
	default:
		return nil, fmt.Errorf("unsupported rules file %s: use .yaml, .yml or .json", file)
	}
}

// logSurface is the host's stand-in for a real presentation layer:
// element lookups always succeed and child removal is logged.
type logSurface struct {
	logger *slog.Logger
}

// logElement logs mutations instead of applying them.
type logElement struct {
	selector string
	logger   *slog.Logger
}

func (s logSurface) Find(selector string) (widget.Element, error) {
	return logElement{selector: selector, logger: s.logger}, nil
}

func (e logElement) RemoveChildren() error {
	e.logger.Info("element cleared", "selector", e.selector)
	return nil
}
