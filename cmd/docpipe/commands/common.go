package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/docstore"
	derrors "git.home.luguber.info/inful/docpipe/internal/errors"
	"git.home.luguber.info/inful/docpipe/internal/events"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/repohost"
	"git.home.luguber.info/inful/docpipe/internal/services"
)

// Global carries state shared across subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI is the root command definition with global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"docpipe.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Process  ProcessCmd  `cmd:"" help:"Process one repository end to end"`
	Scan     ScanCmd     `cmd:"" help:"Scan the organization for repositories with document configuration"`
	Validate ValidateCmd `cmd:"" help:"Fetch and validate a repository's document configuration"`
	Export   ExportCmd   `cmd:"" help:"Re-export stored documents for a repository"`
	List     ListCmd     `cmd:"" help:"List stored repositories and their document counts"`
	Serve    ServeCmd    `cmd:"" help:"Run the webhook server and the scan daemon"`
	Init     InitCmd     `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; set up logging before any command code.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// loadConfig reads the configuration file and applies its logging settings.
func loadConfig(root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CategoryConfig, derrors.SeverityFatal,
			fmt.Sprintf("configuration not loaded from %s", root.Config))
	}
	configureLogging(cfg.Logging, root.Verbose)
	return cfg, nil
}

// configureLogging replaces the default logger per the configuration. The
// verbose flag wins over the configured level.
func configureLogging(cfg config.LoggingConfig, verbose bool) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// runtime bundles the pieces commands work with. cleanup closes whatever was
// opened and is safe to defer immediately.
type runtime struct {
	cfg     *config.Config
	runner  *services.Runner
	store   *docstore.Store
	cleanup func()
}

// newRuntime builds the full runner: host client, optional store, optional
// event publisher. Commands that talk to the host go through here.
func newRuntime(root *CLI) (*runtime, error) {
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}

	client, err := repohost.NewClient(cfg)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CategoryHost, derrors.SeverityFatal, "host client not created")
	}

	rt := &runtime{cfg: cfg, runner: services.NewRunner(cfg, client)}
	var closers []func()

	if cfg.Store.Path != "" {
		store, err := docstore.Open(cfg.Store.Path)
		if err != nil {
			return nil, derrors.Wrap(err, derrors.CategoryStore, derrors.SeverityFatal, "document store not opened")
		}
		rt.store = store
		rt.runner.WithStore(store)
		closers = append(closers, func() {
			if err := store.Close(); err != nil {
				slog.Warn("store close failed", logfields.Error(err))
			}
		})
	}

	if cfg.Events.Enabled {
		publisher, err := events.Connect(cfg.Events)
		if err != nil {
			slog.Warn("event publisher unavailable, continuing without events", logfields.Error(err))
		} else {
			rt.runner.WithPublisher(publisher)
			closers = append(closers, func() { _ = publisher.Close() })
		}
	}

	rt.cleanup = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return rt, nil
}

// roundTo keeps printed durations readable.
const roundTo = time.Millisecond

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// openStore opens the configured document store for commands that do not
// need a host client.
func openStore(cfg *config.Config) (*docstore.Store, error) {
	if cfg.Store.Path == "" {
		return nil, derrors.New(derrors.CategoryConfig, derrors.SeverityFatal, "no document store configured (set store.path)")
	}
	store, err := docstore.Open(cfg.Store.Path)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CategoryStore, derrors.SeverityFatal, "document store not opened")
	}
	return store, nil
}
