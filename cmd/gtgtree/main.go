package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gtgtree/gtgtree/pkg/config"
	"github.com/gtgtree/gtgtree/pkg/loader"
	"github.com/gtgtree/gtgtree/pkg/tasks"
)

var Version = "dev"

// app carries what every subcommand needs after flag parsing.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	configPath string
	tasksPath  string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "gtgtree",
		Short:         "gtgtree - hierarchical task store with live filtered views",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default .gtgtree/config.yaml, or $"+config.EnvPath+")")
	flags.StringVarP(&a.tasksPath, "file", "f", "", "Task file (overrides tasks.path)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(treeCmd(a))
	rootCmd.AddCommand(watchCmd(a))
	rootCmd.AddCommand(snapshotCmd(a))
	rootCmd.AddCommand(mirrorCmd(a))
	rootCmd.AddCommand(addCmd(a))
	rootCmd.AddCommand(statusCmd(a))

	return rootCmd
}

// setup loads config and installs the logger. Flags win over the file.
func (a *app) setup(stderr io.Writer) error {
	var cfg *config.Config
	if a.configPath != "" {
		cfg = config.Default()
		if err := config.LoadFile(a.configPath, cfg); err != nil {
			return err
		}
	} else {
		var err error
		if cfg, err = config.Load("."); err != nil {
			return err
		}
	}
	if a.tasksPath != "" {
		cfg.Tasks.Path = a.tasksPath
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg
	a.logger = newLogger(stderr, cfg.Log)
	slog.SetDefault(a.logger)
	return nil
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openStore loads the task file into a fresh store. A missing file gives an
// empty store.
func (a *app) openStore() (*tasks.Store, error) {
	store := tasks.NewStore(tasks.WithLogger(a.logger))
	if err := a.reload(store); err != nil {
		return nil, err
	}
	return store, nil
}

// openSubtree loads rootID and the tasks below it; rootID becomes the only
// root of the returned store.
func (a *app) openSubtree(rootID string) (*tasks.Store, error) {
	records, err := loader.LoadRecordsFromFile(a.cfg.Tasks.Path)
	if err != nil {
		return nil, err
	}
	sub, err := loader.Subtree(rootID, records)
	if err != nil {
		return nil, err
	}
	store := tasks.NewStore(tasks.WithLogger(a.logger))
	if err := loader.Populate(store, sub.Records()); err != nil {
		a.logger.Warn("subtree has invalid entries", "root", rootID, "error", err)
	}
	a.logger.Debug("loaded subtree", "root", rootID, "count", sub.Len())
	return store, nil
}

// reload replaces the contents of store with the task file.
func (a *app) reload(store *tasks.Store) error {
	records, err := loader.LoadRecordsFromFile(a.cfg.Tasks.Path)
	if errors.Is(err, os.ErrNotExist) {
		a.logger.Info("no task file yet", "path", a.cfg.Tasks.Path)
		records = nil
	} else if err != nil {
		return err
	}

	store.Clear()
	if err := loader.Populate(store, records); err != nil {
		// Partial loads still render; the bad records are reported.
		a.logger.Warn("task file has invalid entries", "path", a.cfg.Tasks.Path, "error", err)
	}
	a.logger.Debug("loaded tasks", "path", a.cfg.Tasks.Path, "count", store.Count(false))
	return nil
}
