// Package cli implements the wbs command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"siteplan/internal/config"
	"siteplan/internal/db"
	"siteplan/pkg/task"
	"siteplan/pkg/wbs"
)

// options holds the global flags shared by every command.
type options struct {
	cfgFile string
	driver  string
	dsn     string
	verbose bool
	noColor bool
}

// env is what a command needs once configuration has been resolved.
type env struct {
	cfg     *config.Config
	store   task.Store
	closeFn func()
	logger  *slog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "wbs",
		Short: "Work breakdown structure engine",
		Long: `wbs keeps a project's tasks and milestones as a flat, parent-referencing
list and rebuilds the work breakdown tree, its weighted completion and its
milestone view after every change.

Quick start:
  wbs task add site-a "Foundation"          Create a root task
  wbs task add site-a "Excavation" --parent <id>
  wbs tree site-a                           Show the tree
  wbs progress site-a                       Show completion
  wbs serve                                 Serve the HTTP API`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ./wbs.yaml or $HOME/.wbs/wbs.yaml)")
	root.PersistentFlags().StringVar(&opts.driver, "store", "", "store driver: memory, sqlite or postgres")
	root.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "store data source name")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newTreeCmd(opts))
	root.AddCommand(newProgressCmd(opts))
	root.AddCommand(newMilestonesCmd(opts))
	root.AddCommand(newTaskCmd(opts))
	root.AddCommand(newImportCmd(opts))
	root.AddCommand(newExportCmd(opts))
	return root
}

// Execute runs the root command with the process arguments.
func Execute() error {
	return Run(os.Args[1:])
}

// Run runs the root command with args. SIGINT and SIGTERM cancel its context.
func Run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := NewRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// load resolves configuration, applies flag overrides, installs the slog
// handler and opens the store.
func (o *options) load(ctx context.Context, stderr io.Writer) (*env, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	store, closeFn, err := db.OpenStore(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	logger.Debug("store opened", "driver", cfg.Store.Driver)
	return &env{cfg: cfg, store: store, closeFn: closeFn, logger: logger}, nil
}

// config loads the configuration and applies the global flags on top.
func (o *options) config() (*config.Config, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, err
	}
	if o.driver != "" {
		cfg.SetDriver(o.driver)
	}
	if o.dsn != "" {
		cfg.Store.DSN = o.dsn
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session loads the tree of one project.
func (e *env) session(ctx context.Context, projectID string) (*wbs.Session, error) {
	s := wbs.NewSession(e.store, projectID, wbs.WithPolicy(e.cfg.Policy()), wbs.WithLogger(e.logger))
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	}
	return slog.New(slog.NewTextHandler(w, hopts)), nil
}

// withEnv wraps a RunE body with environment setup and teardown.
func withEnv(o *options, run func(cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := o.load(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer e.closeFn()
		return run(cmd, e, args)
	}
}
