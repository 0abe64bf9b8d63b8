package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/wedplan/internal/config"
	"github.com/roach88/wedplan/internal/hub"
	"github.com/roach88/wedplan/internal/logging"
	"github.com/roach88/wedplan/internal/metrics"
	"github.com/roach88/wedplan/internal/planner"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr    string
	Origins []string
}

const shutdownTimeout = 5 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a sync hub",
		Long: `Run a sync hub that planners connect to with remote.mode=hub.

The hub keeps every collection in the backend selected by hub.backend
(sqlite, postgres or memory) and pushes snapshots to connected clients.
It runs until interrupted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides hub.addr)")
	cmd.Flags().StringSliceVar(&opts.Origins, "allow-origin", nil, "browser origins allowed to connect")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load config", err)
	}
	if opts.Addr != "" {
		cfg.Hub.Addr = opts.Addr
	}

	logger, err := logging.FromConfig(cfg.Log, opts.Verbose, cmd.ErrOrStderr())
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "configure logging", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, err := planner.OpenDocuments(ctx, cfg, logger.Logger)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "open documents", err)
	}
	defer docs.Close()

	hubCfg := hub.Config{
		Addr:           cfg.Hub.Addr,
		Project:        cfg.Hub.Project,
		Logger:         logger.Logger,
		OriginPatterns: opts.Origins,
	}
	if cfg.Hub.Metrics {
		hubCfg.Metrics = metrics.New()
	}

	server := hub.New(docs, hubCfg)
	if err := server.Start(); err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "start hub", err)
	}

	if formatter.Format == "json" {
		_ = formatter.Success(map[string]any{"addr": server.Addr(), "project": cfg.Hub.Project})
	} else {
		fmt.Fprintf(formatter.Writer, "Hub listening on %s (project %q, %s backend)\n", server.Addr(), cfg.Hub.Project, cfg.Hub.Backend)
	}

	<-ctx.Done()
	logger.Info("shutting down hub")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "stop hub", err)
	}
	return nil
}
