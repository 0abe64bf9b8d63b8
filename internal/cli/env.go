package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/wedplan/internal/config"
	"github.com/roach88/wedplan/internal/logging"
	"github.com/roach88/wedplan/internal/planner"
	"github.com/roach88/wedplan/internal/remote"
)

// env is what a planner command runs against: configuration, logger and
// an initialized session.
type env struct {
	cfg       *config.Config
	logger    *logging.Logger
	session   *planner.Session
	formatter *OutputFormatter
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// loadEnv reads configuration, opens the logger, and opens and
// initializes a planner session. Callers must Close it.
func loadEnv(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*env, error) {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}

	logger, err := logging.FromConfig(cfg.Log, opts.Verbose, cmd.ErrOrStderr())
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "configure logging", err)
	}

	session, err := planner.Open(ctx, cfg, logger.Logger, nil)
	if err != nil {
		_ = logger.Close()
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return nil, WrapExitError(ExitFailure, "open planner", err)
	}
	if err := session.Init(ctx); err != nil {
		_ = session.Close()
		_ = logger.Close()
		return nil, WrapExitError(ExitFailure, "start sync", err)
	}

	logger.Debug("planner ready", "data_dir", cfg.DataDir, "remote", cfg.Remote.Mode)
	return &env{cfg: cfg, logger: logger, session: session, formatter: formatter}, nil
}

// Close releases the session, then the logger.
func (e *env) Close() error {
	return errors.Join(e.session.Close(), e.logger.Close())
}

// fail reports err in the configured format and maps it to an exit code.
// Unknown ids and invalid values are command errors; everything else,
// including a rejected remote write, is a failure.
func (e *env) fail(message string, err error) error {
	code, exit := classify(err)
	_ = e.formatter.Error(code, fmt.Sprintf("%s: %v", message, err), nil)
	e.logger.Debug(message, slog.Any("error", err))
	return WrapExitError(exit, message, err)
}

func classify(err error) (string, int) {
	var syncErr *remote.SyncError
	switch {
	case errors.Is(err, planner.ErrNotFound):
		return ErrCodeNotFound, ExitCommandError
	case errors.Is(err, planner.ErrInvalid):
		return ErrCodeInvalid, ExitCommandError
	case errors.Is(err, errInvalidArgs):
		return ErrCodeArgs, ExitCommandError
	case errors.As(err, &syncErr):
		return ErrCodeRemote, ExitFailure
	}
	return ErrCodeGeneric, ExitFailure
}

// planCommand wraps a planner command body with env setup and teardown.
func planCommand(opts *RootOptions, run func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		e, err := loadEnv(ctx, opts, cmd)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := e.Close(); cerr != nil {
				e.formatter.VerboseLog("close: %v", cerr)
			}
		}()
		return run(ctx, e, cmd, args)
	}
}
