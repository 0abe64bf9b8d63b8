package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/wedplan/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Path   string         `json:"path,omitempty"`
	Config *config.Config `json:"config,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a configuration file",
		Long: `Validate a wedplan configuration file against the configuration schema
without opening any database or remote.

With no argument the file given by --config is checked, or the one the
other commands would find (./wedplan.yaml, ~/.wedplan/wedplan.yaml).
WEDPLAN_* environment variables are applied as usual.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Config
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(path)
	if err != nil {
		return outputValidationError(formatter, path, err)
	}

	formatter.VerboseLog("data dir: %s", cfg.DataDir)
	formatter.VerboseLog("remote: %s", cfg.Remote.Mode)

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Path: path, Config: cfg})
	}
	if path == "" {
		fmt.Fprintln(formatter.Writer, "✓ Configuration valid")
	} else {
		fmt.Fprintf(formatter.Writer, "✓ %s is valid\n", path)
	}
	return nil
}

func outputValidationError(formatter *OutputFormatter, path string, err error) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Path: path, Error: err.Error()},
			Error: &CLIError{
				Code:    ErrCodeConfig,
				Message: err.Error(),
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if encErr := encoder.Encode(response); encErr != nil {
			return encErr
		}
		return WrapExitError(ExitFailure, "validation failed", err)
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	fmt.Fprintf(formatter.Writer, "  %s\n", err)

	// Validation failures = exit code 1
	return WrapExitError(ExitFailure, "validation failed", err)
}
