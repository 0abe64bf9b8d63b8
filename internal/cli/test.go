package cli

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/wedplan/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // glob on the scenario file name, without extension
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Kind   string   `json:"kind,omitempty"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult is the outcome of a test run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (r *TestResult) add(s ScenarioResult) {
	r.Scenarios = append(r.Scenarios, s)
	r.Total++
	if s.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run sync scenarios",
		Long: `Run sync scenarios against the stores with a scripted remote.

Each scenario file drives one collection through init, writes, remote
pushes and injected remote failures, then checks its assertions. When
golden/<name>.golden exists next to the scenario, the recorded trace
must match it too.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)`,
		Example: `  wedplan test ./scenarios
  wedplan test ./scenarios --filter "rollback_*"
  wedplan test ./scenarios --update
  wedplan test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose file name matches this glob")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := TestResult{Scenarios: []ScenarioResult{}}
	for _, file := range files {
		result.add(runScenario(file, opts, cmd))
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	if result.Total == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}
	return outputTestText(cmd, opts, result)
}

// findScenarioFiles returns every .yaml or .yml file under dir, sorted,
// optionally filtered by a glob on the base name without extension.
func findScenarioFiles(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	slices.Sort(files)
	return files, err
}

// runScenario executes a single scenario and returns the result. A
// scenario passes when its assertions hold and, unless --update is set,
// its trace matches the golden file when one exists.
func runScenario(scenarioFile string, opts *TestOptions, cmd *cobra.Command) ScenarioResult {
	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return reportScenario(cmd, opts, ScenarioResult{
			Name:   filepath.Base(scenarioFile),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}, "")
	}

	res := ScenarioResult{Name: scenario.Name, Kind: scenario.Kind}
	result, err := harness.Run(scenario)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return reportScenario(cmd, opts, res, "")
	}
	res.Errors = append(res.Errors, result.Errors...)

	goldenPath := harness.GoldenPath(scenarioFile, scenario)
	note := ""
	switch _, statErr := os.Stat(goldenPath); {
	case opts.Update:
		if err := harness.WriteGolden(goldenPath, scenario, result); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("failed to update golden file: %v", err))
		} else {
			note = " (golden updated)"
		}
	case os.IsNotExist(statErr):
		// Assertions only.
	default:
		match, err := harness.CompareGolden(goldenPath, scenario, result)
		switch {
		case err != nil:
			res.Errors = append(res.Errors, fmt.Sprintf("golden comparison failed: %v", err))
		case !match:
			res.Errors = append(res.Errors, "trace does not match golden file (run with --update to regenerate)")
		}
	}

	res.Pass = len(res.Errors) == 0
	return reportScenario(cmd, opts, res, note)
}

// reportScenario prints one scenario line in text mode.
func reportScenario(cmd *cobra.Command, opts *TestOptions, res ScenarioResult, note string) ScenarioResult {
	if opts.Format == "json" {
		return res
	}
	w := cmd.OutOrStdout()
	if res.Pass {
		fmt.Fprintf(w, "✓ %s%s\n", res.Name, note)
		return res
	}
	fmt.Fprintf(w, "✗ %s\n", res.Name)
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	return res
}

func failedError(result TestResult) error {
	if result.Failed == 0 {
		return nil
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
}

func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeTestFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}
	return failedError(result)
}

// outputTestText prints the summary line and, with --verbose, a
// pass/fail tally per kind.
func outputTestText(cmd *cobra.Command, opts *TestOptions, result TestResult) error {
	w := cmd.OutOrStdout()

	if opts.Verbose {
		type tally struct{ pass, fail int }
		byKind := map[string]*tally{}
		var kinds []string
		for _, s := range result.Scenarios {
			k := s.Kind
			if k == "" {
				k = "?"
			}
			if byKind[k] == nil {
				byKind[k] = &tally{}
				kinds = append(kinds, k)
			}
			if s.Pass {
				byKind[k].pass++
			} else {
				byKind[k].fail++
			}
		}
		slices.Sort(kinds)
		rows := make([][]string, len(kinds))
		for i, k := range kinds {
			rows[i] = []string{k, strconv.Itoa(byKind[k].pass), strconv.Itoa(byKind[k].fail)}
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, renderTable([]string{"kind", "passed", "failed"}, rows, isTerminal(w)))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if err := failedError(result); err != nil {
		return err
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
