package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/wedplan/internal/entity"
	"github.com/roach88/wedplan/internal/planner"
	"github.com/roach88/wedplan/internal/syncstore"
)

// NewSummaryCommand creates the summary command.
func NewSummaryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "summary",
		Short:         "Show the planning dashboard",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: planCommand(rootOpts, func(_ context.Context, e *env, _ *cobra.Command, _ []string) error {
			s := e.session.Summary()
			if e.formatter.Format == "json" {
				return e.formatter.Success(s)
			}
			return printSummary(e.formatter, s, e.session.States())
		}),
	}
}

func printSummary(f *OutputFormatter, s planner.Summary, states map[string]syncstore.State) error {
	money := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

	rows := [][]string{
		{"tasks", fmt.Sprintf("%d/%d done (%d%%)", s.Tasks.Completed, s.Tasks.Total, s.Tasks.Progress)},
		{"milestones", fmt.Sprintf("%d/%d done", s.Milestones.Done, s.Milestones.Total)},
		{"guests", fmt.Sprintf("%d invitations, %d people (%d confirmed)",
			s.Guests.Invitations, s.Guests.Headcount, s.Guests.ByRSVP["confirmado"])},
		{"budget", fmt.Sprintf("%s committed of %s, %s paid", money(s.Budget.Committed), money(s.Budget.Target), money(s.Budget.Paid))},
		{"ideas", fmt.Sprintf("%d (%d favorites)", s.Ideas.Total, s.Ideas.Favorites)},
		{"venues", fmt.Sprintf("%d reserved, %d to visit", s.Venues["reservado"], s.Venues["por-visitar"])},
	}
	if next := s.Milestones.Next; next != nil {
		rows = append(rows, []string{"next", fmt.Sprintf("%s %s", next.Date, next.Title)})
	}
	if s.Budget.Over {
		rows = append(rows, []string{"warning", "over budget by " + money(-s.Budget.Remaining)})
	}
	fmt.Fprintln(f.Writer, renderTable([]string{"", ""}, rows, isTerminal(f.Writer)))

	if f.Verbose {
		for _, name := range kindNames() {
			fmt.Fprintf(f.GetErrWriter(), "%s: %s\n", name, states[name])
		}
	}
	return nil
}

// TargetResult is the JSON payload of target.
type TargetResult struct {
	Amount float64 `json:"amount"`
	Synced bool    `json:"synced"`
}

// NewTargetCommand creates the target command.
func NewTargetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "target [amount]",
		Short: "Show or set the budget target",
		Long: `Show or set the overall budget target. Amounts accept both
"15000.50" and "15.000,50".`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: planCommand(rootOpts, func(ctx context.Context, e *env, _ *cobra.Command, args []string) error {
			if len(args) == 1 {
				if _, ok := entity.ParseNumber(args[0]); !ok {
					return e.fail("target", fmt.Errorf("%w: amount %q", planner.ErrInvalid, args[0]))
				}
				if err := e.session.Target.Set(ctx, args[0]); err != nil {
					return e.fail("target", err)
				}
			}
			result := TargetResult{Amount: e.session.Target.Get().Amount, Synced: e.session.Target.Active()}
			if e.formatter.Format == "json" {
				return e.formatter.Success(result)
			}
			fmt.Fprintf(e.formatter.Writer, "Budget target: %s\n", strconv.FormatFloat(result.Amount, 'f', 2, 64))
			return nil
		}),
	}
}

// idCommand builds a command whose body is one planner helper on an id.
func idCommand(rootOpts *RootOptions, use, short, kind string, nargs int, run func(ctx context.Context, app *planner.App, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.ExactArgs(nargs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: planCommand(rootOpts, func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
			if err := run(ctx, e.session.App, args); err != nil {
				return e.fail(cmd.Name(), err)
			}
			coll, err := collectionFor(e.session.App, kind)
			if err != nil {
				return err
			}
			return reportMutation(e, coll, cmd.Name(), args[0])
		}),
	}
}

// NewToggleCommand creates the toggle command.
func NewToggleCommand(rootOpts *RootOptions) *cobra.Command {
	return idCommand(rootOpts, "toggle <task-id>", "Mark a task done or not done", entity.Tasks.Name, 1,
		func(ctx context.Context, app *planner.App, args []string) error {
			return app.ToggleTask(ctx, args[0])
		})
}

// NewRSVPCommand creates the rsvp command.
func NewRSVPCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := idCommand(rootOpts, "rsvp <guest-id> <answer>", "Record a guest's answer", entity.Guests.Name, 2,
		func(ctx context.Context, app *planner.App, args []string) error {
			return app.SetRSVP(ctx, args[0], args[1])
		})
	cmd.Long = "Record a guest's answer: one of pendiente, confirmado, rechazado."
	return cmd
}

// NewStatusCommand creates the status command for milestones and venues.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <milestones|venues> <id> <status>",
		Short: "Move a milestone or venue to another status",
		Long: `Move a milestone or venue to another status.

Milestones: pendiente, en-curso, hecho
Venues:     por-visitar, visitado, reservado, descartado`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: planCommand(rootOpts, func(ctx context.Context, e *env, _ *cobra.Command, args []string) error {
			coll, err := collectionFor(e.session.App, args[0])
			if err != nil {
				return e.fail("status", err)
			}
			switch coll.Name() {
			case entity.Milestones.Name:
				err = e.session.SetMilestoneStatus(ctx, args[1], args[2])
			case entity.Venues.Name:
				err = e.session.SetVenueStatus(ctx, args[1], args[2])
			default:
				err = fmt.Errorf("%w: %s have no status", errInvalidArgs, coll.Name())
			}
			if err != nil {
				return e.fail("status", err)
			}
			return reportMutation(e, coll, "status", args[1])
		}),
	}
}

// NewFavoriteCommand creates the favorite command.
func NewFavoriteCommand(rootOpts *RootOptions) *cobra.Command {
	return idCommand(rootOpts, "favorite <idea-id>", "Star or unstar an idea", entity.Ideas.Name, 1,
		func(ctx context.Context, app *planner.App, args []string) error {
			return app.ToggleFavorite(ctx, args[0])
		})
}

// NewPaidCommand creates the paid command.
func NewPaidCommand(rootOpts *RootOptions) *cobra.Command {
	var actual string
	cmd := idCommand(rootOpts, "paid <budget-id>", "Mark a budget line paid", entity.Budget.Name, 1,
		func(ctx context.Context, app *planner.App, args []string) error {
			var amount *float64
			if actual != "" {
				v, ok := entity.ParseNumber(actual)
				if !ok {
					return fmt.Errorf("%w: actual %q", planner.ErrInvalid, actual)
				}
				amount = &v
			}
			return app.MarkPaid(ctx, args[0], amount)
		})
	cmd.Flags().StringVar(&actual, "actual", "", "amount actually paid")
	return cmd
}

// AttachResult is the JSON payload of attach.
type AttachResult struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// NewAttachCommand creates the attach command.
func NewAttachCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "attach <idea-id> <image-file>",
		Short:         "Upload an image for an idea",
		Long:          "Upload an image to the configured blob store and link it from the idea.",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: planCommand(rootOpts, func(ctx context.Context, e *env, _ *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return e.fail("attach", fmt.Errorf("%w: %v", errInvalidArgs, err))
			}
			defer f.Close()

			url, err := e.session.AttachImage(ctx, args[0], filepath.Base(args[1]), f)
			if errors.Is(err, planner.ErrNoBlobStore) {
				return e.fail("attach", fmt.Errorf("%w (set blob.backend in the config)", err))
			}
			if err != nil {
				return e.fail("attach", err)
			}
			if e.formatter.Format == "json" {
				return e.formatter.Success(AttachResult{ID: args[0], URL: url})
			}
			fmt.Fprintf(e.formatter.Writer, "✓ attached %s\n", url)
			return nil
		}),
	}
}
