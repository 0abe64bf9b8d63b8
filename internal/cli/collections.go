package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/wedplan/internal/entity"
	"github.com/roach88/wedplan/internal/planner"
)

var kindHelp = "Kinds: " + strings.Join(entity.CollectionNames(), ", ")

// ListResult is the JSON payload of list.
type ListResult struct {
	Kind    string          `json:"kind"`
	State   string          `json:"state"`
	Records []entity.Record `json:"records"`
}

// MutationResult is the JSON payload of add, update and delete.
type MutationResult struct {
	Kind  string `json:"kind"`
	ID    string `json:"id"`
	Op    string `json:"op"`
	State string `json:"state"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <kind>",
		Short: "List a collection",
		Long:  "List a collection in display order.\n\n" + kindHelp,
		Example: `  wedplan list tasks
  wedplan list guests --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: planCommand(rootOpts, func(_ context.Context, e *env, _ *cobra.Command, args []string) error {
			coll, err := collectionFor(e.session.App, args[0])
			if err != nil {
				return e.fail("list", err)
			}
			return printCollection(e.formatter, coll, coll.Records())
		}),
	}
}

func printCollection(f *OutputFormatter, coll collection, records []entity.Record) error {
	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = coll.Row(rec)
	}
	return f.Table(ListResult{
		Kind:    coll.Name(),
		State:   coll.State().String(),
		Records: records,
	}, coll.Headers(), rows)
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <kind> key=value...",
		Short: "Add an entry to a collection",
		Long: `Add an entry to a collection. Fields are given as key=value pairs;
date fields accept phrases such as "next saturday".

` + kindHelp,
		Example: `  wedplan add tasks description="Reservar fotógrafo" priority=alta dueDate="in 2 weeks"
  wedplan add guests name="Lucía" side=novia companions=1`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: planCommand(rootOpts, func(ctx context.Context, e *env, _ *cobra.Command, args []string) error {
			coll, err := collectionFor(e.session.App, args[0])
			if err != nil {
				return e.fail("add", err)
			}
			rec, err := parseFields(coll.Name(), args[1:])
			if err != nil {
				return e.fail("add", err)
			}
			id, ok, err := coll.Add(ctx, rec)
			if !ok && err == nil {
				return e.fail("add", fmt.Errorf("%w: entry is missing its name", planner.ErrInvalid))
			}
			if err != nil {
				return e.fail("add", err)
			}
			return reportMutation(e, coll, "add", id)
		}),
	}
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "update <kind> <id> key=value...",
		Short:         "Change fields of an entry",
		Long:          "Change fields of an entry. Unknown fields and invalid values are ignored.\n\n" + kindHelp,
		Example:       `  wedplan update venues 0190c1d2-... status=visitado rating=4`,
		Args:          cobra.MinimumNArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: planCommand(rootOpts, func(ctx context.Context, e *env, _ *cobra.Command, args []string) error {
			coll, id, err := lookup(e, args[0], args[1])
			if err != nil {
				return e.fail("update", err)
			}
			changes, err := parseFields(coll.Name(), args[2:])
			if err != nil {
				return e.fail("update", err)
			}
			if err := coll.Update(ctx, id, changes); err != nil {
				return e.fail("update", err)
			}
			return reportMutation(e, coll, "update", id)
		}),
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <kind> <id>",
		Aliases:       []string{"rm"},
		Short:         "Delete an entry",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: planCommand(rootOpts, func(ctx context.Context, e *env, _ *cobra.Command, args []string) error {
			coll, id, err := lookup(e, args[0], args[1])
			if err != nil {
				return e.fail("delete", err)
			}
			if err := coll.Delete(ctx, id); err != nil {
				return e.fail("delete", err)
			}
			return reportMutation(e, coll, "delete", id)
		}),
	}
}

func lookup(e *env, kind, id string) (collection, string, error) {
	coll, err := collectionFor(e.session.App, kind)
	if err != nil {
		return nil, "", err
	}
	if !coll.Has(id) {
		return nil, "", fmt.Errorf("%s %s: %w", coll.Name(), id, planner.ErrNotFound)
	}
	return coll, id, nil
}

func reportMutation(e *env, coll collection, op, id string) error {
	result := MutationResult{Kind: coll.Name(), ID: id, Op: op, State: coll.State().String()}
	if e.formatter.Format == "json" {
		return e.formatter.Success(result)
	}
	fmt.Fprintf(e.formatter.Writer, "✓ %s %s %s\n", op, coll.Name(), id)
	e.formatter.VerboseLog("sync state: %s", result.State)
	return nil
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <kind>",
		Short: "Print a collection every time it changes",
		Long: `Print a collection every time it changes, locally or on the remote,
until interrupted. JSON output writes one object per change.

` + kindHelp,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: planCommand(rootOpts, func(ctx context.Context, e *env, _ *cobra.Command, args []string) error {
			coll, err := collectionFor(e.session.App, args[0])
			if err != nil {
				return e.fail("watch", err)
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watch(ctx, e.formatter, coll)
		}),
	}
}

// watch prints every emission of coll until ctx ends. Emissions are
// queued so a slow terminal never blocks the store.
func watch(ctx context.Context, f *OutputFormatter, coll collection) error {
	updates := make(chan []entity.Record, 16)
	unsubscribe := coll.Subscribe(func(records []entity.Record) {
		select {
		case updates <- records:
		default:
			// Drop the oldest pending emission; only the newest matters.
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- records:
			default:
			}
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case records := <-updates:
			if f.Format == "json" {
				if err := json.NewEncoder(f.Writer).Encode(ListResult{
					Kind:    coll.Name(),
					State:   coll.State().String(),
					Records: records,
				}); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintf(f.Writer, "── %s (%d, %s)\n", coll.Name(), len(records), coll.State())
			if err := printCollection(f, coll, records); err != nil {
				return err
			}
		}
	}
}
