package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/openfroyo/froyo-git/pkg/engine"
	"github.com/openfroyo/froyo-git/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		runID  string
		limit  int
		events bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past runs",
		Long: `List the runs recorded in the state database, newest first.

With --run, the steps of one run are shown in execution order, followed by
its events when --events is set.`,
		Example: `  # Last runs
  froyo-git history

  # Steps and events of one run
  froyo-git history --run 6f1c... --events`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			settings, err := LoadSettings(ctx, envconfig.OsLookuper())
			if err != nil {
				return err
			}
			settings.override(cmd)

			store, err := stores.Open(ctx, settings.StateDB)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			if runID == "" {
				runs, err := store.ListRuns(ctx, limit, 0)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(out, runs)
				}
				printRuns(out, runs)
				return nil
			}

			run, err := store.GetRun(ctx, runID)
			if errors.Is(err, stores.ErrNotFound) {
				return fmt.Errorf("run %s not found", runID)
			}
			if err != nil {
				return err
			}
			steps, err := store.ListSteps(ctx, runID)
			if err != nil {
				return err
			}
			var timeline []*stores.Event
			if events {
				timeline, err = store.GetEvents(ctx, stores.EventFilter{RunID: &runID}, -1, 0)
				if err != nil {
					return err
				}
			}

			if jsonOutput {
				return writeJSON(out, struct {
					Run    *engine.RunRecord    `json:"run"`
					Steps  []*engine.StepRecord `json:"steps"`
					Events []*stores.Event      `json:"events,omitempty"`
				}{run, steps, timeline})
			}
			printRun(out, run, steps, timeline)
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "show the steps of one run")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")
	cmd.Flags().BoolVar(&events, "events", false, "include the events of the run")

	return cmd
}

func printRuns(w io.Writer, runs []*engine.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	table := newTable(w, "Run", "Status", "Operations", "Started", "Duration", "Root")
	for _, run := range runs {
		_ = table.Append([]string{
			run.ID,
			string(run.Status),
			fmt.Sprint(run.OperationCount),
			run.StartedAt.Local().Format(time.DateTime),
			runDuration(run),
			run.RootPath,
		})
	}
	_ = table.Render()
}

func printRun(w io.Writer, run *engine.RunRecord, steps []*engine.StepRecord, events []*stores.Event) {
	fmt.Fprintf(w, "%s %s\n", headerColor("Run:"), run.ID)
	fmt.Fprintf(w, "%s %s\n", headerColor("Status:"), run.Status)
	fmt.Fprintf(w, "%s %s\n", headerColor("Root:"), run.RootPath)
	fmt.Fprintf(w, "%s %s (%s)\n", headerColor("Started:"), run.StartedAt.Local().Format(time.DateTime), runDuration(run))
	if run.Error != "" {
		fmt.Fprintf(w, "%s %s\n", errorColor("Error:"), run.Error)
	}

	if len(steps) > 0 {
		fmt.Fprintln(w)
		table := newTable(w, "#", "Kind", "Target", "Status", "Error")
		for _, step := range steps {
			_ = table.Append([]string{
				fmt.Sprint(step.Seq),
				string(step.Kind),
				step.TargetPath,
				string(step.Status),
				step.Error,
			})
		}
		_ = table.Render()
	}

	if len(events) > 0 {
		fmt.Fprintln(w)
		for _, ev := range events {
			fmt.Fprintf(w, "%s %-5s %-22s %s\n", ev.Timestamp.Local().Format(time.TimeOnly), ev.Level, ev.Type, ev.Message)
		}
	}
}

func runDuration(run *engine.RunRecord) string {
	if run.CompletedAt == nil {
		return "-"
	}
	return run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
}
