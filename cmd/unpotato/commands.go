package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"unpotato/internal/app"
	"unpotato/internal/reminder"
	"unpotato/internal/storage"
)

type rootFlags struct {
	config   string
	store    string
	logLevel string
}

func newRootCmd() *cobra.Command {
	var f rootFlags
	root := &cobra.Command{
		Use:   "unpotato",
		Short: "Recurring desktop reminders with an alarm that rings until dismissed",
		Long: `unpotato keeps a list of recurring reminders in a plain text file, one per
line ("<interval> <text>", e.g. "5m Fix your posture"). While "unpotato run" is
active every reminder pops up a notification on its interval and an alarm
sound loops until every open popup has been dismissed.

Intervals: <n>ms, <n>s, <n>m, <n>h, <n>d or <n>w.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&f.config, "config", "", "config file (default <user config dir>/un-potato/config.yaml)")
	root.PersistentFlags().StringVar(&f.store, "store", "", "reminder file (overrides store.path)")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides logging.level)")

	root.AddCommand(
		addCmd(&f),
		removeCmd(&f),
		listCmd(&f),
		runCmd(&f),
		historyCmd(&f),
	)
	return root
}

// withApp builds the App for one command and closes it afterwards.
func withApp(f *rootFlags, fn func(a *app.App) error) error {
	a, err := app.New(app.Options{ConfigPath: f.config, StorePath: f.store, LogLevel: f.logLevel})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func addCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "add <interval> <text...>",
		Short:   "Add a reminder",
		Example: "  unpotato add 5m Fix your posture\n  unpotato add 1h Drink water",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(f, func(a *app.App) error {
				rec, err := a.Add(args[0], args[1:])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added: %s\n", rec.Line())
				return nil
			})
		},
	}
}

func removeCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <index>",
		Short: "Remove the reminder at a zero-based index (see list)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("index must be an integer: %q", args[0])
			}
			return withApp(f, func(a *app.App) error {
				ok, err := a.Remove(index)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "no reminder at index %d\n", index)
				}
				return nil
			})
		},
	}
}

func listCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List reminders with their indices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(f, func(a *app.App) error {
				recs, err := a.List()
				if err != nil {
					return err
				}
				printList(cmd.OutOrStdout(), recs)
				return nil
			})
		},
	}
}

func printList(w io.Writer, recs []reminder.Record) {
	for i, r := range recs {
		fmt.Fprintf(w, "* %d: %s\n", i, r.Line())
	}
}

func runCmd(f *rootFlags) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run all reminders until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(f, func(a *app.App) error {
				return a.Run(cmd.Context(), watch)
			})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "reschedule when the reminder file changes")
	return cmd
}

func historyCmd(f *rootFlags) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent firings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if n <= 0 {
				return fmt.Errorf("--limit must be > 0")
			}
			return withApp(f, func(a *app.App) error {
				rows, err := a.History(cmd.Context(), n)
				if err != nil {
					return err
				}
				printHistory(cmd.OutOrStdout(), rows, time.Now())
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", 20, "number of firings to show")
	return cmd
}

func printHistory(w io.Writer, rows []storage.Firing, now time.Time) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"#", "Interval", "Reminder", "Fired", "Dismissed"})
	for _, r := range rows {
		dismissed := "open"
		if r.Dismissed() {
			dismissed = "after " + strings.TrimSpace(humanize.RelTime(r.FiredAt, r.DismissedAt, "", ""))
		}
		tw.AppendRow(table.Row{r.Index, r.Interval, r.Text, humanize.RelTime(r.FiredAt, now, "ago", "from now"), dismissed})
	}
	tw.Render()
}
