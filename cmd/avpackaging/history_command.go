package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"avpackaging/internal/ledger"
	"avpackaging/internal/packaging"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var refID string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded packaging runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return ctx.withLedger(func(store *ledger.Store) error {
				if store == nil {
					fmt.Fprintln(out, "Run ledger is disabled (ledger.enabled = false)")
					return nil
				}
				runs, err := store.List(cmd.Context(), ledger.Filter{RefID: refID, Limit: limit})
				if err != nil {
					return fmt.Errorf("list runs: %w", err)
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}

				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					state := packaging.Label(run.State)
					if run.FailedState != "" {
						state = fmt.Sprintf("%s (%s)", state, packaging.Label(run.FailedState))
					}
					rows = append(rows, []string{
						run.StartedAt.Local().Format(time.DateTime),
						run.RefID,
						packaging.Label(run.Kind),
						state,
						formatDuration(run.Duration()),
						truncate(run.ErrorMessage, 180),
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					{Header: "Started"},
					{Header: "RefID"},
					{Header: "Kind"},
					{Header: "State"},
					{Header: "Duration", Right: true},
					{Header: "Error", MaxWidth: 60},
				}, rows))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&refID, "refid", "", "Only show runs for this reference id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	return cmd
}
