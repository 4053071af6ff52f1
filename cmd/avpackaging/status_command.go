package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"avpackaging/internal/preflight"
	"avpackaging/internal/services/aspace"
	"avpackaging/internal/staging"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var skipCatalog bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show readiness checks and local working files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var catalog preflight.Pinger
			if !skipCatalog {
				catalog = aspace.New(cfg)
			}
			results := preflight.RunAll(cmd.Context(), cfg, catalog)

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Name, passFail(r.Passed), r.Detail})
			}
			fmt.Fprintln(out, renderTable([]column{
				{Header: "Check"},
				{Header: "Status"},
				{Header: "Detail", MaxWidth: 70},
			}, rows))

			artifacts, err := staging.ListArtifacts(staging.Layout{Root: cfg.Paths.TmpDir})
			if err != nil {
				return fmt.Errorf("list working files: %w", err)
			}
			if len(artifacts) == 0 {
				fmt.Fprintf(out, "\nNo working files in %s\n", cfg.Paths.TmpDir)
				return nil
			}

			fmt.Fprintf(out, "\nWorking files in %s\n", cfg.Paths.TmpDir)
			var total int64
			artifactRows := make([][]string, 0, len(artifacts))
			for _, a := range artifacts {
				total += a.Size
				artifactRows = append(artifactRows, []string{
					a.Name,
					a.RefID,
					formatDuration(time.Since(a.ModTime)),
					formatBytes(a.Size),
					yesNo(a.Locked),
				})
			}
			fmt.Fprintln(out, renderTable([]column{
				{Header: "Name"},
				{Header: "RefID"},
				{Header: "Age", Right: true},
				{Header: "Size", Right: true},
				{Header: "Running"},
			}, artifactRows))
			fmt.Fprintf(out, "Total: %d entries, %s\n", len(artifacts), formatBytes(total))
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipCatalog, "skip-catalog", false, "Skip the ArchivesSpace reachability check")
	return cmd
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
