package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"avpackaging/internal/staging"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale working files",
		Long: `Remove working directories, set-aside derivative directories and
archives in tmp_dir that are older than --max-age.

Runs killed mid-flight leave these behind. Files belonging to a reference id
whose run is still in progress are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxAge < 0 {
				return errors.New("--max-age must not be negative")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			result := staging.CleanStale(cmd.Context(), staging.Layout{Root: cfg.Paths.TmpDir}, maxAge, logger)
			out := cmd.OutOrStdout()
			for _, path := range result.Removed {
				fmt.Fprintf(out, "Removed %s\n", path)
			}
			for _, path := range result.Skipped {
				fmt.Fprintf(out, "Skipped %s (run in progress)\n", path)
			}
			for _, e := range result.Errors {
				fmt.Fprintf(out, "Failed %s: %v\n", e.Path, e.Error)
			}
			fmt.Fprintf(out, "Removed %d, skipped %d, failed %d\n", len(result.Removed), len(result.Skipped), len(result.Errors))
			if len(result.Errors) > 0 {
				return fmt.Errorf("clean: %d entries could not be removed", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 24*time.Hour, "Minimum age of entries to remove")
	return cmd
}
