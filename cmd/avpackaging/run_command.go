package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"

	"avpackaging/internal/config"
	"avpackaging/internal/ledger"
	"avpackaging/internal/logging"
	"avpackaging/internal/metadata"
	"avpackaging/internal/notifications"
	"avpackaging/internal/packaging"
	"avpackaging/internal/services"
	"avpackaging/internal/services/aspace"
	"avpackaging/internal/storage"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var refID string
	var rightsIDs string
	var kind string
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Package one reference id end to end",
		Long: `Stage the source objects for a reference id, bag and compress the
preservation master, deliver derivatives and the package, then purge the
source objects.

--refid and --rights-ids fall back to the REFID and RIGHTS_IDS environment
variables. The command exits non-zero when the run fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			refID = firstNonEmpty(refID, os.Getenv("REFID"))
			rightsIDs = firstNonEmpty(rightsIDs, os.Getenv("RIGHTS_IDS"))
			if refID == "" {
				return errors.New("--refid (or REFID) is required")
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := executeRun(runCtx, ctx, packaging.Request{
				RefID:         refID,
				RightsIDs:     metadata.ParseRightsIDs(rightsIDs),
				Kind:          kind,
				SkipPreflight: skipPreflight,
			})
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			if !result.Succeeded() {
				return fmt.Errorf("run %s failed in %s: %w", result.RunID, result.FailedState, result.Err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&refID, "refid", "", "Archival object reference id to package")
	cmd.Flags().StringVar(&rightsIDs, "rights-ids", "", "Comma-separated rights statement ids")
	cmd.Flags().StringVar(&kind, "kind", "", "Expected media kind (audio or video)")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip local readiness checks before staging")
	return cmd
}

// newNotifier builds the outcome publisher. The AWS config is loaded only
// when a topic is configured.
var newNotifier = func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (notifications.Service, error) {
	var awsCfg aws.Config
	if strings.TrimSpace(cfg.Notifications.TopicARN) != "" {
		var err error
		if awsCfg, err = storage.AWSConfig(ctx, cfg); err != nil {
			return nil, err
		}
	}
	return notifications.NewService(cfg, awsCfg, logger), nil
}

func executeRun(runCtx context.Context, ctx *commandContext, req packaging.Request) (packaging.Result, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return packaging.Result{}, err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return packaging.Result{}, err
	}

	notifier, err := newNotifier(runCtx, cfg, logger)
	if err != nil {
		return packaging.Result{}, fmt.Errorf("build notifier: %w", err)
	}

	store, err := storage.Open(runCtx, cfg, logger)
	if err != nil {
		publishSetupFailure(runCtx, notifier, logger, req.RefID, err)
		return packaging.Result{}, fmt.Errorf("open storage: %w", err)
	}

	deps := packaging.Dependencies{
		Store:    store,
		Catalog:  aspace.New(cfg),
		Notifier: notifier,
		Logger:   logger,
	}
	if cfg.Ledger.Enabled {
		recorder, err := ledger.Open(cfg.Paths.LedgerPath)
		if err != nil {
			logging.WarnWithContext(logger, "run ledger unavailable", "ledger_unavailable",
				logging.String("path", cfg.Paths.LedgerPath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "run is not recorded in history"),
			)
		} else {
			defer recorder.Close()
			deps.Ledger = recorder
		}
	}
	return packaging.New(cfg, deps).Run(runCtx, req), nil
}

// publishSetupFailure reports a run that could not start. The outcome
// notification is the only channel callers watch.
func publishSetupFailure(ctx context.Context, notifier notifications.Service, logger *slog.Logger, refID string, cause error) {
	event := notifications.Event{RefID: refID, Err: cause}
	if err := notifier.Publish(ctx, event); err != nil {
		logging.WarnWithContext(logger, "failed to publish setup failure", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "failure is visible only in logs"),
		)
	}
}

func printResult(out io.Writer, result packaging.Result) {
	fmt.Fprintf(out, "Run:    %s\n", result.RunID)
	fmt.Fprintf(out, "RefID:  %s\n", result.RefID)
	if result.Kind != "" {
		fmt.Fprintf(out, "Kind:   %s\n", packaging.Label(string(result.Kind)))
	}
	fmt.Fprintf(out, "State:  %s\n", result.State.Label())
	if result.FailedState != "" {
		fmt.Fprintf(out, "Failed: %s (%s)\n", result.FailedState.Label(), services.KindOf(result.Err))
	}
	for _, delivered := range result.Delivered {
		fmt.Fprintf(out, "  delivered %s\n", delivered)
	}
	if result.NotifyErr != nil {
		fmt.Fprintf(out, "Warning: outcome notification failed: %v\n", result.NotifyErr)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
