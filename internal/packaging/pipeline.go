package packaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"avpackaging/internal/config"
	"avpackaging/internal/ledger"
	"avpackaging/internal/logging"
	"avpackaging/internal/media"
	"avpackaging/internal/metadata"
	"avpackaging/internal/notifications"
	"avpackaging/internal/preflight"
	"avpackaging/internal/services"
	"avpackaging/internal/staging"
	"avpackaging/internal/storage"
)

// Recorder persists run history. *ledger.Store satisfies it.
type Recorder interface {
	Begin(ctx context.Context, runID, refID, state string, startedAt time.Time) error
	Finish(ctx context.Context, run ledger.Run) error
}

// Dependencies are the collaborators a Pipeline drives.
type Dependencies struct {
	Store    storage.Store
	Catalog  metadata.Catalog
	Notifier notifications.Service
	// Ledger is optional.
	Ledger Recorder
	Logger *slog.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
	// NewRunID defaults to random UUIDs.
	NewRunID func() string
}

// Request names the asset to package.
type Request struct {
	RefID     string
	RightsIDs []string
	// Kind is the operator-asserted media kind; empty accepts whatever the
	// classifier decides.
	Kind string
	// SkipPreflight bypasses the local readiness checks.
	SkipPreflight bool
}

// Result is the terminal outcome of one run.
type Result struct {
	RunID string
	RefID string
	// Kind is empty when the run failed before classification.
	Kind  media.Kind
	State State
	// FailedState is the state whose work failed; empty on success.
	FailedState State
	Err         error
	// Delivered lists bucket/key pairs uploaded during delivery.
	Delivered []string
	// NotifyErr is set when the outcome notification could not be published.
	NotifyErr  error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether the run reached StateSucceeded.
func (r Result) Succeeded() bool {
	return r.State == StateSucceeded
}

// Pipeline executes packaging runs.
type Pipeline struct {
	cfg      *config.Config
	layout   staging.Layout
	store    storage.Store
	resolver *metadata.Resolver
	notifier notifications.Service
	ledger   Recorder
	logger   *slog.Logger
	clock    func() time.Time
	newRunID func() string
}

// New constructs a pipeline bound to cfg.
func New(cfg *config.Config, deps Dependencies) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newRunID := deps.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}
	var resolver *metadata.Resolver
	if deps.Catalog != nil {
		resolver = metadata.NewResolver(deps.Catalog, logger)
	}
	return &Pipeline{
		cfg:      cfg,
		layout:   staging.Layout{Root: cfg.Paths.TmpDir},
		store:    deps.Store,
		resolver: resolver,
		notifier: deps.Notifier,
		ledger:   deps.Ledger,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		clock:    clock,
		newRunID: newRunID,
	}
}

// run carries one invocation's working state between steps.
type run struct {
	id          string
	refID       string
	rightsIDs   []string
	asserted    media.Kind
	workDir     string
	derivDir    string
	archivePath string
	stagedKeys  []string
	files       []string
	format      media.Format
	descriptors []media.Descriptor
	meta        metadata.PackageMetadata
	delivered   []string
}

func (r *run) kind() media.Kind {
	if r.format == nil {
		return ""
	}
	return r.format.Kind()
}

type step struct {
	state State
	fn    func(ctx context.Context, r *run) error
}

func (p *Pipeline) steps() []step {
	return []step{
		{state: StateStaging, fn: p.stage},
		{state: StateClassifying, fn: p.classify},
		{state: StateDeriving, fn: p.derive},
		{state: StateResolvingMetadata, fn: p.resolveMetadata},
		{state: StateBagging, fn: p.bag},
		{state: StateCompressing, fn: p.compress},
		{state: StateDelivering, fn: p.deliver},
		{state: StatePurging, fn: p.purge},
	}
}

// Run packages req.RefID end to end. The returned Result always carries a
// terminal state; Result.Err is the error that moved the run to failed.
func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	refID := strings.TrimSpace(req.RefID)
	r := &run{
		id:          p.newRunID(),
		refID:       refID,
		rightsIDs:   append([]string(nil), req.RightsIDs...),
		workDir:     p.layout.WorkDir(refID),
		derivDir:    p.layout.DerivativeDir(refID),
		archivePath: p.layout.ArchivePath(refID),
	}
	ctx = services.WithRunID(services.WithRefID(ctx, refID), r.id)
	logger := logging.WithContext(ctx, p.logger)
	result := Result{RunID: r.id, RefID: refID, StartedAt: p.clock()}

	p.begin(ctx, logger, r, result.StartedAt)
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("rights_ids", len(r.rightsIDs)),
		logging.String("asserted_kind", strings.TrimSpace(req.Kind)),
	)

	if err := p.prepare(req, r); err != nil {
		return p.finish(ctx, logger, r, result, StateStaging, err, false)
	}

	lock, err := p.layout.Acquire(refID)
	if err != nil {
		return p.finish(ctx, logger, r, result, StateStaging, err, false)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Debug("release refid lock failed", logging.Error(err))
		}
	}()

	if !req.SkipPreflight {
		if err := p.preflight(); err != nil {
			return p.finish(ctx, logger, r, result, StateStaging, err, true)
		}
	}

	for _, s := range p.steps() {
		if err := p.runStep(ctx, s, r); err != nil {
			return p.finish(ctx, logger, r, result, s.state, err, true)
		}
	}
	return p.finish(ctx, logger, r, result, "", nil, true)
}

// prepare validates the request before any I/O.
func (p *Pipeline) prepare(req Request, r *run) error {
	if err := staging.ValidateRefID(r.refID); err != nil {
		return err
	}
	if strings.TrimSpace(req.Kind) != "" {
		kind, err := media.ParseKind(req.Kind)
		if err != nil {
			return err
		}
		r.asserted = kind
	}
	if p.store == nil {
		return services.Wrap(services.ErrConfiguration, "", "prepare run", "blob store unavailable", nil)
	}
	if p.resolver == nil {
		return services.Wrap(services.ErrConfiguration, "", "prepare run", "catalog unavailable", nil)
	}
	return nil
}

func (p *Pipeline) preflight() error {
	failed := preflight.Failures(preflight.RunLocal(p.cfg))
	if len(failed) == 0 {
		return nil
	}
	details := make([]string, 0, len(failed))
	for _, f := range failed {
		details = append(details, fmt.Sprintf("%s: %s", f.Name, f.Detail))
	}
	return services.Wrap(services.ErrConfiguration, "", "preflight", strings.Join(details, "; "), nil)
}

func (p *Pipeline) runStep(ctx context.Context, s step, r *run) error {
	stageCtx := services.WithStage(ctx, string(s.state))
	stageLogger := logging.WithContext(stageCtx, p.logger)
	started := p.clock()

	stageLogger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	if err := s.fn(stageCtx, r); err != nil {
		logging.ErrorWithContext(stageLogger, "stage failed", "stage_failure",
			logging.String("resolved_state", string(StateFailed)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(err)),
		)
		return err
	}

	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", p.clock().Sub(started)),
	)
	return nil
}

// finish applies the terminal transition. failedIn is empty on success.
// owned reports whether this run holds the refid lock and may clean up.
func (p *Pipeline) finish(ctx context.Context, logger *slog.Logger, r *run, result Result, failedIn State, err error, owned bool) Result {
	result.Kind = r.kind()
	result.Delivered = append([]string(nil), r.delivered...)
	if err != nil {
		result.State = StateFailed
		result.FailedState = failedIn
		result.Err = err
		if owned {
			p.cleanupFailure(logger, r)
		}
	} else {
		result.State = StateSucceeded
	}
	result.FinishedAt = p.clock()

	result.NotifyErr = p.publish(ctx, logger, r, err)
	p.record(ctx, logger, result)

	if result.Succeeded() {
		logger.Info("run succeeded",
			logging.String(logging.FieldEventType, "run_complete"),
			logging.String("kind", string(result.Kind)),
			logging.Int("delivered", len(result.Delivered)),
			logging.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)),
		)
	} else {
		logging.ErrorWithContext(logger, "run failed", "run_failed",
			logging.String("failed_state", string(result.FailedState)),
			logging.String("kind", string(result.Kind)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(err)),
		)
	}
	return result
}

// cleanupFailure removes every local artifact of the run. Each removal
// tolerates the path being absent.
func (p *Pipeline) cleanupFailure(logger *slog.Logger, r *run) {
	for _, path := range []string{r.workDir, r.derivDir, r.archivePath} {
		if err := os.RemoveAll(path); err != nil {
			logging.WarnWithContext(logger, "failed to remove local artifact", "cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the path manually or run avpackaging clean"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
		}
	}
}

func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, r *run, runErr error) error {
	if p.notifier == nil {
		return nil
	}
	event := notifications.Event{RefID: r.refID, Format: string(r.kind()), Err: runErr}
	if err := p.notifier.Publish(ctx, event); err != nil {
		logging.WarnWithContext(logger, "outcome notification failed", "notification_failed",
			logging.String("outcome", event.Outcome()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.topic_arn and SNS permissions"),
			logging.String(logging.FieldImpact, "downstream consumers were not told about this run"),
		)
		return err
	}
	return nil
}

func (p *Pipeline) begin(ctx context.Context, logger *slog.Logger, r *run, startedAt time.Time) {
	if p.ledger == nil {
		return
	}
	if err := p.ledger.Begin(ctx, r.id, r.refID, string(StateStaging), startedAt); err != nil {
		logging.WarnWithContext(logger, "ledger begin failed", "ledger_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run will be missing from history"),
		)
	}
}

func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, result Result) {
	if p.ledger == nil {
		return
	}
	entry := ledger.Run{
		RunID:       result.RunID,
		RefID:       result.RefID,
		Kind:        string(result.Kind),
		State:       string(result.State),
		FailedState: string(result.FailedState),
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
	}
	if result.Err != nil {
		entry.ErrorKind = services.KindOf(result.Err)
		entry.ErrorMessage = result.Err.Error()
	}
	if err := p.ledger.Finish(ctx, entry); err != nil {
		logging.WarnWithContext(logger, "ledger finish failed", "ledger_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run outcome missing from history"),
		)
	}
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, staging.ErrLocked):
		return "another run for this refid is in progress"
	case errors.Is(err, services.ErrConfiguration):
		return "check configuration and credentials"
	case errors.Is(err, services.ErrNotFound):
		return "verify the refid exists in the source bucket and the catalog"
	case errors.Is(err, services.ErrAmbiguous):
		return "the refid matches several archival objects; fix the catalog"
	case errors.Is(err, services.ErrClassification):
		return "check the staged file set against the audio and video naming conventions"
	case errors.Is(err, services.ErrValidation):
		return "check the catalog dates and rights ids"
	case errors.Is(err, services.ErrExternalTool):
		return "check ffmpeg and local disk"
	case errors.Is(err, services.ErrTransfer):
		return "check blob store and catalog connectivity, then re-run"
	default:
		return "check logs for details"
	}
}
