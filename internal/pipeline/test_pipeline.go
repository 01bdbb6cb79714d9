package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rebuild-labs/rebuild-ci/internal/domain"
	"github.com/rebuild-labs/rebuild-ci/internal/envfile"
	"github.com/rebuild-labs/rebuild-ci/internal/journal"
	"github.com/rebuild-labs/rebuild-ci/internal/manifest"
	"github.com/rebuild-labs/rebuild-ci/internal/runtimeexec"
)

const (
	MessageTestsStarted   = "Test suite started."
	MessageTestsCompleted = "Test suite completed."
	MessageTestsFailed    = "Test suite failed."
)

type TestDeps struct {
	Executor runtimeexec.Executor
	Status   StatusReporter
	Notifier Notifier
	Journal  journal.Recorder
	Environ  []envfile.Var
	Logger   *slog.Logger
}

// TestPipeline installs dependencies and runs the ci:test script, reporting
// the outcome as a check run and chat notifications.
type TestPipeline struct {
	steps
	run      domain.RunContext
	status   StatusReporter
	notifier Notifier
	journal  journal.Recorder
	now      func() time.Time
}

func NewTestPipeline(cfg Config, run domain.RunContext, deps TestDeps) (*TestPipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := run.Validate(); err != nil {
		return nil, err
	}
	if deps.Executor == nil {
		return nil, errors.New("executor is required")
	}
	if deps.Status == nil {
		return nil, errors.New("status reporter is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if deps.Journal == nil {
		deps.Journal = journal.NoopRecorder{}
	}
	return &TestPipeline{
		steps: steps{
			cfg:     cfg,
			exec:    deps.Executor,
			environ: deps.Environ,
			logger:  runLogger(deps.Logger, run, journal.PipelineTest),
		},
		run:      run,
		status:   deps.Status,
		notifier: deps.Notifier,
		journal:  deps.Journal,
		now:      time.Now,
	}, nil
}

// Run executes the pipeline once. The returned error is the first failure of
// the primary chain.
func (p *TestPipeline) Run(ctx context.Context) error {
	startedAt := p.now().UTC()
	p.logger.Info("test pipeline started")

	check, err := p.status.Start(ctx)
	if err != nil {
		return p.fail(ctx, check, startedAt, stageError(domain.StageStatus, err))
	}
	p.notifier.Notify(ctx, domain.NotificationEvent{Kind: domain.NotificationStarted, Message: MessageTestsStarted})

	if err := p.execute(ctx); err != nil {
		return p.fail(ctx, check, startedAt, err)
	}
	if err := p.status.Complete(ctx, check, domain.ConclusionSuccess, ""); err != nil {
		return p.fail(ctx, check, startedAt, stageError(domain.StageStatus, err))
	}
	p.notifier.Notify(ctx, domain.NotificationEvent{Kind: domain.NotificationSucceeded, Message: MessageTestsCompleted})

	p.record(ctx, startedAt, nil)
	p.logger.Info("test pipeline completed", "duration", time.Since(startedAt))
	return nil
}

func (p *TestPipeline) execute(ctx context.Context) error {
	if err := p.writeEnv(envfile.SharedRules()); err != nil {
		return err
	}
	if err := p.install(ctx); err != nil {
		return err
	}
	m, err := p.manifest()
	if err != nil {
		return err
	}
	_, err = p.script(ctx, m, manifest.ScriptTest, domain.StageTest)
	return err
}

func (p *TestPipeline) fail(ctx context.Context, check *domain.CheckRun, startedAt time.Time, cause error) error {
	p.logger.Error("test pipeline failed", "error", cause)

	rctx, cancel := shielded(ctx)
	defer cancel()
	if err := p.status.Complete(rctx, check, domain.ConclusionFor(cause), cause.Error()); err != nil {
		p.logger.Warn("check run failure report failed", "error", err)
	}
	p.notifier.Notify(rctx, domain.NotificationEvent{Kind: domain.NotificationFailed, Message: MessageTestsFailed})
	p.record(rctx, startedAt, cause)
	return cause
}

// record journals the run outcome; a nil outcome is a success.
func (p *TestPipeline) record(ctx context.Context, startedAt time.Time, outcome error) {
	err := p.journal.Record(ctx, journal.Entry{
		RunID:      p.run.RunID,
		Pipeline:   journal.PipelineTest,
		Repo:       p.run.DisplayName(),
		SHA:        p.run.SHA,
		Actor:      p.run.Actor,
		Conclusion: domain.ConclusionFor(outcome),
		Message:    outcomeMessage(outcome),
		StartedAt:  startedAt,
		FinishedAt: p.now().UTC(),
	})
	if err != nil {
		p.logger.Warn("journal record failed", "error", err)
	}
}
