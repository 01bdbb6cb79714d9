package cli

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/rebuild-labs/rebuild-ci/internal/artifacts"
	"github.com/rebuild-labs/rebuild-ci/internal/domain"
	"github.com/rebuild-labs/rebuild-ci/internal/envfile"
	"github.com/rebuild-labs/rebuild-ci/internal/journal"
	"github.com/rebuild-labs/rebuild-ci/internal/pipeline"
	"github.com/rebuild-labs/rebuild-ci/internal/platform/chat"
	"github.com/rebuild-labs/rebuild-ci/internal/platform/env"
	"github.com/rebuild-labs/rebuild-ci/internal/platform/github"
	platformstore "github.com/rebuild-labs/rebuild-ci/internal/platform/objectstore"
	"github.com/rebuild-labs/rebuild-ci/internal/platform/postgres"
	"github.com/rebuild-labs/rebuild-ci/internal/report"
	"github.com/rebuild-labs/rebuild-ci/internal/runctx"
	"github.com/rebuild-labs/rebuild-ci/internal/runtimeexec"
	store "github.com/rebuild-labs/rebuild-ci/internal/storage/objectstore"
)

// common holds what both pipelines need.
type common struct {
	run      domain.RunContext
	cfg      pipeline.Config
	github   *github.Client
	webhook  report.WebhookPoster
	executor *runtimeexec.ShellExecutor
	environ  []envfile.Var
	logger   *slog.Logger
}

func (a *App) loadCommon() (common, error) {
	src := env.FromPairs(a.Environ)
	logger := a.log()

	run, err := runctx.FromEnv(src)
	if err != nil {
		return common{}, invalidConfig(err)
	}
	cfg, err := pipeline.ConfigFromEnv(src)
	if err != nil {
		return common{}, invalidConfig(err)
	}
	ghCfg, err := github.ConfigFromEnv(src)
	if err != nil {
		return common{}, invalidConfig(err)
	}
	gh, err := github.NewClient(ghCfg)
	if err != nil {
		return common{}, invalidConfig(err)
	}
	chatCfg, err := chat.ConfigFromEnv(src)
	if err != nil {
		return common{}, invalidConfig(err)
	}
	var webhook report.WebhookPoster
	if chatCfg.Enabled() {
		client, err := chat.NewClient(chatCfg)
		if err != nil {
			return common{}, invalidConfig(err)
		}
		webhook = client
	}
	executor, err := runtimeexec.NewShellExecutor("sh", a.Environ, logger, a.Stderr)
	if err != nil {
		return common{}, invalidConfig(err)
	}

	logger.Info("run context loaded",
		"run_id", run.RunID,
		"repo", run.DisplayName(),
		"sha", run.SHA,
		"ref", run.Ref,
		"actor", run.Actor,
	)
	return common{
		run:      run,
		cfg:      cfg,
		github:   gh,
		webhook:  webhook,
		executor: executor,
		environ:  envfile.ParseEnviron(a.Environ),
		logger:   logger,
	}, nil
}

// openJournal returns a recorder and a close func. Journal problems are logged
// and fall back to the no-op recorder.
func (a *App) openJournal(ctx context.Context) (journal.Recorder, func()) {
	logger := a.log()
	cfg, err := postgres.ConfigFromEnv(env.FromPairs(a.Environ))
	if err != nil {
		logger.Warn("run journal disabled", "error", err)
		return journal.NoopRecorder{}, func() {}
	}
	if !cfg.Enabled() {
		return journal.NoopRecorder{}, func() {}
	}
	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		logger.Warn("run journal disabled", "error", err)
		return journal.NoopRecorder{}, func() {}
	}
	closeDB := func() { closeQuietly(logger, db) }
	rec, err := journal.NewSQLRecorder(db)
	if err == nil {
		err = rec.EnsureSchema(ctx)
	}
	if err != nil {
		logger.Warn("run journal disabled", "error", err)
		closeDB()
		return journal.NoopRecorder{}, func() {}
	}
	return rec, closeDB
}

func closeQuietly(logger *slog.Logger, db *sql.DB) {
	if err := db.Close(); err != nil {
		logger.Warn("close journal database", "error", err)
	}
}

func (a *App) runTest(ctx context.Context) error {
	c, err := a.loadCommon()
	if err != nil {
		return err
	}
	status, err := report.NewStatusReporter(c.github, c.run, c.cfg.CheckName)
	if err != nil {
		return invalidConfig(err)
	}
	rec, closeJournal := a.openJournal(ctx)
	defer closeJournal()

	p, err := pipeline.NewTestPipeline(c.cfg, c.run, pipeline.TestDeps{
		Executor: c.executor,
		Status:   status,
		Notifier: report.NewChatNotifier(c.webhook, c.run, report.StyleInline, report.SourceTests, c.logger),
		Journal:  rec,
		Environ:  c.environ,
		Logger:   c.logger,
	})
	if err != nil {
		return invalidConfig(err)
	}
	return p.Run(ctx)
}

func (a *App) runDeploy(ctx context.Context) error {
	c, err := a.loadCommon()
	if err != nil {
		return err
	}
	storeCfg, err := platformstore.ConfigFromEnv(env.FromPairs(a.Environ))
	if err != nil {
		return invalidConfig(err)
	}
	objectStore, err := store.NewMinioStore(storeCfg)
	if err != nil {
		return invalidConfig(err)
	}
	uploader, err := artifacts.NewUploader(objectStore, storeCfg.PublicURL, c.cfg.UploadConcurrency, c.logger)
	if err != nil {
		return invalidConfig(err)
	}
	comments, err := report.NewCommentPoster(c.github, c.run)
	if err != nil {
		return invalidConfig(err)
	}
	rec, closeJournal := a.openJournal(ctx)
	defer closeJournal()

	p, err := pipeline.NewDeployPipeline(c.cfg, c.run, pipeline.DeployDeps{
		Executor: c.executor,
		Notifier: report.NewChatNotifier(c.webhook, c.run, report.StyleAttachment, report.SourceDeploy, c.logger),
		Comments: comments,
		Uploader: uploader,
		Journal:  rec,
		Environ:  c.environ,
		Logger:   c.logger,
	})
	if err != nil {
		return invalidConfig(err)
	}
	return p.Run(ctx)
}
