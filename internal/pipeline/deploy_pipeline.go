package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rebuild-labs/rebuild-ci/internal/artifacts"
	"github.com/rebuild-labs/rebuild-ci/internal/domain"
	"github.com/rebuild-labs/rebuild-ci/internal/envfile"
	"github.com/rebuild-labs/rebuild-ci/internal/journal"
	"github.com/rebuild-labs/rebuild-ci/internal/manifest"
	"github.com/rebuild-labs/rebuild-ci/internal/report"
	"github.com/rebuild-labs/rebuild-ci/internal/runtimeexec"
)

const (
	MessageBuildStarted   = "Starting build."
	MessageBuildCompleted = "Build completed."
	MessageBuildFailed    = "Build failed."
)

type DeployDeps struct {
	Executor runtimeexec.Executor
	Notifier Notifier
	Comments CommentPoster
	Uploader Uploader
	Journal  journal.Recorder
	Environ  []envfile.Var
	Logger   *slog.Logger
}

// DeployPipeline builds the project once per environment and publishes each
// build to its own bucket.
type DeployPipeline struct {
	steps
	run      domain.RunContext
	notifier Notifier
	comments CommentPoster
	uploader Uploader
	journal  journal.Recorder
	now      func() time.Time
}

func NewDeployPipeline(cfg Config, run domain.RunContext, deps DeployDeps) (*DeployPipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := run.Validate(); err != nil {
		return nil, err
	}
	if deps.Executor == nil {
		return nil, errors.New("executor is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if deps.Comments == nil {
		return nil, errors.New("comment poster is required")
	}
	if deps.Uploader == nil {
		return nil, errors.New("uploader is required")
	}
	if deps.Journal == nil {
		deps.Journal = journal.NoopRecorder{}
	}
	return &DeployPipeline{
		steps: steps{
			cfg:     cfg,
			exec:    deps.Executor,
			environ: deps.Environ,
			logger:  runLogger(deps.Logger, run, journal.PipelineDeploy),
		},
		run:      run,
		notifier: deps.Notifier,
		comments: deps.Comments,
		uploader: deps.Uploader,
		journal:  deps.Journal,
		now:      time.Now,
	}, nil
}

// Run executes the pipeline once. Pushes that delete a branch finish
// successfully without side effects.
func (p *DeployPipeline) Run(ctx context.Context) error {
	if p.run.Deleted {
		p.logger.Info("branch deleted, nothing to deploy", "ref", p.run.Ref)
		return nil
	}
	startedAt := p.now().UTC()
	p.logger.Info("deploy pipeline started", "environments", len(p.cfg.Environments), "build_domain", p.cfg.BuildDomain)
	p.notifier.Notify(ctx, domain.NotificationEvent{Kind: domain.NotificationStarted, Message: MessageBuildStarted})

	deployments, err := p.execute(ctx)
	if err != nil {
		return p.fail(ctx, startedAt, deployments, err)
	}
	if err := p.comments.Post(ctx, report.DeploymentsComment(deployments)); err != nil {
		return p.fail(ctx, startedAt, deployments, stageError(domain.StageComment, err))
	}
	p.notifier.Notify(ctx, domain.NotificationEvent{Kind: domain.NotificationSucceeded, Message: BuildCompletedMessage(deployments)})

	p.record(ctx, startedAt, nil, deployments)
	p.logger.Info("deploy pipeline completed", "duration", time.Since(startedAt))
	return nil
}

func (p *DeployPipeline) execute(ctx context.Context) ([]domain.Deployment, error) {
	if err := p.install(ctx); err != nil {
		return nil, err
	}
	m, err := p.manifest()
	if err != nil {
		return nil, err
	}

	var deployments []domain.Deployment
	for _, env := range p.cfg.Environments {
		d, err := p.deploy(ctx, m, env)
		if err != nil {
			return deployments, fmt.Errorf("%s: %w", env, err)
		}
		deployments = append(deployments, d)
	}
	return deployments, nil
}

func (p *DeployPipeline) deploy(ctx context.Context, m manifest.Manifest, env domain.Environment) (domain.Deployment, error) {
	logger := p.logger.With("environment", string(env))

	if err := p.writeEnv(envfile.EnvironmentRules(env, domain.KnownEnvironments())); err != nil {
		return domain.Deployment{}, err
	}
	built, err := p.script(ctx, m, manifest.ScriptBuild, domain.StageBuild)
	if err != nil {
		return domain.Deployment{}, err
	}
	if !built {
		logger.Info("no build script, skipping upload")
		return domain.Deployment{Environment: env, Skipped: true}, nil
	}

	artifact := domain.BuildArtifact{Environment: env, Root: p.cfg.Path(p.cfg.BuildDir)}
	d, err := p.uploader.Upload(ctx, artifact, artifacts.BucketName(p.run.Repo, p.run.SHA, env))
	if err != nil {
		return domain.Deployment{}, stageError(domain.StageUpload, err)
	}
	logger.Info("environment deployed", "url", d.URL, "objects", d.Objects)
	return d, nil
}

func (p *DeployPipeline) fail(ctx context.Context, startedAt time.Time, deployments []domain.Deployment, cause error) error {
	p.logger.Error("deploy pipeline failed", "error", cause)

	rctx, cancel := shielded(ctx)
	defer cancel()
	if err := p.comments.Post(rctx, cause.Error()); err != nil {
		p.logger.Warn("failure comment failed", "error", err)
	}
	p.notifier.Notify(rctx, domain.NotificationEvent{Kind: domain.NotificationFailed, Message: MessageBuildFailed})
	p.record(rctx, startedAt, cause, deployments)
	return cause
}

func (p *DeployPipeline) record(ctx context.Context, startedAt time.Time, outcome error, deployments []domain.Deployment) {
	err := p.journal.Record(ctx, journal.Entry{
		RunID:       p.run.RunID,
		Pipeline:    journal.PipelineDeploy,
		Repo:        p.run.DisplayName(),
		SHA:         p.run.SHA,
		Actor:       p.run.Actor,
		Conclusion:  domain.ConclusionFor(outcome),
		Message:     outcomeMessage(outcome),
		StartedAt:   startedAt,
		FinishedAt:  p.now().UTC(),
		Deployments: deployments,
	})
	if err != nil {
		p.logger.Warn("journal record failed", "error", err)
	}
}

// BuildCompletedMessage lists each environment's URL under the success line.
func BuildCompletedMessage(deployments []domain.Deployment) string {
	var b strings.Builder
	b.WriteString(MessageBuildCompleted)
	for _, d := range deployments {
		if d.Skipped {
			fmt.Fprintf(&b, "\n*%s* no ci:build script", d.Environment.Title())
			continue
		}
		fmt.Fprintf(&b, "\n*%s* %s", d.Environment.Title(), d.URL)
	}
	return b.String()
}
