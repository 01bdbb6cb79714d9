package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/rebuild-labs/rebuild-ci/internal/domain"
	"github.com/rebuild-labs/rebuild-ci/internal/envfile"
	"github.com/rebuild-labs/rebuild-ci/internal/manifest"
	"github.com/rebuild-labs/rebuild-ci/internal/runtimeexec"
)

const reportTimeout = 30 * time.Second

// StatusReporter tracks the commit check run.
type StatusReporter interface {
	Start(ctx context.Context) (*domain.CheckRun, error)
	Complete(ctx context.Context, check *domain.CheckRun, conclusion domain.Conclusion, message string) error
}

type Notifier interface {
	Notify(ctx context.Context, event domain.NotificationEvent)
}

type CommentPoster interface {
	Post(ctx context.Context, body string) error
}

type Uploader interface {
	Upload(ctx context.Context, artifact domain.BuildArtifact, bucket string) (domain.Deployment, error)
}

// steps holds the stages shared by both pipelines.
type steps struct {
	cfg     Config
	exec    runtimeexec.Executor
	environ []envfile.Var
	logger  *slog.Logger
}

func (s steps) writeEnv(rules envfile.RuleSet) error {
	vars := envfile.Resolve(s.environ, rules)
	path := s.cfg.Path(s.cfg.EnvFile)
	if err := envfile.Write(path, vars); err != nil {
		return stageError(domain.StageEnvironment, err)
	}
	s.logger.Info("env file written", "path", path, "keys", len(vars))
	return nil
}

func (s steps) install(ctx context.Context) error {
	_, err := s.exec.Run(ctx, runtimeexec.Command{
		Stage:   domain.StageInstall,
		Script:  s.cfg.InstallCommand,
		Dir:     s.cfg.Workspace,
		Timeout: s.cfg.StepTimeout,
	})
	return err
}

func (s steps) manifest() (manifest.Manifest, error) {
	m, err := manifest.Load(s.cfg.Path(s.cfg.Manifest))
	if err != nil {
		return manifest.Manifest{}, stageError(domain.StageManifest, err)
	}
	return m, nil
}

// script runs the named manifest script. It reports false without error when
// the script is absent.
func (s steps) script(ctx context.Context, m manifest.Manifest, name, stage string) (bool, error) {
	command, ok := m.Script(name)
	if !ok {
		s.logger.Info("script not defined, skipping", "script", name, "manifest", m.Path)
		return false, nil
	}
	_, err := s.exec.Run(ctx, runtimeexec.Command{
		Stage:   stage,
		Script:  command,
		Dir:     s.cfg.Workspace,
		Path:    []string{s.cfg.binDir()},
		Timeout: s.cfg.StepTimeout,
	})
	return true, err
}

// shielded returns a context for failure reporting that outlives cancellation
// of the run context.
func shielded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
}

func runLogger(logger *slog.Logger, run domain.RunContext, pipeline string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("run_id", run.RunID, "pipeline", pipeline, "repo", run.DisplayName(), "sha", run.SHA)
}

func outcomeMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
