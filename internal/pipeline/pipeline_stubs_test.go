package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rebuild-labs/rebuild-ci/internal/domain"
	"github.com/rebuild-labs/rebuild-ci/internal/journal"
	"github.com/rebuild-labs/rebuild-ci/internal/runtimeexec"
)

type stubExecutor struct {
	mu       sync.Mutex
	commands []runtimeexec.Command
	failures map[string]int
	onRun    func(cmd runtimeexec.Command)
}

func (s *stubExecutor) Run(ctx context.Context, cmd runtimeexec.Command) (runtimeexec.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, cmd)
	if s.onRun != nil {
		s.onRun(cmd)
	}
	if code, ok := s.failures[cmd.Stage]; ok {
		return runtimeexec.Result{ExitCode: code}, &domain.StepFailure{Stage: cmd.Stage, ExitCode: code, Stderr: cmd.Stage + " broke"}
	}
	return runtimeexec.Result{}, nil
}

func (s *stubExecutor) stages() []string {
	var out []string
	for _, c := range s.commands {
		out = append(out, c.Stage)
	}
	return out
}

type stubStatus struct {
	started     int
	completions []domain.Conclusion
	messages    []string
	startErr    error
	completeErr error
	check       *domain.CheckRun
}

func (s *stubStatus) Start(ctx context.Context) (*domain.CheckRun, error) {
	s.started++
	if s.startErr != nil {
		return nil, s.startErr
	}
	s.check = &domain.CheckRun{ID: 1, Name: "rebuild tests", Status: domain.CheckInProgress}
	return s.check, nil
}

func (s *stubStatus) Complete(ctx context.Context, check *domain.CheckRun, conclusion domain.Conclusion, message string) error {
	if check == nil {
		return errNotStarted
	}
	if check.Status == domain.CheckCompleted {
		return errAlreadyCompleted
	}
	check.Status = domain.CheckCompleted
	s.completions = append(s.completions, conclusion)
	s.messages = append(s.messages, message)
	return s.completeErr
}

type stubNotifier struct {
	events []domain.NotificationEvent
}

func (s *stubNotifier) Notify(ctx context.Context, event domain.NotificationEvent) {
	s.events = append(s.events, event)
}

type stubComments struct {
	bodies []string
	err    error
}

func (s *stubComments) Post(ctx context.Context, body string) error {
	s.bodies = append(s.bodies, body)
	return s.err
}

type stubUploader struct {
	artifacts []domain.BuildArtifact
	buckets   []string
	err       error
}

func (s *stubUploader) Upload(ctx context.Context, artifact domain.BuildArtifact, bucket string) (domain.Deployment, error) {
	s.artifacts = append(s.artifacts, artifact)
	s.buckets = append(s.buckets, bucket)
	if s.err != nil {
		return domain.Deployment{}, s.err
	}
	return domain.Deployment{Environment: artifact.Environment, Bucket: bucket, URL: "https://" + bucket + ".storage.test", Objects: 1}, nil
}

type stubJournal struct {
	entries []journal.Entry
}

func (s *stubJournal) Record(ctx context.Context, entry journal.Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

var (
	errNotStarted       = &domain.ConfigurationError{Reason: "not started"}
	errAlreadyCompleted = &domain.ConfigurationError{Reason: "already completed"}
)

func testRun() domain.RunContext {
	return domain.RunContext{
		RunID:   "run-1",
		SHA:     "abc123",
		Owner:   "acme",
		Repo:    "site",
		RepoURL: "https://github.com/acme/site",
		Actor:   "jdoe",
		Ref:     "refs/heads/main",
	}
}

func testConfig(t *testing.T, manifestJSON string) Config {
	t.Helper()
	ws := t.TempDir()
	if manifestJSON != "" {
		if err := os.WriteFile(filepath.Join(ws, "package.json"), []byte(manifestJSON), 0o644); err != nil {
			t.Fatalf("write manifest: %v", err)
		}
	}
	return Config{
		Workspace:         ws,
		Manifest:          "package.json",
		InstallCommand:    "npm install",
		EnvFile:           ".env",
		BuildDir:          "build",
		StepTimeout:       time.Minute,
		Environments:      []domain.Environment{domain.EnvironmentStaging, domain.EnvironmentProduction},
		CheckName:         "rebuild tests",
		UploadConcurrency: 2,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}
