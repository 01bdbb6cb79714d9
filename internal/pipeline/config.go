package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rebuild-labs/rebuild-ci/internal/domain"
	"github.com/rebuild-labs/rebuild-ci/internal/platform/env"
)

type Config struct {
	Workspace         string
	Manifest          string
	InstallCommand    string
	EnvFile           string
	BuildDir          string
	StepTimeout       time.Duration
	Environments      []domain.Environment
	CheckName         string
	BuildDomain       string
	UploadConcurrency int
}

func ConfigFromEnv(src env.Source) (Config, error) {
	workspace, err := src.Required("GITHUB_WORKSPACE")
	if err != nil {
		return Config{}, &domain.ConfigurationError{Field: "GITHUB_WORKSPACE", Err: err}
	}
	stepTimeout, err := src.Duration("CI_STEP_TIMEOUT", 30*time.Minute)
	if err != nil {
		return Config{}, &domain.ConfigurationError{Field: "CI_STEP_TIMEOUT", Err: err}
	}
	concurrency, err := src.Int("CI_UPLOAD_CONCURRENCY", 8)
	if err != nil {
		return Config{}, &domain.ConfigurationError{Field: "CI_UPLOAD_CONCURRENCY", Err: err}
	}
	environments, err := domain.ParseEnvironments(src.String("CI_ENVIRONMENTS", "staging,production"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Workspace:         workspace,
		Manifest:          strings.TrimSpace(src.String("CI_MANIFEST", "package.json")),
		InstallCommand:    strings.TrimSpace(src.String("CI_INSTALL_COMMAND", "npm install")),
		EnvFile:           strings.TrimSpace(src.String("CI_ENV_FILE", ".env")),
		BuildDir:          strings.TrimSpace(src.String("CI_BUILD_DIR", "build")),
		StepTimeout:       stepTimeout,
		Environments:      environments,
		CheckName:         strings.TrimSpace(src.String("CI_CHECK_NAME", "rebuild tests")),
		BuildDomain:       strings.TrimSpace(src.String("BUILD_DOMAIN", "")),
		UploadConcurrency: concurrency,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Workspace) == "" {
		return &domain.ConfigurationError{Field: "GITHUB_WORKSPACE", Reason: "workspace is required"}
	}
	for _, f := range []struct{ name, value string }{
		{"CI_MANIFEST", c.Manifest},
		{"CI_INSTALL_COMMAND", c.InstallCommand},
		{"CI_ENV_FILE", c.EnvFile},
		{"CI_BUILD_DIR", c.BuildDir},
		{"CI_CHECK_NAME", c.CheckName},
	} {
		if strings.TrimSpace(f.value) == "" {
			return &domain.ConfigurationError{Field: f.name, Reason: "must not be empty"}
		}
	}
	if c.StepTimeout < 0 {
		return &domain.ConfigurationError{Field: "CI_STEP_TIMEOUT", Reason: "must be >= 0"}
	}
	if c.UploadConcurrency < 1 {
		return &domain.ConfigurationError{Field: "CI_UPLOAD_CONCURRENCY", Reason: "must be >= 1"}
	}
	if len(c.Environments) == 0 {
		return &domain.ConfigurationError{Field: "CI_ENVIRONMENTS", Reason: "at least one environment is required"}
	}
	return nil
}

// Path resolves rel against the workspace unless it is absolute.
func (c Config) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(c.Workspace, rel)
}

func (c Config) binDir() string {
	return filepath.Join(c.Workspace, "node_modules", ".bin")
}

func stageError(stage string, err error) error {
	return fmt.Errorf("%s: %w", stage, err)
}
