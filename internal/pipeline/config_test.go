package pipeline

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rebuild-labs/rebuild-ci/internal/domain"
	"github.com/rebuild-labs/rebuild-ci/internal/platform/env"
)

func TestConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := ConfigFromEnv(env.FromMap(map[string]string{"GITHUB_WORKSPACE": "/ws"}))
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if cfg.Manifest != "package.json" || cfg.InstallCommand != "npm install" || cfg.EnvFile != ".env" || cfg.BuildDir != "build" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.StepTimeout != 30*time.Minute || cfg.UploadConcurrency != 8 || cfg.CheckName != "rebuild tests" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if len(cfg.Environments) != 2 || cfg.Environments[0] != domain.EnvironmentStaging || cfg.Environments[1] != domain.EnvironmentProduction {
		t.Fatalf("environments=%v", cfg.Environments)
	}
	if cfg.Path("build") != filepath.Join("/ws", "build") || cfg.Path("/abs/x") != "/abs/x" {
		t.Fatalf("Path() resolution wrong")
	}
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	cfg, err := ConfigFromEnv(env.FromMap(map[string]string{
		"GITHUB_WORKSPACE":   "/ws",
		"CI_ENVIRONMENTS":    "prod",
		"CI_STEP_TIMEOUT":    "0",
		"CI_MANIFEST":        "rebuild.yaml",
		"CI_INSTALL_COMMAND": "yarn install --frozen-lockfile",
	}))
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if len(cfg.Environments) != 1 || cfg.Environments[0] != domain.EnvironmentProduction || cfg.StepTimeout != 0 {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.Manifest != "rebuild.yaml" || cfg.InstallCommand != "yarn install --frozen-lockfile" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestConfigFromEnv_Errors(t *testing.T) {
	cases := []map[string]string{
		{},
		{"GITHUB_WORKSPACE": "/ws", "CI_ENVIRONMENTS": "qa"},
		{"GITHUB_WORKSPACE": "/ws", "CI_ENVIRONMENTS": "staging,stage"},
		{"GITHUB_WORKSPACE": "/ws", "CI_STEP_TIMEOUT": "-1m"},
		{"GITHUB_WORKSPACE": "/ws", "CI_UPLOAD_CONCURRENCY": "0"},
		{"GITHUB_WORKSPACE": "/ws", "CI_INSTALL_COMMAND": " "},
	}
	for _, vars := range cases {
		_, err := ConfigFromEnv(env.FromMap(vars))
		var cfgErr *domain.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("ConfigFromEnv(%v) err=%v, want ConfigurationError", vars, err)
		}
	}
}
