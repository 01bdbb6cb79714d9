package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rebuild-labs/rebuild-ci/internal/platform/env"
)

func TestConfigFromEnv_DisabledByDefault(t *testing.T) {
	cfg, err := ConfigFromEnv(env.FromMap(nil))
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if cfg.Enabled() {
		t.Fatalf("config without DATABASE_URL must be disabled")
	}
	if cfg.PingTimeout != 2*time.Second || cfg.MaxOpenConns != 2 {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestConfigFromEnv_Pool(t *testing.T) {
	cfg, err := ConfigFromEnv(env.FromMap(map[string]string{
		"DATABASE_URL":            " postgres://ci@db/ci ",
		"DATABASE_MAX_OPEN_CONNS": "4",
		"DATABASE_MAX_IDLE_CONNS": "4",
	}))
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if !cfg.Enabled() || cfg.URL != "postgres://ci@db/ci" || cfg.MaxOpenConns != 4 {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestConfigFromEnv_Invalid(t *testing.T) {
	cases := []map[string]string{
		{"DATABASE_PING_TIMEOUT": "soon"},
		{"DATABASE_PING_TIMEOUT": "0s"},
		{"DATABASE_MAX_OPEN_CONNS": "0"},
		{"DATABASE_MAX_IDLE_CONNS": "9"},
		{"DATABASE_CONN_MAX_LIFETIME": "-1s"},
	}
	for _, vars := range cases {
		if _, err := ConfigFromEnv(env.FromMap(vars)); err == nil {
			t.Fatalf("ConfigFromEnv(%v) expected error", vars)
		}
	}
}

func TestOpen_RequiresURL(t *testing.T) {
	cfg, err := ConfigFromEnv(env.FromMap(nil))
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if _, err := Open(context.Background(), cfg); !errors.Is(err, ErrJournalDisabled) {
		t.Fatalf("Open() err=%v, want ErrJournalDisabled", err)
	}
}

func TestValidate_ErrorsNameJournal(t *testing.T) {
	cfg := Config{URL: "postgres://ci@db/ci", PingTimeout: time.Second}
	err := cfg.Validate()
	if err == nil || !strings.HasPrefix(err.Error(), "journal: ") {
		t.Fatalf("Validate() err=%v, want journal-prefixed error", err)
	}
}
