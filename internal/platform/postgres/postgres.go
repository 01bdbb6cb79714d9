// Package postgres opens the optional run journal database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rebuild-labs/rebuild-ci/internal/platform/env"
)

// ErrJournalDisabled is returned by Open when no DATABASE_URL was given.
var ErrJournalDisabled = errors.New("run journal disabled: DATABASE_URL not set")

// Config describes the journal connection. A CI job writes one row per run,
// so the pool defaults stay small.
type Config struct {
	URL             string
	PingTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func ConfigFromEnv(src env.Source) (Config, error) {
	cfg := Config{URL: strings.TrimSpace(src.String("DATABASE_URL", ""))}

	var err error
	if cfg.PingTimeout, err = src.Duration("DATABASE_PING_TIMEOUT", 2*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.MaxOpenConns, err = src.Int("DATABASE_MAX_OPEN_CONNS", 2); err != nil {
		return Config{}, err
	}
	if cfg.MaxIdleConns, err = src.Int("DATABASE_MAX_IDLE_CONNS", 1); err != nil {
		return Config{}, err
	}
	if cfg.ConnMaxLifetime, err = src.Duration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ConnMaxIdleTime, err = src.Duration("DATABASE_CONN_MAX_IDLE_TIME", 5*time.Minute); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Enabled reports whether runs should be journaled.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// Validate checks the pool knobs even when the journal is disabled, so a
// typo surfaces before the first run that sets DATABASE_URL.
func (c Config) Validate() error {
	switch {
	case c.PingTimeout <= 0:
		return errors.New("journal: DATABASE_PING_TIMEOUT must be positive")
	case c.MaxOpenConns < 1:
		return errors.New("journal: DATABASE_MAX_OPEN_CONNS must be >= 1")
	case c.MaxIdleConns < 0 || c.MaxIdleConns > c.MaxOpenConns:
		return errors.New("journal: DATABASE_MAX_IDLE_CONNS must be between 0 and DATABASE_MAX_OPEN_CONNS")
	case c.ConnMaxLifetime < 0 || c.ConnMaxIdleTime < 0:
		return errors.New("journal: connection lifetimes must be >= 0")
	}
	return nil
}

// Open connects to the journal database and verifies it answers within
// PingTimeout.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if !cfg.Enabled() {
		return nil, ErrJournalDisabled
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	cfg.applyPool(db)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	return db, nil
}

func (c Config) applyPool(db *sql.DB) {
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	db.SetConnMaxLifetime(c.ConnMaxLifetime)
	db.SetConnMaxIdleTime(c.ConnMaxIdleTime)
}
