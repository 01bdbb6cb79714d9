// Package journal records finished pipeline runs.
package journal

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rebuild-labs/rebuild-ci/internal/domain"
)

const (
	PipelineTest   = "test"
	PipelineDeploy = "deploy"
)

type Entry struct {
	RunID       string
	Pipeline    string
	Repo        string
	SHA         string
	Actor       string
	Conclusion  domain.Conclusion
	Message     string
	StartedAt   time.Time
	FinishedAt  time.Time
	Deployments []domain.Deployment
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.RunID) == "" {
		return errors.New("RunID is required")
	}
	if e.Pipeline != PipelineTest && e.Pipeline != PipelineDeploy {
		return fmt.Errorf("unknown pipeline %q", e.Pipeline)
	}
	if strings.TrimSpace(e.SHA) == "" {
		return errors.New("SHA is required")
	}
	if !e.Conclusion.Valid() {
		return fmt.Errorf("invalid conclusion %q", e.Conclusion)
	}
	if e.StartedAt.IsZero() || e.FinishedAt.IsZero() {
		return errors.New("StartedAt and FinishedAt are required")
	}
	return nil
}

type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// NoopRecorder is used when no database is configured.
type NoopRecorder struct{}

func (NoopRecorder) Record(context.Context, Entry) error { return nil }

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const Schema = `CREATE TABLE IF NOT EXISTS pipeline_runs (
	run_id TEXT PRIMARY KEY,
	pipeline TEXT NOT NULL,
	repo TEXT NOT NULL,
	sha TEXT NOT NULL,
	actor TEXT,
	conclusion TEXT NOT NULL,
	message TEXT,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	deployments JSONB NOT NULL,
	integrity_sha256 TEXT NOT NULL
)`

type SQLRecorder struct {
	db Execer
}

func NewSQLRecorder(db Execer) (*SQLRecorder, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &SQLRecorder{db: db}, nil
}

func (r *SQLRecorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create pipeline_runs: %w", err)
	}
	return nil
}

func (r *SQLRecorder) Record(ctx context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	deployments := entry.Deployments
	if deployments == nil {
		deployments = []domain.Deployment{}
	}
	deploymentsJSON, err := json.Marshal(deployments)
	if err != nil {
		return fmt.Errorf("marshal deployments: %w", err)
	}
	integrity, err := ComputeIntegritySHA256(entry, deploymentsJSON)
	if err != nil {
		return err
	}

	var actor sql.NullString
	if strings.TrimSpace(entry.Actor) != "" {
		actor = sql.NullString{String: strings.TrimSpace(entry.Actor), Valid: true}
	}
	var message sql.NullString
	if strings.TrimSpace(entry.Message) != "" {
		message = sql.NullString{String: entry.Message, Valid: true}
	}

	_, err = r.db.ExecContext(
		ctx,
		`INSERT INTO pipeline_runs (
			run_id,
			pipeline,
			repo,
			sha,
			actor,
			conclusion,
			message,
			started_at,
			finished_at,
			deployments,
			integrity_sha256
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (run_id) DO NOTHING`,
		strings.TrimSpace(entry.RunID),
		entry.Pipeline,
		strings.TrimSpace(entry.Repo),
		strings.TrimSpace(entry.SHA),
		actor,
		string(entry.Conclusion),
		message,
		entry.StartedAt.UTC(),
		entry.FinishedAt.UTC(),
		deploymentsJSON,
		integrity,
	)
	if err != nil {
		return fmt.Errorf("insert pipeline run: %w", err)
	}
	return nil
}

// ComputeIntegritySHA256 hashes the canonical JSON form of entry.
func ComputeIntegritySHA256(entry Entry, deploymentsJSON []byte) (string, error) {
	type integrityInput struct {
		RunID       string          `json:"run_id"`
		Pipeline    string          `json:"pipeline"`
		Repo        string          `json:"repo"`
		SHA         string          `json:"sha"`
		Actor       string          `json:"actor,omitempty"`
		Conclusion  string          `json:"conclusion"`
		Message     string          `json:"message,omitempty"`
		StartedAt   time.Time       `json:"started_at"`
		FinishedAt  time.Time       `json:"finished_at"`
		Deployments json.RawMessage `json:"deployments"`
	}

	in := integrityInput{
		RunID:       strings.TrimSpace(entry.RunID),
		Pipeline:    entry.Pipeline,
		Repo:        strings.TrimSpace(entry.Repo),
		SHA:         strings.TrimSpace(entry.SHA),
		Actor:       strings.TrimSpace(entry.Actor),
		Conclusion:  string(entry.Conclusion),
		Message:     entry.Message,
		StartedAt:   entry.StartedAt.UTC(),
		FinishedAt:  entry.FinishedAt.UTC(),
		Deployments: deploymentsJSON,
	}
	blob, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("marshal integrity: %w", err)
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:]), nil
}
