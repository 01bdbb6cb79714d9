// Package cli wires configuration, clients and pipelines behind the rebuild
// command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfigError = 2
)

// configError marks failures detected before a pipeline starts.
type configError struct {
	err error
}

func (e *configError) Error() string { return "invalid configuration: " + e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func invalidConfig(err error) error {
	if err == nil {
		return nil
	}
	return &configError{err: err}
}

// App carries process inputs so commands can be exercised without touching
// the real environment.
type App struct {
	Environ []string
	Stdout  io.Writer
	Stderr  io.Writer

	logLevel  string
	logFormat string
	logger    *slog.Logger
}

// Execute runs the command line and maps the outcome to a process exit code.
func Execute(ctx context.Context, app *App, args []string) int {
	root := app.rootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	var cfgErr *configError
	if errors.As(err, &cfgErr) {
		app.log().Error("invalid configuration", "error", cfgErr.err)
		return ExitConfigError
	}
	app.log().Error("pipeline failed", "error", err)
	return ExitFailure
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "rebuild",
		Short:         "Test and deploy a repository from a CI workflow",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(a.Stdout, a.logFormat, a.logLevel)
			if err != nil {
				return invalidConfig(err)
			}
			a.logger = logger
			return nil
		},
	}
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "json", "log format (json, text)")

	root.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Install dependencies and run the ci:test script, reporting a check run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTest(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "deploy",
		Short: "Build every environment and publish it to object storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDeploy(cmd.Context())
		},
	})
	return root
}

func (a *App) log() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	w := a.Stdout
	if w == nil {
		w = io.Discard
	}
	return slog.New(slog.NewJSONHandler(w, nil))
}

func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	if w == nil {
		w = io.Discard
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json", "":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("--log-format: unknown format %q", format)
	}
}
