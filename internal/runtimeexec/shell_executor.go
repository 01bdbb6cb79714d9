package runtimeexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/rebuild-labs/rebuild-ci/internal/domain"
)

// ShellExecutor runs commands through `sh -c` in the workspace.
type ShellExecutor struct {
	shell   string
	environ []string
	logger  *slog.Logger
	output  io.Writer
}

// NewShellExecutor returns an executor whose children see exactly environ,
// plus any PATH entries a command asks for.
func NewShellExecutor(shell string, environ []string, logger *slog.Logger, output io.Writer) (*ShellExecutor, error) {
	shell = strings.TrimSpace(shell)
	if shell == "" {
		shell = "sh"
	}
	if _, err := exec.LookPath(shell); err != nil {
		return nil, fmt.Errorf("shell not found: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if output == nil {
		output = io.Discard
	}
	return &ShellExecutor{
		shell:   shell,
		environ: append([]string(nil), environ...),
		logger:  logger,
		output:  output,
	}, nil
}

// Run blocks until the command exits. A nonzero exit, spawn failure or timeout
// is returned as *domain.StepFailure.
func (e *ShellExecutor) Run(ctx context.Context, cmd Command) (Result, error) {
	script := strings.TrimSpace(cmd.Script)
	if script == "" {
		return Result{}, errors.New("command script is required")
	}
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	stderr := &tailBuffer{max: maxStderrBytes}
	c := exec.CommandContext(ctx, e.shell, "-c", script)
	c.Dir = cmd.Dir
	c.Env = buildEnv(e.environ, cmd.Path)
	c.Stdout = e.output
	c.Stderr = io.MultiWriter(stderr, e.output)
	c.WaitDelay = 5 * time.Second

	e.logger.Info("running step", "stage", cmd.Stage, "command", script, "dir", cmd.Dir)
	started := time.Now()
	err := c.Run()
	res := Result{
		ExitCode: exitCode(c),
		Stderr:   stderr.String(),
		Duration: time.Since(started),
	}
	if err != nil {
		failure := &domain.StepFailure{
			Stage:    cmd.Stage,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
		}
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			failure.Err = fmt.Errorf("%s: %w", script, ctx.Err())
		case errors.As(err, &exitErr):
			failure.Err = fmt.Errorf("%s: %w", script, err)
		default:
			failure.ExitCode = -1
			failure.Err = fmt.Errorf("spawn %s: %w", script, err)
		}
		e.logger.Error("step failed", "stage", cmd.Stage, "exit_code", failure.ExitCode, "duration", res.Duration, "error", failure.Err)
		return res, failure
	}
	e.logger.Info("step completed", "stage", cmd.Stage, "duration", res.Duration)
	return res, nil
}

func exitCode(c *exec.Cmd) int {
	if c.ProcessState == nil {
		return -1
	}
	return c.ProcessState.ExitCode()
}
