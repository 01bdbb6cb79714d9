package runtimeexec

import (
	"context"
	"time"
)

// Executor runs one pipeline step to completion.
type Executor interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Command is a shell command bound to a stage of the pipeline.
type Command struct {
	Stage   string
	Script  string
	Dir     string
	Path    []string
	Timeout time.Duration
}

// Result carries the exit status and the tail of stderr. Full output is
// streamed to the executor's output writer.
type Result struct {
	ExitCode int
	Stderr   string
	Duration time.Duration
}
