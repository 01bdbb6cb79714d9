package domain

import (
	"fmt"
	"strings"
)

// Stage names used in logs and step failures.
const (
	StageEnvironment = "environment"
	StageInstall     = "install"
	StageManifest    = "manifest"
	StageTest        = "test"
	StageBuild       = "build"
	StageUpload      = "upload"
	StageStatus      = "status"
	StageComment     = "comment"
)

// ConfigurationError reports missing or malformed configuration or manifest fields.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// StepFailure is a subprocess that exited nonzero or could not be spawned.
// ExitCode is -1 when the process never produced an exit status.
type StepFailure struct {
	Stage    string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *StepFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s step failed (exit code %d)", e.Stage, e.ExitCode)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		b.WriteString("\n")
		b.WriteString(stderr)
	}
	return b.String()
}

func (e *StepFailure) Unwrap() error { return e.Err }

// IOFailure wraps a filesystem read or write error.
type IOFailure struct {
	Op   string
	Path string
	Err  error
}

func (e *IOFailure) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOFailure) Unwrap() error { return e.Err }

// RemoteAPIFailure is a rejected call to the check API, storage, chat or comments.
type RemoteAPIFailure struct {
	Service    string
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteAPIFailure) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s failed (status=%d): %v", e.Service, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Service, e.Op, e.Err)
}

func (e *RemoteAPIFailure) Unwrap() error { return e.Err }
