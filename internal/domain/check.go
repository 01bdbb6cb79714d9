package domain

import (
	"strings"
	"time"
)

// CheckStatus is the lifecycle state of a remote check run.
type CheckStatus string

const (
	CheckNotStarted CheckStatus = "not_started"
	CheckInProgress CheckStatus = "in_progress"
	CheckCompleted  CheckStatus = "completed"
)

// Conclusion is the terminal outcome attached to a completed check.
type Conclusion string

const (
	ConclusionSuccess Conclusion = "success"
	ConclusionFailure Conclusion = "failure"
)

func (c Conclusion) Valid() bool {
	return c == ConclusionSuccess || c == ConclusionFailure
}

// Summary is the short human title used in check output.
func (c Conclusion) Summary() string {
	if c == ConclusionSuccess {
		return "Success"
	}
	return "Failure"
}

// ConclusionFor maps a pipeline outcome to a conclusion.
func ConclusionFor(err error) Conclusion {
	if err != nil {
		return ConclusionFailure
	}
	return ConclusionSuccess
}

// CheckRun is the handle returned by check creation. It must be passed to
// completion; there is no ambient check state.
type CheckRun struct {
	ID          int64
	Name        string
	Status      CheckStatus
	Conclusion  Conclusion
	Message     string
	StartedAt   time.Time
	CompletedAt time.Time
}

// CanTransitionCheck enforces not_started -> in_progress -> completed, each step once.
func CanTransitionCheck(current, next CheckStatus) bool {
	current = normalizeCheckStatus(current)
	switch next {
	case CheckInProgress:
		return current == CheckNotStarted
	case CheckCompleted:
		return current == CheckInProgress
	default:
		return false
	}
}

func normalizeCheckStatus(status CheckStatus) CheckStatus {
	switch CheckStatus(strings.ToLower(strings.TrimSpace(string(status)))) {
	case "", CheckNotStarted:
		return CheckNotStarted
	case CheckInProgress:
		return CheckInProgress
	case CheckCompleted:
		return CheckCompleted
	default:
		return ""
	}
}
