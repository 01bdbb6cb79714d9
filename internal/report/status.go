package report

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rebuild-labs/rebuild-ci/internal/domain"
	"github.com/rebuild-labs/rebuild-ci/internal/platform/github"
)

var (
	ErrCheckNotStarted       = errors.New("check run not started")
	ErrCheckAlreadyCompleted = errors.New("check run already completed")
)

// CheckAPI is the subset of the GitHub client used for check runs.
type CheckAPI interface {
	CreateCheckRun(ctx context.Context, owner, repo string, in github.CreateCheckRunRequest) (github.CheckRun, error)
	UpdateCheckRun(ctx context.Context, owner, repo string, id int64, in github.UpdateCheckRunRequest) (github.CheckRun, error)
}

type StatusReporter struct {
	api  CheckAPI
	run  domain.RunContext
	name string
	now  func() time.Time
}

func NewStatusReporter(api CheckAPI, run domain.RunContext, checkName string) (*StatusReporter, error) {
	if api == nil {
		return nil, errors.New("check api is required")
	}
	checkName = strings.TrimSpace(checkName)
	if checkName == "" {
		return nil, &domain.ConfigurationError{Field: "check_name", Reason: "check name is required"}
	}
	return &StatusReporter{api: api, run: run, name: checkName, now: time.Now}, nil
}

// Start creates the in-progress check run for the run's commit.
func (r *StatusReporter) Start(ctx context.Context) (*domain.CheckRun, error) {
	startedAt := r.now().UTC()
	created, err := r.api.CreateCheckRun(ctx, r.run.Owner, r.run.Repo, github.CreateCheckRunRequest{
		Name:       r.name,
		HeadSHA:    r.run.SHA,
		Status:     string(domain.CheckInProgress),
		ExternalID: r.run.RunID,
		StartedAt:  &startedAt,
	})
	if err != nil {
		return nil, &domain.RemoteAPIFailure{Service: "github", Op: "create check run", StatusCode: github.StatusCode(err), Err: err}
	}
	return &domain.CheckRun{
		ID:        created.ID,
		Name:      r.name,
		Status:    domain.CheckInProgress,
		StartedAt: startedAt,
	}, nil
}

// Complete moves check to completed with the given conclusion. The check is
// marked completed before the update call, so a failed update is never retried
// by a second Complete.
func (r *StatusReporter) Complete(ctx context.Context, check *domain.CheckRun, conclusion domain.Conclusion, message string) error {
	if check == nil {
		return ErrCheckNotStarted
	}
	if !domain.CanTransitionCheck(check.Status, domain.CheckCompleted) {
		if check.Status == domain.CheckCompleted {
			return ErrCheckAlreadyCompleted
		}
		return ErrCheckNotStarted
	}
	if !conclusion.Valid() {
		conclusion = domain.ConclusionFailure
	}

	completedAt := r.now().UTC()
	check.Status = domain.CheckCompleted
	check.Conclusion = conclusion
	check.Message = message
	check.CompletedAt = completedAt

	startedAt := check.StartedAt
	req := github.UpdateCheckRunRequest{
		Name:        check.Name,
		Status:      string(domain.CheckCompleted),
		Conclusion:  string(conclusion),
		StartedAt:   &startedAt,
		CompletedAt: &completedAt,
	}
	if strings.TrimSpace(message) != "" {
		req.Output = &github.CheckRunOutput{
			Title:   check.Name,
			Summary: conclusion.Summary(),
			Text:    message,
		}
	}
	if _, err := r.api.UpdateCheckRun(ctx, r.run.Owner, r.run.Repo, check.ID, req); err != nil {
		return &domain.RemoteAPIFailure{Service: "github", Op: "update check run", StatusCode: github.StatusCode(err), Err: err}
	}
	return nil
}
