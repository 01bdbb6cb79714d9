// Package runctx captures the triggering commit, repository and actor of a run
// from the GitHub Actions environment and event payload.
package runctx

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rebuild-labs/rebuild-ci/internal/domain"
	"github.com/rebuild-labs/rebuild-ci/internal/platform/env"
)

type event struct {
	Ref         string `json:"ref"`
	Deleted     bool   `json:"deleted"`
	After       string `json:"after"`
	Number      int    `json:"number"`
	PullRequest *struct {
		Number int `json:"number"`
		Head   struct {
			SHA string `json:"sha"`
			Ref string `json:"ref"`
		} `json:"head"`
	} `json:"pull_request"`
	Repository struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
		HTMLURL  string `json:"html_url"`
		Owner    struct {
			Login string `json:"login"`
			Name  string `json:"name"`
		} `json:"owner"`
	} `json:"repository"`
	Pusher struct {
		Name string `json:"name"`
	} `json:"pusher"`
	Sender struct {
		Login string `json:"login"`
	} `json:"sender"`
}

// FromEnv reads GITHUB_EVENT_PATH when present and fills the gaps from the
// GITHUB_* variables. The returned context gets a fresh run id.
func FromEnv(src env.Source) (domain.RunContext, error) {
	var payload []byte
	if path := strings.TrimSpace(src.String("GITHUB_EVENT_PATH", "")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return domain.RunContext{}, &domain.IOFailure{Op: "read event payload", Path: path, Err: err}
		}
		payload = data
	}
	return Parse(payload, src)
}

// Parse builds a RunContext from an event payload, which may be empty.
func Parse(payload []byte, src env.Source) (domain.RunContext, error) {
	var ev event
	if len(strings.TrimSpace(string(payload))) > 0 {
		if err := json.Unmarshal(payload, &ev); err != nil {
			return domain.RunContext{}, &domain.ConfigurationError{Field: "event", Reason: "parse event payload", Err: err}
		}
	}

	run := domain.RunContext{
		RunID:    uuid.NewString(),
		SHA:      strings.TrimSpace(src.String("GITHUB_SHA", "")),
		Repo:     ev.Repository.Name,
		FullName: ev.Repository.FullName,
		RepoURL:  ev.Repository.HTMLURL,
		Owner:    firstNonEmpty(ev.Repository.Owner.Login, ev.Repository.Owner.Name),
		Actor:    firstNonEmpty(ev.Pusher.Name, ev.Sender.Login, src.String("GITHUB_ACTOR", "")),
		Ref:      firstNonEmpty(ev.Ref, src.String("GITHUB_REF", "")),
		Deleted:  ev.Deleted,
	}
	if run.SHA == "" {
		run.SHA = ev.After
	}
	if ev.PullRequest != nil {
		run.PullRequest = ev.PullRequest.Number
		if run.PullRequest == 0 {
			run.PullRequest = ev.Number
		}
	}

	if repository := strings.TrimSpace(src.String("GITHUB_REPOSITORY", "")); repository != "" {
		owner, name, ok := strings.Cut(repository, "/")
		if ok {
			run.Owner = firstNonEmpty(run.Owner, owner)
			run.Repo = firstNonEmpty(run.Repo, name)
			run.FullName = firstNonEmpty(run.FullName, repository)
		}
	}
	if run.RepoURL == "" && run.Owner != "" && run.Repo != "" {
		server := strings.TrimRight(src.First("https://github.com", "GITHUB_SERVER_URL"), "/")
		run.RepoURL = server + "/" + run.Owner + "/" + run.Repo
	}

	if err := run.Validate(); err != nil {
		return domain.RunContext{}, err
	}
	return run, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
