package domain

import (
	"fmt"
	"strings"
)

// RunContext identifies the commit and repository a pipeline run was triggered for.
// It is captured once when the run starts and never mutated.
type RunContext struct {
	RunID       string
	SHA         string
	Owner       string
	Repo        string
	FullName    string
	RepoURL     string
	Actor       string
	Ref         string
	PullRequest int
	Deleted     bool
}

func (r RunContext) Validate() error {
	if strings.TrimSpace(r.SHA) == "" {
		return &ConfigurationError{Field: "sha", Reason: "commit sha is required"}
	}
	if strings.TrimSpace(r.Owner) == "" {
		return &ConfigurationError{Field: "owner", Reason: "repository owner is required"}
	}
	if strings.TrimSpace(r.Repo) == "" {
		return &ConfigurationError{Field: "repo", Reason: "repository name is required"}
	}
	return nil
}

// Branch returns the last segment of the git ref, e.g. "main" for "refs/heads/main".
func (r RunContext) Branch() string {
	ref := strings.TrimSpace(r.Ref)
	if ref == "" {
		return ""
	}
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// Link points at the pull request when there is one, the commit otherwise.
func (r RunContext) Link() string {
	base := strings.TrimRight(strings.TrimSpace(r.RepoURL), "/")
	if base == "" {
		return ""
	}
	if r.PullRequest > 0 {
		return fmt.Sprintf("%s/pull/%d", base, r.PullRequest)
	}
	return fmt.Sprintf("%s/commit/%s", base, r.SHA)
}

// DisplayName prefers the owner/name form.
func (r RunContext) DisplayName() string {
	if strings.TrimSpace(r.FullName) != "" {
		return r.FullName
	}
	return r.Owner + "/" + r.Repo
}
