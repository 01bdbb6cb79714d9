package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rebuild-labs/rebuild-ci/internal/domain"
	"github.com/rebuild-labs/rebuild-ci/internal/platform/github"
)

type CommentAPI interface {
	CreateCommitComment(ctx context.Context, owner, repo, sha, body string) (github.CommitComment, error)
}

type CommentPoster struct {
	api CommentAPI
	run domain.RunContext
}

func NewCommentPoster(api CommentAPI, run domain.RunContext) (*CommentPoster, error) {
	if api == nil {
		return nil, errors.New("comment api is required")
	}
	return &CommentPoster{api: api, run: run}, nil
}

// Post creates one comment on the run's commit.
func (p *CommentPoster) Post(ctx context.Context, body string) error {
	if strings.TrimSpace(body) == "" {
		return errors.New("comment body is required")
	}
	if _, err := p.api.CreateCommitComment(ctx, p.run.Owner, p.run.Repo, p.run.SHA, body); err != nil {
		return &domain.RemoteAPIFailure{Service: "github", Op: "create commit comment", StatusCode: github.StatusCode(err), Err: err}
	}
	return nil
}

// DeploymentsComment renders the markdown body listing each deployment.
func DeploymentsComment(deployments []domain.Deployment) string {
	var b strings.Builder
	b.WriteString("## Deployments")
	for _, d := range deployments {
		b.WriteString("\n")
		if d.Skipped {
			fmt.Fprintf(&b, "%s: no ci:build script", d.Environment.Title())
			continue
		}
		fmt.Fprintf(&b, "[%s](%s)", d.Environment.Title(), d.URL)
	}
	return b.String()
}
