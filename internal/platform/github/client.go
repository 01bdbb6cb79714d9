package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

var (
	ErrNotFound      = errors.New("github resource not found")
	ErrUnauthorized  = errors.New("github request unauthorized")
	ErrForbidden     = errors.New("github request forbidden")
	ErrValidation    = errors.New("github request rejected")
	ErrUnexpectedAPI = errors.New("github unexpected response")
)

type APIError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("github api error (status=%d)", e.StatusCode)
	}
	return fmt.Sprintf("github api error (status=%d): %s", e.StatusCode, body)
}

func (e *APIError) Unwrap() error { return e.Err }

// Client is a minimal GitHub REST client covering check runs and commit comments.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	transport := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}),
		Base:   http.DefaultTransport,
	}
	return NewClientWithHTTP(cfg.APIURL, cfg.UserAgent, &http.Client{Transport: transport, Timeout: cfg.Timeout})
}

func NewClientWithHTTP(baseURL string, userAgent string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("base url is required")
	}
	if httpClient == nil {
		return nil, errors.New("http client is required")
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = "rebuild-ci"
	}
	return &Client{baseURL: baseURL, userAgent: userAgent, http: httpClient}, nil
}

type CheckRunOutput struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Text    string `json:"text,omitempty"`
}

type CreateCheckRunRequest struct {
	Name       string     `json:"name"`
	HeadSHA    string     `json:"head_sha"`
	Status     string     `json:"status,omitempty"`
	ExternalID string     `json:"external_id,omitempty"`
	DetailsURL string     `json:"details_url,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
}

type UpdateCheckRunRequest struct {
	Name        string          `json:"name,omitempty"`
	Status      string          `json:"status,omitempty"`
	Conclusion  string          `json:"conclusion,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Output      *CheckRunOutput `json:"output,omitempty"`
}

type CheckRun struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	HeadSHA    string `json:"head_sha"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	HTMLURL    string `json:"html_url"`
}

type CommitComment struct {
	ID      int64  `json:"id"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
}

func (c *Client) CreateCheckRun(ctx context.Context, owner, repo string, in CreateCheckRunRequest) (CheckRun, error) {
	if strings.TrimSpace(in.Name) == "" {
		return CheckRun{}, errors.New("check run name is required")
	}
	if strings.TrimSpace(in.HeadSHA) == "" {
		return CheckRun{}, errors.New("head sha is required")
	}
	path, err := repoPath(owner, repo, "check-runs")
	if err != nil {
		return CheckRun{}, err
	}
	var out CheckRun
	if err := c.send(ctx, http.MethodPost, path, in, &out); err != nil {
		return CheckRun{}, err
	}
	return out, nil
}

func (c *Client) UpdateCheckRun(ctx context.Context, owner, repo string, id int64, in UpdateCheckRunRequest) (CheckRun, error) {
	if id <= 0 {
		return CheckRun{}, errors.New("check run id is required")
	}
	path, err := repoPath(owner, repo, fmt.Sprintf("check-runs/%d", id))
	if err != nil {
		return CheckRun{}, err
	}
	var out CheckRun
	if err := c.send(ctx, http.MethodPatch, path, in, &out); err != nil {
		return CheckRun{}, err
	}
	return out, nil
}

func (c *Client) CreateCommitComment(ctx context.Context, owner, repo, sha, body string) (CommitComment, error) {
	sha = strings.TrimSpace(sha)
	if sha == "" {
		return CommitComment{}, errors.New("commit sha is required")
	}
	path, err := repoPath(owner, repo, "commits/"+url.PathEscape(sha)+"/comments")
	if err != nil {
		return CommitComment{}, err
	}
	var out CommitComment
	if err := c.send(ctx, http.MethodPost, path, map[string]string{"body": body}, &out); err != nil {
		return CommitComment{}, err
	}
	return out, nil
}

func repoPath(owner, repo, suffix string) (string, error) {
	owner = strings.TrimSpace(owner)
	repo = strings.TrimSpace(repo)
	if owner == "" || repo == "" {
		return "", errors.New("repository owner and name are required")
	}
	return fmt.Sprintf("/repos/%s/%s/%s", url.PathEscape(owner), url.PathEscape(repo), suffix), nil
}

func (c *Client) send(ctx context.Context, method, path string, in any, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if req == nil {
		return errors.New("request is required")
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		if out == nil || len(bytes.TrimSpace(body)) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode github response: %w", err)
		}
		return nil
	case http.StatusNotFound:
		return &APIError{StatusCode: resp.StatusCode, Body: string(body), Err: ErrNotFound}
	case http.StatusUnauthorized:
		return &APIError{StatusCode: resp.StatusCode, Body: string(body), Err: ErrUnauthorized}
	case http.StatusForbidden:
		return &APIError{StatusCode: resp.StatusCode, Body: string(body), Err: ErrForbidden}
	case http.StatusUnprocessableEntity:
		return &APIError{StatusCode: resp.StatusCode, Body: string(body), Err: ErrValidation}
	default:
		return &APIError{StatusCode: resp.StatusCode, Body: string(body), Err: ErrUnexpectedAPI}
	}
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
