// Package chat posts messages to an incoming chat webhook (Slack compatible).
package chat

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

	"github.com/rebuild-labs/rebuild-ci/internal/platform/env"
)

type Config struct {
	WebhookURL string
	Timeout    time.Duration
}

func ConfigFromEnv(src env.Source) (Config, error) {
	timeout, err := src.Duration("CHAT_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		WebhookURL: strings.TrimSpace(src.String("INCOMING_SLACK", "")),
		Timeout:    timeout,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Enabled reports whether a webhook is configured. The webhook is optional.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.WebhookURL) != ""
}

func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return errors.New("CHAT_TIMEOUT must be positive")
	}
	if !c.Enabled() {
		return nil
	}
	u, err := url.Parse(c.WebhookURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return errors.New("INCOMING_SLACK must be an http(s) url")
	}
	return nil
}

type Attachment struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
	Color string `json:"color,omitempty"`
}

type Message struct {
	Text        string       `json:"text,omitempty"`
	Color       string       `json:"color,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("chat webhook error (status=%d)", e.StatusCode)
	}
	return fmt.Sprintf("chat webhook error (status=%d): %s", e.StatusCode, body)
}

type Client struct {
	url  string
	http *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		return nil, errors.New("webhook url is required")
	}
	return &Client{url: cfg.WebhookURL, http: &http.Client{Timeout: cfg.Timeout}}, nil
}

// Post sends one message. The webhook is called exactly once.
func (c *Client) Post(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}
