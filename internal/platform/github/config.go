package github

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rebuild-labs/rebuild-ci/internal/platform/env"
)

const defaultAPIURL = "https://api.github.com"

type Config struct {
	APIURL    string
	Token     string
	Timeout   time.Duration
	UserAgent string
}

func ConfigFromEnv(src env.Source) (Config, error) {
	timeout, err := src.Duration("GITHUB_API_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		APIURL:    src.First(defaultAPIURL, "GITHUB_API_URL"),
		Token:     strings.TrimSpace(src.First("", "GITHUB_TOKEN")),
		Timeout:   timeout,
		UserAgent: "rebuild-ci",
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return errors.New("GITHUB_TOKEN is required")
	}
	u, err := url.Parse(strings.TrimSpace(c.APIURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("GITHUB_API_URL must be an absolute url: %q", c.APIURL)
	}
	if c.Timeout <= 0 {
		return errors.New("GITHUB_API_TIMEOUT must be positive")
	}
	return nil
}
