package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rebuild-labs/rebuild-ci/internal/platform/env"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

func ConfigFromEnv(src env.Source) (Config, error) {
	useSSL, err := src.Bool("STORAGE_USE_SSL", true)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:  strings.TrimSpace(src.String("STORAGE_ENDPOINT", "")),
		AccessKey: src.First("", "STORAGE_ACCESS_KEY", "AWS_ACCESS_KEY_ID"),
		SecretKey: src.First("", "STORAGE_SECRET_KEY", "AWS_SECRET_ACCESS_KEY"),
		Region:    src.String("STORAGE_REGION", "us-east-1"),
		UseSSL:    useSSL,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("STORAGE_ENDPOINT is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("STORAGE_ACCESS_KEY is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("STORAGE_SECRET_KEY is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("STORAGE_REGION is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}

// PublicURL is the virtual-hosted address buckets are served from.
func (c Config) PublicURL(bucket string) string {
	return "https://" + bucket + "." + strings.TrimSpace(c.Endpoint)
}
