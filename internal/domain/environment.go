package domain

import (
	"fmt"
	"strings"
)

// SharedKeyPrefix marks secrets exported to every environment.
const SharedKeyPrefix = "REBUILD_"

// Environment is a deploy target.
type Environment string

const (
	EnvironmentStaging    Environment = "staging"
	EnvironmentProduction Environment = "production"
)

// KnownEnvironments lists every environment in default build order.
func KnownEnvironments() []Environment {
	return []Environment{EnvironmentStaging, EnvironmentProduction}
}

// ShortName is used in bucket names.
func (e Environment) ShortName() string {
	switch e {
	case EnvironmentProduction:
		return "prod"
	default:
		return string(e)
	}
}

// KeyPrefix selects the environment-specific secrets, e.g. REBUILD_STAGING_.
func (e Environment) KeyPrefix() string {
	return SharedKeyPrefix + strings.ToUpper(string(e)) + "_"
}

func (e Environment) Title() string {
	switch e {
	case EnvironmentStaging:
		return "Staging"
	case EnvironmentProduction:
		return "Production"
	default:
		s := string(e)
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	}
}

func ParseEnvironment(value string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "staging", "stage":
		return EnvironmentStaging, nil
	case "production", "prod":
		return EnvironmentProduction, nil
	default:
		return "", &ConfigurationError{Field: "environment", Reason: fmt.Sprintf("unknown environment %q", value)}
	}
}

// ParseEnvironments parses a comma separated list, preserving order.
func ParseEnvironments(list string) ([]Environment, error) {
	var out []Environment
	seen := map[Environment]bool{}
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		env, err := ParseEnvironment(part)
		if err != nil {
			return nil, err
		}
		if seen[env] {
			return nil, &ConfigurationError{Field: "environment", Reason: fmt.Sprintf("duplicate environment %q", env)}
		}
		seen[env] = true
		out = append(out, env)
	}
	if len(out) == 0 {
		return nil, &ConfigurationError{Field: "environment", Reason: "at least one environment is required"}
	}
	return out, nil
}
