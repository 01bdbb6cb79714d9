// Package envfile assembles the application .env file from prefixed ambient
// variables.
//
// Prefix rules are applied in priority order: the most specific prefix wins
// when two variables strip down to the same key, while the key keeps the
// position of its first appearance.
package envfile

import (
	"os"
	"strings"

	"github.com/rebuild-labs/rebuild-ci/internal/domain"
)

// Var is one ordered KEY=VALUE entry.
type Var struct {
	Key   string
	Value string
}

// RuleSet selects and renames ambient variables.
type RuleSet struct {
	// Include lists prefixes from most to least specific.
	Include []string
	// Exclude drops variables carrying another target's prefix.
	Exclude []string
}

// SharedRules exports every REBUILD_ variable.
func SharedRules() RuleSet {
	return RuleSet{Include: []string{domain.SharedKeyPrefix}}
}

// EnvironmentRules exports env-specific secrets over shared ones and hides the
// secrets of every other environment in all.
func EnvironmentRules(env domain.Environment, all []domain.Environment) RuleSet {
	rules := RuleSet{Include: []string{env.KeyPrefix(), domain.SharedKeyPrefix}}
	for _, other := range all {
		if other == env {
			continue
		}
		rules.Exclude = append(rules.Exclude, other.KeyPrefix())
	}
	return rules
}

// ParseEnviron converts os.Environ style pairs, keeping their order.
func ParseEnviron(pairs []string) []Var {
	out := make([]Var, 0, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		out = append(out, Var{Key: key, Value: value})
	}
	return out
}

// Resolve filters vars by rules and strips the matched prefix.
func Resolve(vars []Var, rules RuleSet) []Var {
	type slot struct {
		index    int
		priority int
	}
	out := make([]Var, 0)
	seen := map[string]slot{}

	for _, v := range vars {
		if hasAnyPrefix(v.Key, rules.Exclude) {
			continue
		}
		priority, prefix, ok := matchPrefix(v.Key, rules.Include)
		if !ok {
			continue
		}
		key := strings.TrimPrefix(v.Key, prefix)
		if key == "" {
			continue
		}
		existing, dup := seen[key]
		if !dup {
			seen[key] = slot{index: len(out), priority: priority}
			out = append(out, Var{Key: key, Value: v.Value})
			continue
		}
		if priority < existing.priority {
			out[existing.index].Value = v.Value
			seen[key] = slot{index: existing.index, priority: priority}
		}
	}
	return out
}

// Render joins entries as KEY=VALUE lines without a trailing newline.
func Render(vars []Var) []byte {
	lines := make([]string, 0, len(vars))
	for _, v := range vars {
		lines = append(lines, v.Key+"="+v.Value)
	}
	return []byte(strings.Join(lines, "\n"))
}

// Write replaces path with the rendered entries.
func Write(path string, vars []Var) error {
	if err := os.WriteFile(path, Render(vars), 0o600); err != nil {
		return &domain.IOFailure{Op: "write env file", Path: path, Err: err}
	}
	return nil
}

func matchPrefix(key string, prefixes []string) (int, string, bool) {
	for i, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(key, prefix) {
			return i, prefix, true
		}
	}
	return 0, "", false
}

func hasAnyPrefix(key string, prefixes []string) bool {
	_, _, ok := matchPrefix(key, prefixes)
	return ok
}
