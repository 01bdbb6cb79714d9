package env

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Source resolves configuration keys. Configuration is read through a Source
// once at startup so pipelines never consult the process environment directly.
type Source func(key string) (string, bool)

// FromPairs builds a Source from KEY=VALUE pairs as returned by os.Environ.
// Later pairs win over earlier ones with the same key.
func FromPairs(pairs []string) Source {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		values[key] = value
	}
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

// FromMap builds a Source from a map, mostly for tests.
func FromMap(values map[string]string) Source {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func (s Source) lookup(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	return s(key)
}

func (s Source) String(key string, def string) string {
	if v, ok := s.lookup(key); ok {
		return v
	}
	return def
}

// First returns the value of the first key that is set to a non-blank value.
func (s Source) First(def string, keys ...string) string {
	for _, key := range keys {
		if v, ok := s.lookup(key); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return def
}

func (s Source) Required(key string) (string, error) {
	v, ok := s.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return strings.TrimSpace(v), nil
}

func (s Source) Duration(key string, def time.Duration) (time.Duration, error) {
	if v, ok := s.lookup(key); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}
		return d, nil
	}
	return def, nil
}

func (s Source) Bool(key string, def bool) (bool, error) {
	if v, ok := s.lookup(key); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("parse %s: %w", key, err)
		}
		return b, nil
	}
	return def, nil
}

func (s Source) Int(key string, def int) (int, error) {
	if v, ok := s.lookup(key); ok {
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}
		return i, nil
	}
	return def, nil
}
