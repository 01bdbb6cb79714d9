package manifest

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rebuild-labs/rebuild-ci/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	ScriptTest  = "ci:test"
	ScriptBuild = "ci:build"
)

// Manifest is the project descriptor. Only the scripts map is read.
type Manifest struct {
	Path    string            `json:"-" yaml:"-"`
	Scripts map[string]string `json:"scripts" yaml:"scripts"`
}

// Load reads a package.json style manifest, or YAML when the extension says so.
// A missing or malformed manifest is a configuration error.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Manifest{}, &domain.ConfigurationError{Field: "manifest", Reason: "manifest not found: " + path}
		}
		return Manifest{}, &domain.IOFailure{Op: "read manifest", Path: path, Err: err}
	}
	return Parse(path, data)
}

func Parse(path string, data []byte) (Manifest, error) {
	m := Manifest{Path: path}
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		err = json.Unmarshal(data, &m)
	}
	if err != nil {
		return Manifest{}, &domain.ConfigurationError{Field: "manifest", Reason: "parse " + filepath.Base(path), Err: err}
	}
	return m, nil
}

// Script returns the trimmed command for name. Blank entries count as absent.
func (m Manifest) Script(name string) (string, bool) {
	if m.Scripts == nil {
		return "", false
	}
	cmd := strings.TrimSpace(m.Scripts[name])
	if cmd == "" {
		return "", false
	}
	return cmd, true
}
