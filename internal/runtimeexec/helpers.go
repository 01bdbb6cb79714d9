package runtimeexec

import (
	"os"
	"strings"
	"unicode/utf8"
)

const maxStderrBytes = 8 << 10

// tailBuffer keeps the last max bytes written to it, which is where tools
// print their errors.
type tailBuffer struct {
	max       int
	buf       []byte
	truncated bool
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
		b.truncated = true
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	if !b.truncated {
		return strings.TrimSpace(string(b.buf))
	}
	return "..." + strings.TrimSpace(fromRuneStart(string(b.buf)))
}

// fromRuneStart drops continuation bytes left over from a cut mid-rune.
func fromRuneStart(s string) string {
	cut := 0
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return s[cut:]
}

// buildEnv copies parent and prepends pathDirs to its PATH.
func buildEnv(parent []string, pathDirs []string) []string {
	env := make([]string, 0, len(parent)+1)
	currentPath := ""
	for _, pair := range parent {
		key, value, _ := strings.Cut(pair, "=")
		if key == "PATH" && len(pathDirs) > 0 {
			currentPath = value
			continue
		}
		env = append(env, pair)
	}
	if len(pathDirs) > 0 {
		parts := append([]string{}, pathDirs...)
		if currentPath != "" {
			parts = append(parts, currentPath)
		}
		env = append(env, "PATH="+strings.Join(parts, string(os.PathListSeparator)))
	}
	return env
}
