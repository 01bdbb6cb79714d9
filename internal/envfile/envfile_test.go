package envfile

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rebuild-labs/rebuild-ci/internal/domain"
)

func TestResolve_SharedStripsPrefixAndKeepsOrder(t *testing.T) {
	vars := ParseEnviron([]string{
		"PATH=/usr/bin",
		"REBUILD_API_URL=https://api.example.com",
		"HOME=/root",
		"REBUILD_TOKEN=a=b=c",
		"REBUILD_=ignored",
	})
	got := Resolve(vars, SharedRules())
	want := []Var{
		{Key: "API_URL", Value: "https://api.example.com"},
		{Key: "TOKEN", Value: "a=b=c"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Resolve()=%v, want %v", got, want)
	}
	for _, v := range got {
		if strings.HasPrefix(v.Key, domain.SharedKeyPrefix) {
			t.Fatalf("key %q still carries the prefix", v.Key)
		}
	}
}

func TestResolve_SpecificPrefixOverridesShared(t *testing.T) {
	all := domain.KnownEnvironments()
	vars := ParseEnviron([]string{
		"REBUILD_API_URL=shared",
		"REBUILD_DEBUG=1",
		"REBUILD_STAGING_API_URL=staging",
		"REBUILD_PRODUCTION_API_URL=production",
		"REBUILD_STAGING_ONLY=yes",
	})

	got := Resolve(vars, EnvironmentRules(domain.EnvironmentStaging, all))
	want := []Var{
		{Key: "API_URL", Value: "staging"},
		{Key: "DEBUG", Value: "1"},
		{Key: "ONLY", Value: "yes"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("staging Resolve()=%v, want %v", got, want)
	}

	got = Resolve(vars, EnvironmentRules(domain.EnvironmentProduction, all))
	want = []Var{
		{Key: "API_URL", Value: "production"},
		{Key: "DEBUG", Value: "1"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("production Resolve()=%v, want %v", got, want)
	}
}

func TestResolve_SharedNeverOverridesSpecific(t *testing.T) {
	vars := ParseEnviron([]string{
		"REBUILD_STAGING_API_URL=staging",
		"REBUILD_API_URL=shared",
	})
	got := Resolve(vars, EnvironmentRules(domain.EnvironmentStaging, domain.KnownEnvironments()))
	want := []Var{{Key: "API_URL", Value: "staging"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Resolve()=%v, want %v", got, want)
	}
}

func TestResolve_UniqueKeys(t *testing.T) {
	vars := ParseEnviron([]string{
		"REBUILD_A=1",
		"REBUILD_STAGING_A=2",
		"REBUILD_A=3",
		"REBUILD_B=4",
	})
	got := Resolve(vars, EnvironmentRules(domain.EnvironmentStaging, domain.KnownEnvironments()))
	keys := map[string]bool{}
	for _, v := range got {
		if keys[v.Key] {
			t.Fatalf("duplicate key %q in %v", v.Key, got)
		}
		keys[v.Key] = true
	}
	if got[0].Key != "A" || got[0].Value != "2" {
		t.Fatalf("A=%v, want staging value 2", got[0])
	}
}

func TestWrite_OverwritesAndHasNoTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("OLD=1\nSTALE=2\n"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := Write(path, []Var{{Key: "A", Value: "1"}, {Key: "B", Value: "two words"}}); err != nil {
		t.Fatalf("Write() err=%v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "A=1\nB=two words" {
		t.Fatalf("content=%q", data)
	}
}

func TestWrite_ReturnsIOFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", ".env")
	err := Write(path, nil)
	var ioErr *domain.IOFailure
	if !errors.As(err, &ioErr) {
		t.Fatalf("Write() err=%v, want IOFailure", err)
	}
	if ioErr.Path != path {
		t.Fatalf("IOFailure.Path=%q", ioErr.Path)
	}
}

func TestRender_KeepsOrderAndValuesVerbatim(t *testing.T) {
	got := string(Render([]Var{
		{Key: "ZED", Value: `say "hi" $HOME`},
		{Key: "ALPHA", Value: "a=b c"},
		{Key: "EMPTY", Value: ""},
	}))
	want := "ZED=say \"hi\" $HOME\nALPHA=a=b c\nEMPTY="
	if got != want {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
}
