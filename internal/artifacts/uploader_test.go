package artifacts

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/rebuild-labs/rebuild-ci/internal/domain"
	store "github.com/rebuild-labs/rebuild-ci/internal/storage/objectstore"
)

type putCall struct {
	Bucket string
	Key    string
	Body   string
	Opts   store.PutOptions
}

type stubStore struct {
	mu        sync.Mutex
	ensured   []string
	puts      []putCall
	ensureErr error
	putErr    error
}

func (s *stubStore) EnsureBucket(ctx context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensured = append(s.ensured, bucket)
	return s.ensureErr
}

func (s *stubStore) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, opts store.PutOptions) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	s.puts = append(s.puts, putCall{Bucket: bucket, Key: key, Body: string(data), Opts: opts})
	return s.putErr
}

func buildTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"index.html":              "<html></html>",
		"static/js/app.js":        "console.log(1)",
		"static/css/site.css":     "body{}",
		"static/media/a/b/c.json": "{}",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "empty", "dir"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return root
}

func newTestUploader(t *testing.T, s store.Store) *Uploader {
	t.Helper()
	u, err := NewUploader(s, func(bucket string) string { return "https://" + bucket + ".storage.test" }, 2, nil)
	if err != nil {
		t.Fatalf("NewUploader() err=%v", err)
	}
	return u
}

func TestUpload_EveryFileOnceByRelativeKey(t *testing.T) {
	root := buildTree(t)
	s := &stubStore{}
	u := newTestUploader(t, s)

	dep, err := u.Upload(context.Background(), domain.BuildArtifact{Environment: domain.EnvironmentStaging, Root: root}, "site-abc-staging")
	if err != nil {
		t.Fatalf("Upload() err=%v", err)
	}
	if dep.URL != "https://site-abc-staging.storage.test" || dep.Objects != 4 {
		t.Fatalf("deployment=%+v", dep)
	}
	if len(s.ensured) != 1 || s.ensured[0] != "site-abc-staging" {
		t.Fatalf("ensured=%v", s.ensured)
	}

	var keys []string
	for _, p := range s.puts {
		keys = append(keys, p.Key)
		if !p.Opts.PublicRead {
			t.Fatalf("object %s is not public-read", p.Key)
		}
		if p.Bucket != "site-abc-staging" {
			t.Fatalf("object %s in bucket %s", p.Key, p.Bucket)
		}
	}
	sort.Strings(keys)
	want := []string{"index.html", "static/css/site.css", "static/js/app.js", "static/media/a/b/c.json"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Fatalf("keys=%v, want %v", keys, want)
	}
}

func TestUpload_ContentType(t *testing.T) {
	root := buildTree(t)
	s := &stubStore{}
	if _, err := newTestUploader(t, s).Upload(context.Background(), domain.BuildArtifact{Root: root}, "site-abc-prod"); err != nil {
		t.Fatalf("Upload() err=%v", err)
	}
	for _, p := range s.puts {
		if p.Key == "index.html" && !strings.HasPrefix(p.Opts.ContentType, "text/html") {
			t.Fatalf("index.html content type=%q", p.Opts.ContentType)
		}
	}
}

func TestUpload_BucketFailureIsFatal(t *testing.T) {
	root := buildTree(t)
	s := &stubStore{ensureErr: errors.New("BucketAlreadyExists")}
	_, err := newTestUploader(t, s).Upload(context.Background(), domain.BuildArtifact{Root: root}, "site-abc-prod")
	var remote *domain.RemoteAPIFailure
	if !errors.As(err, &remote) {
		t.Fatalf("Upload() err=%v, want RemoteAPIFailure", err)
	}
	if len(s.puts) != 0 {
		t.Fatalf("no object may be uploaded after bucket failure, got %d", len(s.puts))
	}
}

func TestUpload_PutFailureIsReturned(t *testing.T) {
	root := buildTree(t)
	s := &stubStore{putErr: errors.New("AccessDenied")}
	_, err := newTestUploader(t, s).Upload(context.Background(), domain.BuildArtifact{Root: root}, "site-abc-prod")
	if err == nil || !strings.Contains(err.Error(), "AccessDenied") {
		t.Fatalf("Upload() err=%v", err)
	}
}

func TestUpload_MissingRoot(t *testing.T) {
	s := &stubStore{}
	_, err := newTestUploader(t, s).Upload(context.Background(), domain.BuildArtifact{Root: filepath.Join(t.TempDir(), "build")}, "site-abc-prod")
	var ioErr *domain.IOFailure
	if !errors.As(err, &ioErr) {
		t.Fatalf("Upload() err=%v, want IOFailure", err)
	}
	if len(s.ensured) != 0 {
		t.Fatalf("bucket must not be created without an artifact")
	}
}

func TestUpload_InvalidBucketName(t *testing.T) {
	s := &stubStore{}
	_, err := newTestUploader(t, s).Upload(context.Background(), domain.BuildArtifact{Root: t.TempDir()}, "Bad_Bucket")
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Upload() err=%v, want ConfigurationError", err)
	}
}

func TestBucketName(t *testing.T) {
	got := BucketName("Site", "ABC123", domain.EnvironmentProduction)
	if got != "site-abc123-prod" {
		t.Fatalf("BucketName()=%q", got)
	}
	if got := BucketName("site", "abc", domain.EnvironmentStaging); got != "site-abc-staging" {
		t.Fatalf("BucketName()=%q", got)
	}
}

func TestCollect_SkipsSymlinksAndDirectories(t *testing.T) {
	root := buildTree(t)
	if err := os.Symlink(filepath.Join(root, "index.html"), filepath.Join(root, "link.html")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	files, err := Collect(root)
	if err != nil {
		t.Fatalf("Collect() err=%v", err)
	}
	for _, f := range files {
		if f.Key == "link.html" || strings.HasPrefix(f.Key, "empty") {
			t.Fatalf("unexpected entry %q", f.Key)
		}
	}
	if len(files) != 4 {
		t.Fatalf("files=%d, want 4", len(files))
	}
}
