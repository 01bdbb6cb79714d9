// Package artifacts publishes build output directories to object storage.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7/pkg/s3utils"
	"github.com/rebuild-labs/rebuild-ci/internal/domain"
	store "github.com/rebuild-labs/rebuild-ci/internal/storage/objectstore"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 8

// File is one regular file under an artifact root.
type File struct {
	Path string
	Key  string
	Size int64
}

type Uploader struct {
	store       store.Store
	publicURL   func(bucket string) string
	concurrency int
	logger      *slog.Logger
}

func NewUploader(objectStore store.Store, publicURL func(bucket string) string, concurrency int, logger *slog.Logger) (*Uploader, error) {
	if objectStore == nil {
		return nil, errors.New("object store is required")
	}
	if publicURL == nil {
		return nil, errors.New("public url builder is required")
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{store: objectStore, publicURL: publicURL, concurrency: concurrency, logger: logger}, nil
}

// BucketName derives {repo}-{sha}-{env short name}, lowercased for S3.
func BucketName(repo, sha string, env domain.Environment) string {
	return strings.ToLower(fmt.Sprintf("%s-%s-%s", strings.TrimSpace(repo), strings.TrimSpace(sha), env.ShortName()))
}

// Collect walks root depth-first and returns every regular file keyed by its
// slash separated path relative to root. Directories yield no entry.
func Collect(root string) ([]File, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &domain.IOFailure{Op: "stat artifact root", Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &domain.IOFailure{Op: "stat artifact root", Path: root, Err: errors.New("not a directory")}
	}

	var files []File
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, File{Path: p, Key: filepath.ToSlash(rel), Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, &domain.IOFailure{Op: "walk artifact root", Path: root, Err: err}
	}
	return files, nil
}

// Upload ensures the bucket exists and uploads every file of the artifact with
// public-read visibility. It returns only after all uploads have finished.
func (u *Uploader) Upload(ctx context.Context, artifact domain.BuildArtifact, bucket string) (domain.Deployment, error) {
	if err := s3utils.CheckValidBucketNameStrict(bucket); err != nil {
		return domain.Deployment{}, &domain.ConfigurationError{Field: "bucket", Reason: bucket, Err: err}
	}
	files, err := Collect(artifact.Root)
	if err != nil {
		return domain.Deployment{}, err
	}
	if err := u.store.EnsureBucket(ctx, bucket); err != nil {
		return domain.Deployment{}, &domain.RemoteAPIFailure{Service: "storage", Op: "create bucket " + bucket, Err: err}
	}

	logger := u.logger.With("bucket", bucket, "environment", string(artifact.Environment))
	logger.Info("uploading artifact", "files", len(files), "root", artifact.Root)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for _, f := range files {
		f := f
		g.Go(func() error {
			return u.put(gctx, bucket, f)
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Deployment{}, err
	}

	url := u.publicURL(bucket)
	logger.Info("artifact uploaded", "files", len(files), "url", url)
	return domain.Deployment{
		Environment: artifact.Environment,
		Bucket:      bucket,
		URL:         url,
		Objects:     len(files),
	}, nil
}

func (u *Uploader) put(ctx context.Context, bucket string, f File) error {
	fh, err := os.Open(f.Path)
	if err != nil {
		return &domain.IOFailure{Op: "open artifact file", Path: f.Path, Err: err}
	}
	defer fh.Close()

	opts := store.PutOptions{ContentType: contentType(f.Key), PublicRead: true}
	if err := u.store.Put(ctx, bucket, f.Key, fh, f.Size, opts); err != nil {
		return &domain.RemoteAPIFailure{Service: "storage", Op: "put " + f.Key, Err: err}
	}
	return nil
}

func contentType(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
