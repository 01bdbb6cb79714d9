package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	platformstore "github.com/rebuild-labs/rebuild-ci/internal/platform/objectstore"
)

const aclHeader = "x-amz-acl"

type MinioStore struct {
	client *minio.Client
	region string
}

func NewMinioStore(cfg platformstore.Config) (*MinioStore, error) {
	client, err := platformstore.NewMinIOClient(cfg)
	if err != nil {
		return nil, err
	}
	return &MinioStore{client: client, region: cfg.Region}, nil
}

func NewMinioStoreWithClient(client *minio.Client, region string) (*MinioStore, error) {
	if client == nil {
		return nil, fmt.Errorf("minio client is required")
	}
	return &MinioStore{client: client, region: region}, nil
}

func (s *MinioStore) EnsureBucket(ctx context.Context, bucket string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("minio store not initialized")
	}
	return platformstore.EnsureBucket(ctx, s.client, bucket, s.region)
}

func (s *MinioStore) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, opts PutOptions) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("minio store not initialized")
	}
	putOpts := minio.PutObjectOptions{ContentType: opts.ContentType}
	if opts.PublicRead {
		putOpts.UserMetadata = map[string]string{aclHeader: "public-read"}
	}
	_, err := s.client.PutObject(ctx, bucket, key, body, size, putOpts)
	return err
}
