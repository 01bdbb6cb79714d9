package objectstore

import (
	"context"
	"io"
)

// Store abstracts the S3-compatible bucket operations artifact publishing needs.
type Store interface {
	EnsureBucket(ctx context.Context, bucket string) error
	Put(ctx context.Context, bucket, key string, body io.Reader, size int64, opts PutOptions) error
}

type PutOptions struct {
	ContentType string
	PublicRead  bool
}
