// Package storage abstracts where report artifacts land: a local directory
// or an S3 prefix.
package storage

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// BlobStore defines the interface for abstract storage backends.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// ForTarget resolves an output target into a backend. "s3://bucket/prefix"
// uploads; anything else is treated as a local directory.
func ForTarget(cfg aws.Config, target string) BlobStore {
	if rest, ok := strings.CutPrefix(target, "s3://"); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		return NewS3Store(cfg, bucket, prefix)
	}
	return NewLocalStore(target)
}
