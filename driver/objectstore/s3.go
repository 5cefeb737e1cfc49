// Package objectstore wraps the S3 clients used for feed artifacts and the
// thumbnail cache. The store is the only cross-run shared state; uploads are
// idempotent by key.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Store is the object-store surface the pipeline depends on.
type Store interface {
	// Exists reports whether the key is present. Transient (non-404) probe
	// failures are returned as errors so the caller can treat the key as
	// not cached and retry next run.
	Exists(ctx context.Context, bucket, key string) (bool, error)
	// Upload stores the local file under bucket/key.
	Upload(ctx context.Context, localPath, bucket, key string) error
}

// S3Store implements Store against AWS S3.
type S3Store struct {
	client *s3.Client
}

func NewS3Store(ctx context.Context) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Store{client: s3.NewFromConfig(cfg)}, nil
}

func (s *S3Store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("head s3://%s/%s: %w", bucket, key, err)
	}
	return true, nil
}

func (s *S3Store) Upload(ctx context.Context, localPath, bucket, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// NoopStore is used when NO_UPLOAD is set: nothing is remote, nothing is
// uploaded.
type NoopStore struct{}

func (NoopStore) Exists(ctx context.Context, bucket, key string) (bool, error) { return false, nil }

func (NoopStore) Upload(ctx context.Context, localPath, bucket, key string) error { return nil }
