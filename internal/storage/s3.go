package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// S3Storage publishes into a bucket of an S3-compatible service (AWS S3, MinIO, etc.)
type S3Storage struct {
	client *minio.Client
	bucket string
	region string
}

// NewS3Storage creates a new S3-compatible storage provider
func NewS3Storage(endpoint, accessKey, secretKey, region, bucket string, useSSL bool) (*S3Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	log.Debug().
		Str("endpoint", endpoint).
		Str("bucket", bucket).
		Str("region", region).
		Bool("ssl", useSSL).
		Msg("S3-compatible storage initialized")

	return &S3Storage{
		client: client,
		bucket: bucket,
		region: region,
	}, nil
}

// Name returns the provider name
func (s3 *S3Storage) Name() string {
	return "s3"
}

// Health checks that the bucket is reachable
func (s3 *S3Storage) Health(ctx context.Context) error {
	exists, err := s3.client.BucketExists(ctx, s3.bucket)
	if err != nil {
		return fmt.Errorf("S3 health check failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("S3 bucket %s does not exist", s3.bucket)
	}
	return nil
}

// Upload uploads a file to the bucket
func (s3 *S3Storage) Upload(ctx context.Context, key string, data io.Reader, size int64, opts *UploadOptions) (*Object, error) {
	if opts == nil {
		opts = &UploadOptions{}
	}

	putOpts := minio.PutObjectOptions{
		ContentType:     opts.ContentType,
		ContentEncoding: opts.ContentEncoding,
		CacheControl:    opts.CacheControl,
		UserMetadata:    opts.Metadata,
	}

	info, err := s3.client.PutObject(ctx, s3.bucket, key, data, size, putOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Debug().
		Str("bucket", s3.bucket).
		Str("key", key).
		Int64("size", info.Size).
		Msg("File uploaded to S3")

	return &Object{
		Key:             key,
		Size:            info.Size,
		ContentType:     opts.ContentType,
		ContentEncoding: opts.ContentEncoding,
		LastModified:    time.Now(),
		ETag:            strings.Trim(info.ETag, `"`),
	}, nil
}

// Exists checks if an object exists in the bucket
func (s3 *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s3.client.StatObject(ctx, s3.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}
