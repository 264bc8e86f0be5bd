package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/thumbcache/internal/config"
	"github.com/yokitheyo/thumbcache/internal/domain"
)

// s3Mirror copies committed cache entries to an S3-compatible bucket so a CDN
// can serve them. The local cache stays authoritative.
type s3Mirror struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewS3Mirror(ctx context.Context, cfg *config.MirrorConfig) (domain.Mirror, error) {
	if cfg.S3Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}

	creds := credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, "")
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.S3Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check s3 bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.S3Bucket, minio.MakeBucketOptions{Region: cfg.S3Region}); err != nil {
			zlog.Logger.Warn().Err(err).Str("bucket", cfg.S3Bucket).Msg("unable to create bucket, ensure it exists and credentials are correct")
		} else {
			zlog.Logger.Info().Str("bucket", cfg.S3Bucket).Msg("created s3 bucket")
		}
	}

	return &s3Mirror{
		client: client,
		bucket: cfg.S3Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (m *s3Mirror) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if r == nil {
		zlog.Logger.Error().Str("key", key).Msg("reader is nil")
		return fmt.Errorf("%w: reader", domain.ErrNilDependency)
	}

	objectName := ObjectKey(m.prefix, key)

	_, err := m.client.PutObject(ctx, m.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("object", objectName).Msg("failed to put object to s3")
		return fmt.Errorf("%w: put object %s: %v", domain.ErrRemoteFailure, objectName, err)
	}

	zlog.Logger.Info().Str("object", objectName).Int64("bytes", size).Msg("cache entry mirrored to s3")
	return nil
}

// ObjectKey joins prefix and a slash-separated cache key.
func ObjectKey(prefix, key string) string {
	key = strings.TrimLeft(key, "/")
	if prefix == "" {
		return key
	}
	return path.Join(prefix, key)
}
