package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultS3Endpoint is the AWS S3 endpoint used when none is configured.
const DefaultS3Endpoint = "s3.amazonaws.com"

var (
	// ErrBucketRequired is returned when no bucket name is configured.
	ErrBucketRequired = errors.New("S3 bucket name required")

	// ErrNoCredentials is returned at upload time when no access keys are configured.
	ErrNoCredentials = errors.New("unable to locate credentials")
)

// S3Config holds the connection settings for an S3-compatible bucket.
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// S3Store uploads envelopes through the MinIO client.
type S3Store struct {
	client      *minio.Client
	bucket      string
	credentials bool
	logger      *slog.Logger
}

// NewS3Store creates a client for the configured bucket. Missing credentials
// do not fail construction; they surface as ErrNoCredentials on upload.
func NewS3Store(cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, ErrBucketRequired
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultS3Endpoint
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client for %s: %w", cfg.Endpoint, err)
	}

	return &S3Store{
		client:      client,
		bucket:      cfg.Bucket,
		credentials: cfg.AccessKeyID != "" && cfg.SecretAccessKey != "",
		logger:      logger.With("bucket", cfg.Bucket, "endpoint", cfg.Endpoint),
	}, nil
}

// Bucket returns the destination bucket name.
func (s *S3Store) Bucket() string {
	return s.bucket
}

// UploadFile implements ObjectStore.UploadFile.
func (s *S3Store) UploadFile(ctx context.Context, localPath, key string) error {
	if !s.credentials {
		return ErrNoCredentials
	}
	info, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		s.logger.Error("Failed to upload file to S3", "key", key, "error", err)
		return describeS3Error(err)
	}
	s.logger.Debug("Uploaded object to S3.", "key", key, "size", info.Size)
	return nil
}

// describeS3Error prefixes service errors with their S3 error code.
func describeS3Error(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code != "" {
		return fmt.Errorf("%s: %w", resp.Code, err)
	}
	return err
}
