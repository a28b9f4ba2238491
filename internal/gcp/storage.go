package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCSStore uploads envelopes to a GCS bucket and streams inbox objects to
// local files.
type GCSStore struct {
	client        *storage.Client
	bucket        string
	uploadTimeout time.Duration
}

// NewGCSStore creates a storage client bound to the export bucket. The
// bucket may be empty when the store is only used to read inbox objects.
func NewGCSStore(ctx context.Context, bucket string, uploadTimeout time.Duration) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	if uploadTimeout <= 0 {
		uploadTimeout = 50 * time.Second
	}
	return &GCSStore{client: client, bucket: bucket, uploadTimeout: uploadTimeout}, nil
}

// Bucket returns the export bucket name.
func (s *GCSStore) Bucket() string {
	return s.bucket
}

// UploadFile copies a local file to gs://bucket/key in a single attempt.
func (s *GCSStore) UploadFile(ctx context.Context, localPath, key string) error {
	if s.bucket == "" {
		return errors.New("no export bucket configured for GCS store")
	}
	localFileReader, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("could not open local file %s: %w", localPath, err)
	}
	defer localFileReader.Close()

	writeCtx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	gcsWriter := s.client.Bucket(s.bucket).Object(key).NewWriter(writeCtx)
	gcsWriter.ContentType = "application/json"

	if _, err := io.Copy(gcsWriter, localFileReader); err != nil {
		_ = gcsWriter.Close()
		return describeGCSError("io.Copy to GCS failed", err)
	}
	if err := gcsWriter.Close(); err != nil {
		return describeGCSError("failed to close GCS writer (finalize upload)", err)
	}
	slog.Debug("Uploaded object to GCS.", "bucket", s.bucket, "gcsObject", key)
	return nil
}

// Download streams gs://bucket/object into destPath.
func (s *GCSStore) Download(ctx context.Context, bucket, object, destPath string) error {
	gcsReader, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer gcsReader.Close()
	localFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file at %s: %w", destPath, err)
	}
	return copyAndClose(localFile, gcsReader)
}

// copyAndClose drains r into f and closes f, reporting a failed close.
func copyAndClose(f *os.File, r io.Reader) error {
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to copy GCS object to local file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to finalize local file %s: %w", f.Name(), err)
	}
	return nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// describeGCSError keeps the HTTP status of API errors visible in the message.
func describeGCSError(message string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fmt.Errorf("%s (status %d): %w", message, gerr.Code, err)
	}
	return fmt.Errorf("%s: %w", message, err)
}
