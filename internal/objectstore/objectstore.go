// Package objectstore defines where export envelopes are uploaded.
// The S3 implementation works with any S3-compatible provider (AWS S3, MinIO);
// the GCS implementation lives in the gcp package.
package objectstore

import "context"

// ObjectStore uploads a local file under a key in a single bucket.
type ObjectStore interface {
	// UploadFile uploads the file at localPath under key. It makes exactly one attempt.
	UploadFile(ctx context.Context, localPath, key string) error
	// Bucket returns the destination bucket name.
	Bucket() string
}
