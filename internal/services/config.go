package services

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/Lllllllleong/ingestiongateway/internal/fetch"
	"github.com/Lllllllleong/ingestiongateway/internal/gcp"
	"github.com/Lllllllleong/ingestiongateway/internal/objectstore"
	"github.com/Lllllllleong/ingestiongateway/internal/partition"
)

// Storage backends.
const (
	StorageBackendS3  = "s3"
	StorageBackendGCS = "gcs"
)

// Partitioning backends.
const (
	PartitionerUnstructured = "unstructured"
	PartitionerVertex       = "vertex"
)

// GatewayConfig holds all configuration for the ingestion gateway.
type GatewayConfig struct {
	StorageBackend  string
	S3              objectstore.S3Config
	GCSExportBucket string
	UploadTimeout   time.Duration

	Partitioner           string
	Unstructured          partition.UnstructuredConfig
	ProjectID             string
	VertexAIRegion        string
	VertexAIModel         string
	VertexPageConcurrency int

	FetchTimeout   time.Duration
	WorkerPoolSize int
	TempDir        string

	FirestoreCollection string
	WorkflowID          string
	WorkflowLocation    string
	InboxEnabled        bool
}

// LoadGatewayConfig loads and validates all necessary environment variables.
func LoadGatewayConfig() (*GatewayConfig, error) {
	cfg := &GatewayConfig{
		StorageBackend: gcp.GetEnv("STORAGE_BACKEND", StorageBackendS3),
		S3: objectstore.S3Config{
			Endpoint:        gcp.GetEnv("S3_ENDPOINT", objectstore.DefaultS3Endpoint),
			Region:          gcp.GetEnv("AWS_REGION", "us-east-1"),
			Bucket:          gcp.GetEnv("S3_BUCKET_NAME", ""),
			AccessKeyID:     gcp.GetEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: gcp.GetEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
		GCSExportBucket: gcp.GetEnv("GCS_EXPORT_BUCKET", ""),
		Partitioner:     gcp.GetEnv("PARTITIONER", PartitionerUnstructured),
		Unstructured: partition.UnstructuredConfig{
			URL:      gcp.GetEnv("UNSTRUCTURED_API_URL", partition.DefaultUnstructuredURL),
			APIKey:   gcp.GetEnv("UNSTRUCTURED_API_KEY", ""),
			Strategy: gcp.GetEnv("UNSTRUCTURED_STRATEGY", ""),
		},
		ProjectID:           gcp.GetEnv("PROJECT_ID", ""),
		VertexAIRegion:      gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		VertexAIModel:       gcp.GetEnv("VERTEX_AI_MODEL", gcp.DefaultPartitionModel),
		TempDir:             gcp.GetEnv("TEMP_DIR", os.TempDir()),
		FirestoreCollection: gcp.GetEnv("FIRESTORE_COLLECTION", ""),
		WorkflowID:          gcp.GetEnv("WORKFLOW_ID", ""),
		WorkflowLocation:    gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
	}

	var err error
	if cfg.S3.UseSSL, err = gcp.GetEnvBool("S3_USE_SSL", true); err != nil {
		return nil, err
	}
	if cfg.UploadTimeout, err = gcp.GetEnvDuration("UPLOAD_TIMEOUT", 50*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = gcp.GetEnvDuration("FETCH_TIMEOUT", fetch.DefaultTimeout); err != nil {
		return nil, err
	}
	if cfg.Unstructured.Timeout, err = gcp.GetEnvDuration("UNSTRUCTURED_TIMEOUT", 300*time.Second); err != nil {
		return nil, err
	}
	if cfg.VertexPageConcurrency, err = gcp.GetEnvInt("VERTEX_PAGE_CONCURRENCY", partition.DefaultPageConcurrency); err != nil {
		return nil, err
	}
	if cfg.WorkerPoolSize, err = gcp.GetEnvInt("WORKER_POOL_SIZE", runtime.NumCPU()*4); err != nil {
		return nil, err
	}
	if cfg.InboxEnabled, err = gcp.GetEnvBool("INBOX_ENABLED", false); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every enabled component has what it needs. The export
// bucket is always required; there is no implicit default.
func (c *GatewayConfig) Validate() error {
	switch c.StorageBackend {
	case StorageBackendS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET_NAME environment variable must be set")
		}
	case StorageBackendGCS:
		if c.GCSExportBucket == "" {
			return fmt.Errorf("GCS_EXPORT_BUCKET environment variable must be set")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q (want %q or %q)", c.StorageBackend, StorageBackendS3, StorageBackendGCS)
	}

	switch c.Partitioner {
	case PartitionerUnstructured:
	case PartitionerVertex:
		if c.ProjectID == "" {
			return fmt.Errorf("PROJECT_ID environment variable must be set for the vertex partitioner")
		}
	default:
		return fmt.Errorf("unsupported PARTITIONER %q (want %q or %q)", c.Partitioner, PartitionerUnstructured, PartitionerVertex)
	}

	if c.FirestoreCollection != "" && c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID environment variable must be set when FIRESTORE_COLLECTION is set")
	}
	if c.WorkflowID != "" && c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID environment variable must be set when WORKFLOW_ID is set")
	}
	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("WORKER_POOL_SIZE must be at least 1")
	}
	return nil
}
