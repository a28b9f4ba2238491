package partition

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Lllllllleong/ingestiongateway/internal/models"
)

// DefaultUnstructuredURL is the hosted Unstructured partition endpoint.
const DefaultUnstructuredURL = "https://api.unstructuredapp.io/general/v0/general"

// textFileName is the name under which raw text is submitted.
const textFileName = "content.txt"

// maxErrorBody caps how much of a failed response is echoed in errors.
const maxErrorBody = 4096

// UnstructuredConfig holds the settings for the Unstructured partition API.
type UnstructuredConfig struct {
	URL      string
	APIKey   string
	Strategy string
	Timeout  time.Duration
}

// UnstructuredClient partitions documents through the Unstructured HTTP API.
type UnstructuredClient struct {
	config UnstructuredConfig
	client *resty.Client
}

// NewUnstructuredClient creates a client; an empty URL selects the hosted API.
func NewUnstructuredClient(cfg UnstructuredConfig) *UnstructuredClient {
	if cfg.URL == "" {
		cfg.URL = DefaultUnstructuredURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	r := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		r.SetHeader("unstructured-api-key", cfg.APIKey)
	}
	return &UnstructuredClient{config: cfg, client: r}
}

// PartitionFile implements Partitioner.
func (c *UnstructuredClient) PartitionFile(ctx context.Context, path string) ([]models.Element, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s for partitioning: %w", path, err)
	}
	defer file.Close()

	name := filepath.Base(path)
	return c.partition(ctx, name, MIMEType(name), file)
}

// PartitionText implements Partitioner.
func (c *UnstructuredClient) PartitionText(ctx context.Context, text string) ([]models.Element, error) {
	return c.partition(ctx, textFileName, "text/plain", strings.NewReader(text))
}

func (c *UnstructuredClient) partition(ctx context.Context, name, contentType string, content io.Reader) ([]models.Element, error) {
	var elements []models.Element
	req := c.client.R().
		SetContext(ctx).
		SetMultipartField("files", name, contentType, content).
		ForceContentType("application/json").
		SetResult(&elements)
	if c.config.Strategy != "" {
		req.SetMultipartFormData(map[string]string{"strategy": c.config.Strategy})
	}

	resp, err := req.Post(c.config.URL)
	if err != nil {
		return nil, fmt.Errorf("partition request failed: %w", err)
	}
	if resp.IsError() {
		body := resp.String()
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, fmt.Errorf("partition API returned status %d: %s", resp.StatusCode(), body)
	}
	return elements, nil
}
