// Package fetch retrieves the content behind a URL for partitioning.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTimeout bounds a single fetch when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Fetcher retrieves the body of a URL as text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher performs a blocking GET and fails on any non-2xx status.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher returns a fetcher with the given timeout. Failed requests
// are never retried.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0)
	return &HTTPFetcher{client: r}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("%d %s for url: %s", resp.StatusCode(), http.StatusText(resp.StatusCode()), url)
	}
	return string(resp.Body()), nil
}
