// Package ingest fetches the raw Fashion-MNIST IDX archives and converts
// them into the NPZ dataset the pipeline consumes.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"fmworker/internal/config"
	"fmworker/internal/logger"
)

// ErrUnexpectedStatusCode indicates an HTTP response with unexpected status.
var ErrUnexpectedStatusCode = errors.New("unexpected status code")

// Fetcher downloads dataset files with config-driven retry logic. Retries
// apply only here; the normalization pipeline never retries.
type Fetcher struct {
	client *http.Client
	retry  *config.RetryPolicy
	logger *logger.Logger
}

// NewFetcher creates a fetcher with the given retry policy.
func NewFetcher(retry *config.RetryPolicy, log *logger.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: retry.GetTimeout(),
		},
		retry:  retry,
		logger: log,
	}
}

// Fetch downloads url, retrying with exponential backoff on failure.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= f.retry.MaxAttempts; attempt++ {
		if delay := f.retry.GetRetryDelay(attempt); delay > 0 {
			f.logger.Debug("retrying fetch", "url", url, "attempt", attempt, "delay", delay)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := f.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}

		lastErr = err
		f.logger.Warn("fetch attempt failed", "url", url, "attempt", attempt, "error", err)
	}

	return nil, fmt.Errorf("failed to fetch %s after %d attempts: %w", url, f.retry.MaxAttempts, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", "fmworker/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d for %s", ErrUnexpectedStatusCode, resp.StatusCode, url)
	}

	return io.ReadAll(resp.Body)
}
