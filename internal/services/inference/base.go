package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ChartSignal/pkg/config"
	xhttp "ChartSignal/pkg/http"
)

// ErrNotConfigured is returned when no model server URL is set.
var ErrNotConfigured = errors.New("inference: base url not configured")

// HTTPServiceBase is the shared foundation of the model server clients:
// one HTTP client, one base URL and JSON POST with bounded retries.
type HTTPServiceBase struct {
	baseURL  string
	model    string
	attempts int
	client   *xhttp.Client
}

// NewHTTPServiceBase builds an HTTP client with timeout and base URL from config.
func NewHTTPServiceBase(cfg *config.Config, opts ...xhttp.ClientOption) *HTTPServiceBase {
	timeout := cfg.Inference.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	base := []xhttp.ClientOption{xhttp.WithTimeout(timeout)}
	if cfg.Inference.APIKey != "" {
		base = append(base, xhttp.WithHeader("X-Api-Key", cfg.Inference.APIKey))
	}
	opts = append(base, opts...)
	initMetrics()
	return &HTTPServiceBase{
		baseURL:  cfg.Inference.BaseURL,
		model:    cfg.Inference.Model,
		attempts: cfg.Inference.Retries + 1,
		client:   xhttp.NewClient(opts...),
	}
}

// Configured reports whether a base URL is set.
func (b *HTTPServiceBase) Configured() bool {
	return b != nil && b.baseURL != ""
}

// PostJSON posts the payload to path under baseURL and decodes JSON into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if !b.Configured() {
		return ErrNotConfigured
	}
	start := time.Now()
	err := b.client.DoJSON(ctx, http.MethodPost, b.baseURL+path, payload, dest)
	callLatency.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		callErrors.WithLabelValues(path).Inc()
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// PostJSONWithRetry retries transient failures with linear backoff. Client
// errors (4xx other than 429) are returned at once.
func (b *HTTPServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	attempts := b.attempts
	if attempts <= 1 {
		return b.PostJSON(ctx, path, payload, dest)
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = b.PostJSON(ctx, path, payload, dest)
		if err == nil || !retryable(err) || i == attempts {
			return err
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
