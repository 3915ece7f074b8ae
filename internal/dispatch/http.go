package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"flag-events/internal/event"
	"flag-events/pkg/logger"
)

const defaultTimeout = 10 * time.Second

// HTTPDispatcher delivers batches to the collector over HTTP. There are no
// retries: a failed delivery is reported back to the worker and the batch
// is gone.
type HTTPDispatcher struct {
	client *http.Client
}

func NewHTTPDispatcher(timeout time.Duration) *HTTPDispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPDispatcher{client: &http.Client{Timeout: timeout}}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, le event.LogEvent) error {
	req, err := http.NewRequestWithContext(ctx, le.Method, le.URL, bytes.NewReader(le.Body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range le.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("collector responded %d", resp.StatusCode)
	}

	logger.Get().Debugw("batch delivered",
		"url", le.URL,
		"status", resp.StatusCode,
		"count", le.Count,
	)
	return nil
}
