package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bryanwahyu/policy-analysis/internal/domain/jobs"
)

const DefaultTimeout = 30 * time.Second

var ErrUnexpectedStatus = errors.New("callback returned unexpected status")

// Dispatcher POSTs terminal payloads to caller-supplied URLs.
// Delivery is a single attempt; there is no retry or dead-letter queue.
type Dispatcher struct {
	httpClient *http.Client
	logger     arbor.ILogger
}

var _ jobs.Notifier = (*Dispatcher)(nil)

func New(timeout time.Duration, logger arbor.ILogger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Deliver succeeds only on HTTP 200.
func (d *Dispatcher) Deliver(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode callback payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	d.logger.Info().Str("url", url).Int("bytes", len(body)).Msg("sending callback")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post callback: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	d.logger.Info().Str("url", url).Msg("callback sent")
	return nil
}
