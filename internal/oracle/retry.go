package oracle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

const (
	maxAttempts    = 4
	backoffUnit    = time.Second
	maxDrainedBody = 4 * 1024
)

// transientError marks an HTTP status worth retrying (5xx, 429).
type transientError struct {
	status int
	body   string
}

func (e *transientError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.status, e.body)
}

// send executes a request with exponential backoff on network failures and
// transient HTTP statuses. buildReq is called per attempt because request
// bodies are single-use.
func send(ctx context.Context, client *http.Client, buildReq func() (*http.Request, error), logger *slog.Logger) (*http.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			base := time.Duration(1<<(attempt-1)) * backoffUnit
			// Jitter spreads retries from concurrent sessions apart.
			wait := base/2 + time.Duration(rand.Int63n(int64(base/2+1)))
			logger.Warn("retrying oracle request", "attempt", attempt, "backoff", wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			logger.Warn("oracle request failed", "attempt", attempt, "error", err)
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxDrainedBody))
			resp.Body.Close()
			lastErr = &transientError{status: resp.StatusCode, body: string(body)}
			logger.Warn("oracle returned transient status",
				"attempt", attempt, "status", resp.StatusCode)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("gave up after %d attempts: %w", maxAttempts, lastErr)
}
