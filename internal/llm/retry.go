package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

type httpReply struct {
	status int
	body   []byte
}

// postWithRetry sends the request built by newRequest, retrying transport
// errors and 5xx responses with exponential backoff. Client errors fail fast.
func postWithRetry(
	ctx context.Context,
	client *http.Client,
	logger *slog.Logger,
	provider string,
	retryDelay time.Duration,
	newRequest func() (*http.Request, error),
) ([]byte, error) {
	policy := retrypolicy.NewBuilder[*httpReply]().
		HandleIf(func(r *httpReply, err error) bool {
			if err != nil {
				return ctx.Err() == nil
			}
			return r.status >= 500
		}).
		WithBackoff(retryDelay, maxRetryDelay).
		WithMaxRetries(maxRetries - 1).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[*httpReply]) {
			attrs := []any{slog.String("provider", provider), slog.Int("attempt", e.Attempts())}
			if err := e.LastError(); err != nil {
				attrs = append(attrs, slog.Any("error", err))
			} else if r := e.LastResult(); r != nil {
				attrs = append(attrs, slog.Int("status", r.status))
			}
			logger.Warn("retrying llm request", attrs...)
		}).
		Build()

	r, err := failsafe.With[*httpReply](policy).WithContext(ctx).Get(func() (*httpReply, error) {
		req, err := newRequest()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		return &httpReply{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", provider, err)
	}
	if r.status < 200 || r.status >= 300 {
		return nil, fmt.Errorf("%s API error: status %d, body: %s", provider, r.status, string(r.body))
	}
	return r.body, nil
}
