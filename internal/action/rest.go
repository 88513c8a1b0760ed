package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/dileep-u-k/function-gateway/internal/function"
)

const (
	defaultTimeout    = 30 * time.Second
	maxRetries        = 3
	initialRetryDelay = 2 * time.Second
	maxRetryDelay     = 30 * time.Second
)

// HTTPError is a non-2xx response from a rest action.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

type reply struct {
	status int
	body   []byte
}

// callREST performs the request with retries on transport errors and 5xx
// responses. 4xx responses fail immediately.
func (a *Action) callREST(ctx context.Context, args function.Arguments, verbose bool) (string, error) {
	appKey := a.appKeyValues()
	target := render(a.spec.URL, args, appKey, queryEscape)

	method := strings.ToUpper(a.spec.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body []byte
	if method == http.MethodPost || method == http.MethodPut {
		b, err := json.Marshal(args)
		if err != nil {
			return "", fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = b
	}

	if verbose {
		a.logger.Info("calling rest action",
			slog.String("function", a.name),
			slog.String("method", method),
			slog.String("url", target))
	}

	policy := retrypolicy.NewBuilder[*reply]().
		HandleIf(func(r *reply, err error) bool {
			if err != nil {
				return ctx.Err() == nil
			}
			return r.status >= 500
		}).
		WithBackoff(a.retryDelay, maxRetryDelay).
		WithMaxRetries(maxRetries - 1).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[*reply]) {
			a.logger.Warn("retrying rest action",
				slog.String("function", a.name),
				slog.Int("attempt", e.Attempts()),
				slog.Any("error", e.LastError()))
		}).
		Build()

	r, err := failsafe.With[*reply](policy).WithContext(ctx).Get(func() (*reply, error) {
		return a.do(ctx, method, target, body, appKey)
	})
	if err != nil {
		return "", fmt.Errorf("request to %s failed: %w", a.name, err)
	}
	if r.status < 200 || r.status >= 300 {
		return "", &HTTPError{StatusCode: r.status, Body: string(r.body)}
	}
	return string(r.body), nil
}

func (a *Action) do(ctx context.Context, method, target string, body []byte, appKey map[string]string) (*reply, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range a.spec.Headers {
		req.Header.Set(k, render(v, function.Arguments{}, appKey, nil))
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &reply{status: resp.StatusCode, body: bytes.TrimSpace(b)}, nil
}
