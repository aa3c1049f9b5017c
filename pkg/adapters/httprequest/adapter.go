// Package httprequest provides the outbound HTTP adapter for automation
// action nodes. The request is performed in both live and test mode: the
// engine cannot know whether the remote system is idempotent, so test mode
// never downgrades it to a simulation. Callers of test mode are expected
// to point test automations at safe endpoints.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/autoflowhq/autoflow/pkg/protocol"
)

const defaultTimeoutSeconds = 30

var (
	ErrMissingURL     = errors.New("missing or invalid 'url' in configuration")
	ErrServerError    = errors.New("server error")
	ErrRequestFailed  = errors.New("http request failed")
	ErrNonSuccessCode = errors.New("non-2xx response")
)

// Adapter performs an HTTP request with optional headers, body, and retry
// on 5xx responses. Retries are internal to the adapter; the walker never
// re-invokes a failed node.
type Adapter struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
	Timeout time.Duration
	Retry   RetryConfig
}

// RetryConfig bounds the adapter-internal retry loop.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

// NewAdapter builds an Adapter from a node configuration.
func NewAdapter(config map[string]any) (*Adapter, error) {
	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, ErrMissingURL
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	body, _ := config["body"].(string)

	headers := make(map[string]string)

	if headersConfig, exists := config["headers"]; exists {
		if headersMap, ok := headersConfig.(map[string]any); ok {
			for k, v := range headersMap {
				if strVal, ok := v.(string); ok {
					headers[k] = strVal
				}
			}
		}
	}

	timeout := defaultTimeoutSeconds * time.Second
	if seconds, ok := config["timeout_seconds"].(float64); ok && seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}

	return &Adapter{
		Method:  strings.ToUpper(method),
		URL:     url,
		Headers: headers,
		Body:    body,
		Timeout: timeout,
		Retry:   parseRetryConfig(config["retry"]),
	}, nil
}

func parseRetryConfig(raw any) RetryConfig {
	retry := RetryConfig{Attempts: 1, Delay: 0}

	retryMap, ok := raw.(map[string]any)
	if !ok {
		return retry
	}

	if attempts, ok := retryMap["attempts"].(float64); ok && attempts >= 1 {
		retry.Attempts = int(attempts)
	}

	if delay, ok := retryMap["delay_seconds"].(float64); ok && delay >= 0 {
		retry.Delay = time.Duration(delay) * time.Second
	}

	return retry
}

// Execute performs the request and surfaces the remote status and timing.
// A non-2xx final response or transport failure reports a failure outcome
// together with whatever response detail was observed.
func (a *Adapter) Execute(ctx context.Context, req protocol.ExecutionRequest, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "http_request_adapter", "url", a.URL, "method", a.Method)
	logger.InfoContext(ctx, "Executing HTTP request", "mode", req.Mode)

	started := time.Now()

	var (
		lastErr error
		resp    *http.Response
	)

	for attempt := 1; attempt <= a.Retry.Attempts; attempt++ {
		if attempt > 1 {
			logger.InfoContext(ctx, "Retrying HTTP request", "attempt", attempt, "of", a.Retry.Attempts)

			select {
			case <-time.After(a.Retry.Delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, a.Method, a.URL, strings.NewReader(a.Body))
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}

		for k, v := range a.Headers {
			httpReq.Header.Set(k, v)
		}

		if a.Body != "" && httpReq.Header.Get("Content-Type") == "" {
			httpReq.Header.Set("Content-Type", "application/json")
		}

		client := &http.Client{Timeout: a.Timeout}

		resp, err = client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("%w: %w", ErrRequestFailed, err)

			continue
		}

		if resp.StatusCode >= http.StatusInternalServerError && attempt < a.Retry.Attempts {
			if err := resp.Body.Close(); err != nil {
				logger.ErrorContext(ctx, "failed to close response body", "error", err)
			}

			lastErr = fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)
			resp = nil

			continue
		}

		break
	}

	duration := time.Since(started)

	if resp == nil {
		if lastErr == nil {
			lastErr = ErrRequestFailed
		}

		return map[string]any{"duration_ms": duration.Milliseconds()}, lastErr
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	output := map[string]any{
		"status_code": resp.StatusCode,
		"duration_ms": duration.Milliseconds(),
		"body":        parseBody(rawBody),
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return output, fmt.Errorf("%w: status %d", ErrNonSuccessCode, resp.StatusCode)
	}

	logger.InfoContext(ctx, "HTTP request completed", "status_code", resp.StatusCode, "duration_ms", duration.Milliseconds())

	return output, nil
}

func parseBody(raw []byte) any {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err == nil {
			return parsed
		}
	}

	return trimmed
}
