// Package transport implements the HTTP worker the SDK uses to download spec
// payloads and deliver event batches.
//
// All requests are JSON POSTs carrying SDK metadata headers, instrumented
// with [otelhttp] so spans appear when the host application enables tracing.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultAPIURL is the production API endpoint.
const DefaultAPIURL = "https://api.gatewise.dev/v1"

const (
	sdkType    = "go-server"
	sdkVersion = "1.0.0"

	endpointDownloadConfigSpecs = "/download_config_specs"
	endpointLogEvent            = "/log_event"
)

// StatusError is returned for non-2xx API responses.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: %s returned status %d", e.Endpoint, e.Code)
}

// retryable reports whether a response status is worth retrying. Client
// errors are not: the request will not get better.
func (e *StatusError) retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Client is the SDK's HTTP worker. Safe for concurrent use.
type Client struct {
	sdkKey    string
	apiURL    string
	sessionID string
	http      *http.Client
	log       *slog.Logger
}

// New creates a transport client for the given API base URL. A zero timeout
// defaults to 10 seconds.
func New(sdkKey, apiURL string, timeout time.Duration, log *slog.Logger) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		sdkKey:    sdkKey,
		apiURL:    strings.TrimSuffix(apiURL, "/"),
		sessionID: uuid.NewString(),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
}

// DownloadConfigSpecs fetches the spec payload, requesting only changes since
// the given server timestamp (0 for a full download). Returns the raw body;
// decoding and validation happen in the updater.
func (c *Client) DownloadConfigSpecs(ctx context.Context, sinceTime int64) ([]byte, error) {
	return c.postJSON(ctx, endpointDownloadConfigSpecs, map[string]any{
		"sinceTime": sinceTime,
	}, 0)
}

// LogEvents delivers an event batch, retrying transient failures.
func (c *Client) LogEvents(ctx context.Context, payload any) error {
	_, err := c.postJSON(ctx, endpointLogEvent, payload, 3)
	return err
}

// postJSON sends one JSON POST with up to retries additional attempts on
// transient failures, backing off exponentially from one second.
func (c *Client) postJSON(ctx context.Context, endpoint string, body any, retries int) ([]byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", endpoint, err)
	}

	backoff := time.Second
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			c.log.Debug("retrying request", "endpoint", endpoint, "attempt", attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		respBody, err := c.doOnce(ctx, endpoint, encoded)
		if err == nil {
			return respBody, nil
		}
		lastErr = err

		if statusErr, ok := err.(*StatusError); ok && !statusErr.retryable() {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("GATEWISE-API-KEY", c.sdkKey)
	req.Header.Set("GATEWISE-SDK-TYPE", sdkType)
	req.Header.Set("GATEWISE-SDK-VERSION", sdkVersion)
	req.Header.Set("GATEWISE-SESSION-ID", c.sessionID)
	req.Header.Set("GATEWISE-CLIENT-TIME", strconv.FormatInt(time.Now().UnixMilli(), 10))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
	}
	return respBody, nil
}
