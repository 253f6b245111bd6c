// Package platform holds the HTTP plumbing shared by the push gateway clients.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

// DefaultTimeout bounds every outbound gateway call.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of a gateway response is retained.
const maxResponseBytes = 1 << 20

// NewHTTPClient returns a client with a bounded timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// PostJSON marshals body, POSTs it and returns the raw response. Transport
// failures (DNS, refused connections, timeouts) come back as plain errors;
// callers decide how to classify non-2xx responses.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body any) (*dispatch.Response, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	resp := &dispatch.Response{StatusCode: res.StatusCode}
	if json.Valid(raw) {
		resp.Body = raw
	} else if len(raw) > 0 {
		quoted, _ := json.Marshal(string(raw))
		resp.Body = quoted
	}
	return resp, nil
}

// KindForStatus maps an HTTP status without a more specific provider error
// onto a delivery error kind.
func KindForStatus(status int) dispatch.ErrorKind {
	switch {
	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return dispatch.ErrorTransient
	default:
		return dispatch.ErrorUnknown
	}
}

// IsSuccess reports a 2xx status.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
