package payments

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds every outbound provider call.
const DefaultTimeout = 10 * time.Second

const maxResponseBytes = 1 << 20

// NewHTTPClient returns the client shared by the adapters.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// send executes req and returns the status code and body. Transport failures are reported as
// ErrProviderUnavailable; interpreting the status is left to the caller.
func send(ctx context.Context, client *http.Client, p Provider, req *OutboundRequest) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return 0, nil, fmt.Errorf("%s build request: %w", p, err)
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, nil, unavailable(p, "request "+req.URL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, unavailable(p, "read response", err)
	}
	return resp.StatusCode, raw, nil
}

func is2xx(status int) bool { return status >= 200 && status < 300 }

func jsonHeader() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	return h
}
