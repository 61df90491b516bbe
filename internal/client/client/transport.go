package client

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/vaultcli/internal/common"
	"github.com/dmitrijs2005/vaultcli/internal/logging"
	"github.com/google/uuid"
)

// loggingTransport tags each request with a request id and logs one line per
// round trip. Only the method and the URL path are logged: bodies and query
// strings can carry secrets.
type loggingTransport struct {
	next http.RoundTripper
	log  logging.Logger
}

func newLoggingTransport(next http.RoundTripper, log logging.Logger) *loggingTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &loggingTransport{next: next, log: log}
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqID := uuid.NewString()
	req = req.Clone(req.Context())
	req.Header.Set(common.RequestIDHeaderName, reqID)

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	dur := time.Since(start)

	if err != nil {
		t.log.Warn(req.Context(), "request failed",
			"req_id", reqID, "method", req.Method, "path", req.URL.Path,
			"duration_ms", dur.Milliseconds(), "error", err)
		return nil, err
	}

	t.log.Debug(req.Context(), "request",
		"req_id", reqID, "method", req.Method, "path", req.URL.Path,
		"status", resp.StatusCode, "duration_ms", dur.Milliseconds())
	return resp, nil
}
