package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	maxResponseSize = 8 << 20
	maxErrorBody    = 512

	headerRequestID = "X-Request-ID"
)

// wireAPI keeps numbers as json.Number so numeric ids survive decoding intact.
var wireAPI = sonic.Config{UseNumber: true}.Froze()

// client wraps http.Client with helpers for JSON requests.
type client struct {
	baseURL string
	bearer  string
	http    *http.Client
	log     *log.Logger
}

// send issues one request and returns the raw body of a 2xx response. Any
// other outcome is a *NetworkError.
func (c *client) send(ctx context.Context, op, method, route, path string, body any) (payload []byte, err error) {
	metrics, ctx := newRequestMetrics(ctx, c.log, op, method, route)
	status := 0
	defer func() {
		metrics.Log(status, err)
	}()

	target := c.baseURL + path
	var reader io.Reader
	if body != nil {
		data, encErr := wireAPI.Marshal(body)
		if encErr != nil {
			return nil, fmt.Errorf("%s: encode body: %w", op, encErr)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	requestID := uuid.NewString()
	metrics.SetRequestID(requestID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	c.log.WithFields(log.Fields{"op": op, "method": method, "url": target, "request_id": requestID}).Debug("gateway request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	payload, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &NetworkError{Op: op, Method: method, URL: target, StatusCode: status, Err: err}
	}
	metrics.SetResponseBytes(len(payload))
	if status < 200 || status > 299 {
		return nil, &NetworkError{Op: op, Method: method, URL: target, StatusCode: status, Body: errorSnippet(payload)}
	}
	return payload, nil
}

func errorSnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "…"
	}
	return s
}
