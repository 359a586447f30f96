package gateway

import (
	"errors"
	"fmt"
)

// ErrNoToken is returned by calls that need a bearer token when none is configured.
var ErrNoToken = errors.New("not logged in")

// NetworkError reports a failed round trip. A zero StatusCode means the
// request never produced a response; otherwise the server answered with a
// non-2xx status. Both are handled the same way by callers.
type NetworkError struct {
	Op         string
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s %s: %v", e.Op, e.Method, e.URL, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("%s: %s %s: unexpected status %d: %s", e.Op, e.Method, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: %s %s: unexpected status %d", e.Op, e.Method, e.URL, e.StatusCode)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err is or wraps a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.StatusCode
	}
	return 0
}
