package accurate

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrHostNotResolved means a resource call was attempted before the
// credential's host was resolved. Caller contract violation, never retried.
var ErrHostNotResolved = errors.New("accurate: host not resolved for credential")

// Account-service failures. Callers surface these as "reconnect your
// account"; they are not retried beyond the single refresh cycle.
var (
	ErrHostResolution = errors.New("accurate: host resolution failed")
	ErrTokenRefresh   = errors.New("accurate: access token refresh failed")
	ErrSessionRefresh = errors.New("accurate: session refresh failed")
)

// HTTPError is a non-2xx response from the per-database API.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("accurate: http %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// LogicError is an HTTP 200 whose payload signals failure. These are
// validation or business errors and never retried.
type LogicError struct {
	Message string
}

func (e *LogicError) Error() string {
	return "accurate: " + e.Message
}

// IsAuthFailure reports whether err is the specific trigger for the
// refresh-and-retry-once policy: HTTP 401 or an invalid_token marker in
// the response body.
func IsAuthFailure(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Status == http.StatusUnauthorized {
			return true
		}
		return strings.Contains(httpErr.Body, "invalid_token")
	}
	return false
}
