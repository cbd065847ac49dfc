package httputil

import (
	"net/http"
	"time"
)

// DefaultTimeout bounds every external weather call; a timed-out call is
// treated the same as a non-success response by the callers.
const DefaultTimeout = 10 * time.Second

// NewClient returns an HTTP client with standard timeout configuration.
func NewClient() *http.Client {
	return &http.Client{
		Timeout: DefaultTimeout,
	}
}
