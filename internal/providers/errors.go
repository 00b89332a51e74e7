// Package providers holds the outbound integrations used by the pipeline.
package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// StatusError is a non-2xx answer from a provider API.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s status %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.Code, body)
}

// Temporary reports whether repeating the call may succeed: server errors,
// timeouts and rate limiting.
func (e *StatusError) Temporary() bool {
	return TemporaryStatus(e.Code)
}

// TemporaryStatus classifies an HTTP status code.
func TemporaryStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}

// FromGoogleAPI converts a googleapi error into a StatusError so every
// provider is classified the same way.
func FromGoogleAPI(provider string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &StatusError{Provider: provider, Code: gerr.Code, Body: gerr.Message}
	}
	return err
}
