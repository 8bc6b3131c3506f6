package auth

import (
	"fmt"
	"strings"
)

// ValidationError reports missing or contradictory input. It is raised
// before any network call or subprocess.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IssuerError reports a failure to obtain an ID token from the issuer.
type IssuerError struct {
	Audience string
	Err      error
}

func (e *IssuerError) Error() string {
	return fmt.Sprintf("failed to request ID token for audience %q: %v", e.Audience, e.Err)
}

func (e *IssuerError) Unwrap() error { return e.Err }

// ExchangeError carries a non-success token endpoint response. Body is the
// provider's payload as received.
type ExchangeError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ExchangeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("UAA token request to %s failed: %v", e.Endpoint, e.Err)
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		body = "empty response body"
	}
	return fmt.Sprintf("UAA token request failed (%d): %s", e.StatusCode, body)
}

func (e *ExchangeError) Unwrap() error { return e.Err }
