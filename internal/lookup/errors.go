package lookup

import (
	"errors"
	"fmt"
)

// maxBodyInError bounds how much of a raw response body is echoed in errors.
const maxBodyInError = 512

// Sentinel errors for errors.Is checks across the lookup boundary.
var (
	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("lookup transport failure")

	// ErrDecode matches every *DecodeError.
	ErrDecode = errors.New("lookup response decode failure")

	// ErrMissingAPIKey is returned by NewClient when no API key is given.
	ErrMissingAPIKey = errors.New("lookup API key cannot be empty")
)

// TransportError reports a request that never produced a response
// (connection refused, DNS failure, timeout, unreadable body).
type TransportError struct {
	Phone string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("looking up %s: %v", e.Phone, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// DecodeError reports a response body that did not match the provider schema.
// Body holds the raw payload, truncated, for diagnosis.
type DecodeError struct {
	Phone      string
	HTTPStatus int
	Body       string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding response for %s (HTTP %d): %v; body: %s",
		e.Phone, e.HTTPStatus, e.Err, e.Body)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// truncateBody shortens body for inclusion in an error message.
func truncateBody(body []byte) string {
	if len(body) <= maxBodyInError {
		return string(body)
	}
	return string(body[:maxBodyInError]) + "...(truncated)"
}
