package lookup

import "fmt"

// Kind classifies the result of one remote lookup.
type Kind int

const (
	// KindSuccess means the provider answered with its success code.
	KindSuccess Kind = iota

	// KindTransportFailure means no usable response was received.
	KindTransportFailure

	// KindProviderError means the provider answered with a non-success
	// status. The row is still annotated with whatever line type came back.
	KindProviderError
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindTransportFailure:
		return "transport_failure"
	case KindProviderError:
		return "provider_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome describes one lookup. It is created per call and consumed
// immediately by the caller.
type Outcome struct {
	Kind Kind

	// LineType is the provider's line classification, possibly empty.
	LineType string

	// HTTPStatus is the HTTP status code, zero on transport failure.
	HTTPStatus int

	// StatusCode and StatusMessage echo the provider's own status fields.
	StatusCode    string
	StatusMessage string

	// Warning is set when the HTTP status was not 2xx but the body was
	// still parsed.
	Warning string
}

// OK reports whether the provider returned its success code.
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess
}
