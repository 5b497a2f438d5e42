// Package lookup resolves phone line types through the remote PhoneValidator API.
package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rshade/phonecheck/internal/contact"
)

// Default client settings.
const (
	// DefaultEndpoint is the PhoneValidator phone search endpoint.
	DefaultEndpoint = "https://api.phonevalidator.com/api/v3/phonesearch"

	// DefaultTimeout bounds a single lookup request.
	DefaultTimeout = 30 * time.Second

	// ProviderSuccessCode is the provider status code for a completed search.
	ProviderSuccessCode = "200"

	// searchType selects the provider's basic record.
	searchType = "basic"
)

// Client performs one remote lookup per row. It is safe for concurrent use.
type Client struct {
	// Endpoint is the lookup URL; query parameters are appended per request.
	Endpoint string

	// HTTPClient issues requests. Its Timeout bounds every lookup.
	HTTPClient *http.Client

	// Logger receives provider anomalies. Defaults to a disabled logger.
	Logger zerolog.Logger

	apiKey string
}

// NewClient creates a client for apiKey using DefaultEndpoint and DefaultTimeout.
func NewClient(apiKey string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	return &Client{
		Endpoint:   DefaultEndpoint,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		Logger:     zerolog.Nop(),
		apiKey:     apiKey,
	}, nil
}

// response mirrors the provider payload. Only the fields used here are kept.
type response struct {
	StatusCode    statusCode   `json:"StatusCode"`
	StatusMessage string       `json:"StatusMessage"`
	PhoneNumber   string       `json:"PhoneNumber"`
	PhoneBasic    *basicRecord `json:"PhoneBasic"`
}

type basicRecord struct {
	LineType      string `json:"LineType"`
	PhoneCompany  string `json:"PhoneCompany"`
	PhoneLocation string `json:"PhoneLocation"`
	FakeNumber    string `json:"FakeNumber"`
	ErrorCode     string `json:"ErrorCode"`
}

// statusCode accepts the provider's status as either a JSON string or number.
type statusCode string

func (s *statusCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = statusCode(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("status code must be a string or number: %w", err)
	}
	*s = statusCode(num.String())
	return nil
}

// RequestURL builds the lookup URL for phone. The extension suffix is
// stripped and the number is URL-encoded.
func (c *Client) RequestURL(phone string) (string, error) {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing lookup endpoint %q: %w", c.Endpoint, err)
	}

	q := u.Query()
	q.Set("apikey", c.apiKey)
	q.Set("phone", contact.StripExtension(phone))
	q.Set("type", searchType)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Lookup resolves the line type for row.
//
// On success the returned row is a copy with PhoneType set to the provider's
// line type (empty when the basic record is absent). A transport failure
// returns the row unmodified with a *TransportError. A body that does not
// decode returns a *DecodeError carrying the raw payload. A non-2xx HTTP
// status or a non-success provider code is reported on the Outcome and
// logged, but does not fail the call.
func (c *Client) Lookup(ctx context.Context, row contact.Row) (contact.Row, Outcome, error) {
	phone := row.DialableNumber()
	transportFailure := Outcome{Kind: KindTransportFailure}

	reqURL, err := c.RequestURL(row.Phone)
	if err != nil {
		return row, transportFailure, &TransportError{Phone: phone, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return row, transportFailure, &TransportError{Phone: phone, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return row, transportFailure, &TransportError{Phone: phone, Err: redactKey(err, c.apiKey)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		transportFailure.HTTPStatus = resp.StatusCode
		return row, transportFailure, &TransportError{Phone: phone, Err: fmt.Errorf("reading body: %w", err)}
	}

	outcome := Outcome{HTTPStatus: resp.StatusCode}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		outcome.Warning = fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode)
		c.Logger.Warn().
			Str("internal_id", row.InternalID).
			Int("http_status", resp.StatusCode).
			Msg("lookup returned non-success HTTP status")
	}

	var payload response
	if decodeErr := json.Unmarshal(body, &payload); decodeErr != nil {
		return row, outcome, &DecodeError{
			Phone:      phone,
			HTTPStatus: resp.StatusCode,
			Body:       truncateBody(body),
			Err:        decodeErr,
		}
	}

	outcome.StatusCode = string(payload.StatusCode)
	outcome.StatusMessage = payload.StatusMessage
	if payload.PhoneBasic != nil {
		outcome.LineType = payload.PhoneBasic.LineType
	}

	outcome.Kind = KindSuccess
	if outcome.StatusCode != ProviderSuccessCode {
		outcome.Kind = KindProviderError
		c.Logger.Warn().
			Str("internal_id", row.InternalID).
			Str("status_code", outcome.StatusCode).
			Str("status_message", outcome.StatusMessage).
			Msg("provider reported non-success status")
	}

	if payload.PhoneBasic == nil {
		c.Logger.Debug().
			Str("internal_id", row.InternalID).
			Msg("provider response has no basic record")
	}

	return row.WithPhoneType(outcome.LineType), outcome, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

// redactKey removes the API key from errors that echo the request URL.
func redactKey(err error, apiKey string) error {
	msg := err.Error()
	redacted := strings.ReplaceAll(msg, url.QueryEscape(apiKey), "REDACTED")
	redacted = strings.ReplaceAll(redacted, apiKey, "REDACTED")
	if redacted == msg {
		return err
	}
	return &redactedError{msg: redacted, err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }
