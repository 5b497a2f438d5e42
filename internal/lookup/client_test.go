package lookup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/phonecheck/internal/contact"
)

// newTestClient points a client at server.
func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient("test-key")
	require.NoError(t, err)
	c.Endpoint = server.URL + "/api/v3/phonesearch"
	c.HTTPClient = server.Client()
	return c
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient("  ")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestRequestURL(t *testing.T) {
	c, err := NewClient("k&y")
	require.NoError(t, err)
	c.Endpoint = "https://example.test/lookup"

	raw, err := c.RequestURL("+1 555-123-4567x89")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "example.test", u.Host)
	assert.Equal(t, "k&y", u.Query().Get("apikey"))
	assert.Equal(t, "+1 555-123-4567", u.Query().Get("phone"))
	assert.Equal(t, "basic", u.Query().Get("type"))
	assert.Contains(t, raw, "phone=%2B1+555-123-4567")
}

func TestLookup_Success(t *testing.T) {
	var gotPhone, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/phonesearch", r.URL.Path)
		gotPhone = r.URL.Query().Get("phone")
		gotKey = r.URL.Query().Get("apikey")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"StatusCode":"200","StatusMessage":"OK",` +
			`"PhoneBasic":{"LineType":"CELL PHONE","PhoneCompany":"ACME"}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	in := contact.Row{InternalID: "1", Phone: "5551234567x89"}

	out, outcome, err := c.Lookup(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "5551234567", gotPhone)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, KindSuccess, outcome.Kind)
	assert.True(t, outcome.OK())
	assert.Equal(t, "CELL PHONE", outcome.LineType)
	assert.Equal(t, http.StatusOK, outcome.HTTPStatus)
	assert.Empty(t, outcome.Warning)
	assert.Equal(t, contact.Row{InternalID: "1", Phone: "5551234567x89", PhoneType: "CELL PHONE"}, out)
	assert.Empty(t, in.PhoneType, "input row must not change")
}

func TestLookup_ProviderAnomalies(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantKind     Kind
		wantLineType string
		wantWarning  bool
	}{
		{
			name:     "missing basic record",
			status:   http.StatusOK,
			body:     `{"StatusCode":"200","StatusMessage":"OK"}`,
			wantKind: KindSuccess,
		},
		{
			name:         "provider error keeps line type",
			status:       http.StatusOK,
			body:         `{"StatusCode":"404","StatusMessage":"partial","PhoneBasic":{"LineType":"LANDLINE"}}`,
			wantKind:     KindProviderError,
			wantLineType: "LANDLINE",
		},
		{
			name:         "numeric status code",
			status:       http.StatusOK,
			body:         `{"StatusCode":200,"PhoneBasic":{"LineType":"VOIP"}}`,
			wantKind:     KindSuccess,
			wantLineType: "VOIP",
		},
		{
			name:        "non-2xx HTTP status still parsed",
			status:      http.StatusTooManyRequests,
			body:        `{"StatusCode":"429","StatusMessage":"slow down"}`,
			wantKind:    KindProviderError,
			wantWarning: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			out, outcome, err := newTestClient(t, server).Lookup(context.Background(), contact.Row{InternalID: "9", Phone: "555"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, outcome.Kind)
			assert.Equal(t, tt.wantLineType, outcome.LineType)
			assert.Equal(t, tt.wantLineType, out.PhoneType)
			assert.Equal(t, tt.status, outcome.HTTPStatus)
			assert.Equal(t, tt.wantWarning, outcome.Warning != "")
		})
	}
}

func TestLookup_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway error</html>`))
	}))
	defer server.Close()

	in := contact.Row{InternalID: "1", Phone: "5551234567"}
	out, _, err := newTestClient(t, server).Lookup(context.Background(), in)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrDecode)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "<html>gateway error</html>", decodeErr.Body)
	assert.Contains(t, err.Error(), "gateway error")
	assert.Equal(t, in, out)
}

func TestLookup_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	c := newTestClient(t, server)
	server.Close()

	in := contact.Row{InternalID: "1", Phone: "5551234567"}
	out, outcome, err := c.Lookup(context.Background(), in)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrTransport)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "5551234567", transportErr.Phone)
	assert.Equal(t, KindTransportFailure, outcome.Kind)
	assert.Equal(t, in, out)
	assert.NotContains(t, err.Error(), "test-key", "API key must be redacted")
}

func TestLookup_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	c := newTestClient(t, server)
	c.HTTPClient.Timeout = 50 * time.Millisecond

	_, outcome, err := c.Lookup(context.Background(), contact.Row{Phone: "555"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, KindTransportFailure, outcome.Kind)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "success", KindSuccess.String())
	assert.Equal(t, "transport_failure", KindTransportFailure.String())
	assert.Equal(t, "provider_error", KindProviderError.String())
	assert.Equal(t, "kind(7)", Kind(7).String())
}

func TestTruncateBody(t *testing.T) {
	long := strings.Repeat("a", maxBodyInError+10)
	got := truncateBody([]byte(long))
	assert.True(t, strings.HasSuffix(got, "...(truncated)"))
	assert.Len(t, got, maxBodyInError+len("...(truncated)"))
}

func TestRedactKey(t *testing.T) {
	base := errors.New(`Get "https://x.test/?apikey=s3cret&phone=1": refused`)
	err := redactKey(base, "s3cret")
	assert.NotContains(t, err.Error(), "s3cret")
	assert.ErrorIs(t, err, base)

	plain := errors.New("refused")
	assert.Same(t, plain, redactKey(plain, "s3cret"))
}
