package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/phonecheck/internal/config"
	"github.com/rshade/phonecheck/internal/contact"
	"github.com/rshade/phonecheck/internal/engine/batch"
	"github.com/rshade/phonecheck/internal/lookup"
	"github.com/rshade/phonecheck/internal/shutdown"
)

// memorySink records every write.
type memorySink struct {
	mu     sync.Mutex
	writes [][]contact.Row
	err    error
}

func (s *memorySink) Write(rows []contact.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.writes = append(s.writes, append([]contact.Row(nil), rows...))
	return nil
}

func (s *memorySink) Writes() [][]contact.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// lookerFunc adapts a function to Looker.
type lookerFunc func(ctx context.Context, row contact.Row) (contact.Row, lookup.Outcome, error)

func (f lookerFunc) Lookup(ctx context.Context, row contact.Row) (contact.Row, lookup.Outcome, error) {
	return f(ctx, row)
}

// fastConfig paces windows 5ms apart.
func fastConfig(windowSize int) *config.Config {
	cfg := config.New()
	cfg.Lookup.WindowSize = windowSize
	cfg.Lookup.RateLimit = windowSize * 200
	return cfg
}

func makeRows(n int) []contact.Row {
	rows := make([]contact.Row, n)
	for i := range rows {
		rows[i] = contact.Row{InternalID: fmt.Sprintf("%d", i+1), Phone: fmt.Sprintf("555000%04d", i+1)}
	}
	return rows
}

// noSignals keeps tests from registering real signal handlers.
func noSignals(exit func(int)) []shutdown.Option {
	return []shutdown.Option{
		shutdown.WithNotify(func(chan<- os.Signal, ...os.Signal) {}, func(chan<- os.Signal) {}),
		shutdown.WithExit(exit),
	}
}

func TestRunOffline(t *testing.T) {
	rows := []contact.Row{
		{InternalID: "1", Phone: "(650) 253-0000"},
		{InternalID: "2", Phone: "12345"},
		{InternalID: "3", Phone: ""},
		{InternalID: "4", Phone: "garbage"},
	}
	sink := &memorySink{}

	summary, err := New(nil).RunOffline(context.Background(), rows, sink)
	require.NoError(t, err)

	require.Len(t, sink.Writes(), 1)
	assert.Equal(t, []contact.Row{
		{InternalID: "2", Phone: "12345", PhoneType: contact.PhoneTypeInvalid},
		{InternalID: "4", Phone: "garbage", PhoneType: contact.PhoneTypeInvalid},
	}, sink.Writes()[0])
	assert.Equal(t, ModeOffline, summary.Mode)
	assert.Equal(t, 4, summary.InputRows)
	assert.Equal(t, 2, summary.WrittenRows)
}

func TestRunOffline_SinkError(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	_, err := New(nil).RunOffline(context.Background(), makeRows(1), sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRun_NilSink(t *testing.T) {
	e := New(nil)
	_, err := e.RunOffline(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNilSink)
	_, err = e.RunOnline(context.Background(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrNilSink)
}

func TestRunOnline_AllRows(t *testing.T) {
	rows := makeRows(23)
	sink := &memorySink{}
	looker := lookerFunc(func(_ context.Context, row contact.Row) (contact.Row, lookup.Outcome, error) {
		return row.WithPhoneType("CELL PHONE"), lookup.Outcome{Kind: lookup.KindSuccess, LineType: "CELL PHONE"}, nil
	})

	e := New(fastConfig(5)).WithShutdownOptions(noSignals(func(int) { t.Error("unexpected exit") })...)
	summary, err := e.RunOnline(context.Background(), rows, looker, sink)
	require.NoError(t, err)

	require.Len(t, sink.Writes(), 1, "output is written exactly once")
	written := sink.Writes()[0]
	require.Len(t, written, len(rows))

	seen := make(map[string]bool)
	for _, row := range written {
		assert.Equal(t, "CELL PHONE", row.PhoneType)
		assert.False(t, seen[row.InternalID], "row %s written twice", row.InternalID)
		seen[row.InternalID] = true
	}
	assert.Equal(t, ModeOnline, summary.Mode)
	assert.Equal(t, len(rows), summary.WrittenRows)
	assert.Zero(t, summary.ProviderErrors)
}

func TestRunOnline_CountsProviderErrors(t *testing.T) {
	looker := lookerFunc(func(_ context.Context, row contact.Row) (contact.Row, lookup.Outcome, error) {
		if row.InternalID == "2" {
			return row.WithPhoneType(""), lookup.Outcome{Kind: lookup.KindProviderError, StatusCode: "500"}, nil
		}
		return row.WithPhoneType("LANDLINE"), lookup.Outcome{Kind: lookup.KindSuccess}, nil
	})
	sink := &memorySink{}

	e := New(fastConfig(10)).WithShutdownOptions(noSignals(func(int) {})...)
	summary, err := e.RunOnline(context.Background(), makeRows(3), looker, sink)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ProviderErrors)
	assert.Equal(t, 3, summary.WrittenRows)
}

func TestRunOnline_TransportFailureWritesPartialResults(t *testing.T) {
	rows := makeRows(20)
	looker := lookerFunc(func(_ context.Context, row contact.Row) (contact.Row, lookup.Outcome, error) {
		if row.InternalID == "8" {
			return row, lookup.Outcome{Kind: lookup.KindTransportFailure},
				&lookup.TransportError{Phone: row.Phone, Err: errors.New("connection refused")}
		}
		return row.WithPhoneType("VOIP"), lookup.Outcome{Kind: lookup.KindSuccess}, nil
	})
	sink := &memorySink{}

	e := New(fastConfig(5)).WithShutdownOptions(noSignals(func(int) {})...)
	summary, err := e.RunOnline(context.Background(), rows, looker, sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, lookup.ErrTransport)

	require.Len(t, sink.Writes(), 1, "completed rows are still written")
	written := sink.Writes()[0]
	// Window one completes fully, window two loses only the failing row.
	assert.Len(t, written, 9)
	for _, row := range written {
		assert.NotEqual(t, "8", row.InternalID)
	}
	require.NotNil(t, summary)
	assert.Equal(t, 9, summary.WrittenRows)
}

func TestRunOnline_FlushFailure(t *testing.T) {
	looker := lookerFunc(func(_ context.Context, row contact.Row) (contact.Row, lookup.Outcome, error) {
		return row, lookup.Outcome{}, nil
	})
	sink := &memorySink{err: errors.New("read-only file system")}

	e := New(fastConfig(5)).WithShutdownOptions(noSignals(func(int) {})...)
	_, err := e.RunOnline(context.Background(), makeRows(2), looker, sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only file system")
}

func TestRunOnline_InterruptFlushesAndExits(t *testing.T) {
	var (
		sigMu sync.Mutex
		sigCh chan<- os.Signal
	)
	exits := make(chan int, 1)
	opts := []shutdown.Option{
		shutdown.WithNotify(func(c chan<- os.Signal, _ ...os.Signal) {
			sigMu.Lock()
			sigCh = c
			sigMu.Unlock()
		}, func(chan<- os.Signal) {}),
		shutdown.WithExit(func(code int) { exits <- code }),
	}

	var interruptOnce sync.Once
	looker := lookerFunc(func(_ context.Context, row contact.Row) (contact.Row, lookup.Outcome, error) {
		if row.InternalID == "3" {
			interruptOnce.Do(func() {
				sigMu.Lock()
				sigCh <- os.Interrupt
				sigMu.Unlock()
			})
		}
		return row.WithPhoneType("CELL PHONE"), lookup.Outcome{Kind: lookup.KindSuccess}, nil
	})

	cfg := config.New()
	cfg.Lookup.WindowSize = 2
	cfg.Lookup.RateLimit = 4 // 500ms between windows, wide enough to observe the cancel
	sink := &memorySink{}

	summary, err := New(cfg).WithShutdownOptions(opts...).RunOnline(context.Background(), makeRows(10), looker, sink)
	require.NoError(t, err, "an interrupted run that was flushed is a clean stop")
	require.NotNil(t, summary)
	assert.True(t, summary.Interrupted)

	select {
	case code := <-exits:
		assert.Equal(t, shutdown.ExitFlushed, code)
	case <-time.After(2 * time.Second):
		t.Fatal("interrupt did not exit")
	}

	writes := sink.Writes()
	require.Len(t, writes, 1, "the flush runs once")
	assert.GreaterOrEqual(t, len(writes[0]), 2, "the first window is always kept")
	assert.LessOrEqual(t, len(writes[0]), 4, "no window starts after the interrupt")
	assert.Equal(t, len(writes[0]), summary.WrittenRows)
}

func TestRunOnline_ParentCancelIsNotAnInterrupt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var cancelOnce sync.Once
	looker := lookerFunc(func(_ context.Context, row contact.Row) (contact.Row, lookup.Outcome, error) {
		cancelOnce.Do(cancel)
		return row.WithPhoneType("LANDLINE"), lookup.Outcome{Kind: lookup.KindSuccess}, nil
	})
	sink := &memorySink{}

	e := New(fastConfig(2)).WithShutdownOptions(noSignals(func(int) { t.Error("exit must not be called") })...)
	summary, err := e.RunOnline(ctx, makeRows(6), looker, sink)
	require.ErrorIs(t, err, batch.ErrInterrupted)
	require.NotNil(t, summary)
	assert.False(t, summary.Interrupted)
	require.Len(t, sink.Writes(), 1)
	assert.Len(t, sink.Writes()[0], 2)
}

func TestRunOnline_WithLookupClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lineType := "LANDLINE"
		if r.URL.Query().Get("phone") == "5550000002" {
			lineType = "CELL PHONE"
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"StatusCode":"200","StatusMessage":"OK","PhoneBasic":{"LineType":%q}}`, lineType)
	}))
	defer server.Close()

	cfg := fastConfig(2)
	cfg.Lookup.Endpoint = server.URL
	cfg.Lookup.Timeout = 5 * time.Second

	dir := t.TempDir()
	out := filepath.Join(dir, "out.csv")
	var progress bytes.Buffer

	e := New(cfg).WithProgress(&progress).WithShutdownOptions(noSignals(func(int) {})...)
	client, err := e.NewLookupClient("secret")
	require.NoError(t, err)
	assert.Equal(t, server.URL, client.Endpoint)
	assert.Equal(t, 5*time.Second, client.HTTPClient.Timeout)

	rows := makeRows(3)
	rows[1].Phone = "5550000002x12"
	summary, err := e.RunOnline(context.Background(), rows, client, contact.NewFileSink(out))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.WrittenRows)

	got, err := contact.ReadFile(out)
	require.NoError(t, err)
	require.Len(t, got, 3)
	types := make(map[string]string)
	for _, row := range got {
		types[row.InternalID] = row.PhoneType
	}
	assert.Equal(t, map[string]string{"1": "LANDLINE", "2": "CELL PHONE", "3": "LANDLINE"}, types)

	assert.Contains(t, progress.String(), "3/3 rows")
}

func TestNewLookupClient_MissingKey(t *testing.T) {
	_, err := New(nil).NewLookupClient("")
	assert.ErrorIs(t, err, lookup.ErrMissingAPIKey)
}
