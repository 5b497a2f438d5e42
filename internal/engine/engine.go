// Package engine runs a phonecheck validation end to end: it validates the
// input rows offline or through the lookup provider and writes the result to a
// sink.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rshade/phonecheck/internal/config"
	"github.com/rshade/phonecheck/internal/contact"
	"github.com/rshade/phonecheck/internal/engine/batch"
	"github.com/rshade/phonecheck/internal/engine/cache"
	"github.com/rshade/phonecheck/internal/logging"
	"github.com/rshade/phonecheck/internal/lookup"
	"github.com/rshade/phonecheck/internal/offline"
	"github.com/rshade/phonecheck/internal/shutdown"
)

// Mode selects how rows are validated.
type Mode string

// Validation modes.
const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Run argument errors.
var (
	ErrNilSink   = errors.New("output sink is required")
	ErrNilLooker = errors.New("looker is required for an online run")
)

// Sink receives the rows to write. Write replaces any previous output.
type Sink interface {
	Write(rows []contact.Row) error
}

// Looker resolves the line type of one row.
type Looker interface {
	Lookup(ctx context.Context, row contact.Row) (contact.Row, lookup.Outcome, error)
}

// Summary describes a finished run.
type Summary struct {
	Mode Mode

	// InputRows is the number of rows read from the input.
	InputRows int

	// WrittenRows is the number of rows written to the sink.
	WrittenRows int

	// ProviderErrors counts lookups the provider answered with a non-success status.
	ProviderErrors int

	// CacheHits counts rows resolved from the lookup cache.
	CacheHits int

	// Interrupted is set when a signal stopped the run and the rows completed
	// before it were written.
	Interrupted bool

	Elapsed time.Duration
}

// Engine runs validations with the settings from a Config.
type Engine struct {
	cfg          *config.Config
	logger       zerolog.Logger
	progress     io.Writer
	shutdownOpts []shutdown.Option
	now          func() time.Time
}

// New creates an Engine. A nil cfg means defaults.
func New(cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.New()
	}
	return &Engine{
		cfg:    cfg,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
}

// WithLogger sets the engine's logger.
func (e *Engine) WithLogger(logger zerolog.Logger) *Engine {
	e.logger = logger
	return e
}

// WithProgress sets where the online progress line is written. A nil writer
// disables progress output.
func (e *Engine) WithProgress(w io.Writer) *Engine {
	e.progress = w
	return e
}

// WithShutdownOptions customises the interrupt handler installed by RunOnline.
func (e *Engine) WithShutdownOptions(opts ...shutdown.Option) *Engine {
	e.shutdownOpts = opts
	return e
}

// NewLookupClient builds a provider client from the lookup settings.
func (e *Engine) NewLookupClient(apiKey string) (*lookup.Client, error) {
	client, err := lookup.NewClient(apiKey)
	if err != nil {
		return nil, err
	}
	client.Endpoint = e.cfg.Lookup.Endpoint
	client.HTTPClient.Timeout = e.cfg.Lookup.Timeout
	client.Logger = logging.ComponentLogger(e.logger, "lookup")
	return client, nil
}

// RunOffline writes every row whose phone number is present but not valid
// for the configured region, annotated with the "Invalid" phone type.
func (e *Engine) RunOffline(ctx context.Context, rows []contact.Row, sink Sink) (*Summary, error) {
	if sink == nil {
		return nil, ErrNilSink
	}

	start := e.now()
	log := logging.ComponentLogger(e.logger, "engine")
	validator := offline.NewValidator(e.cfg.Offline.Region)
	log.Info().
		Str("mode", string(ModeOffline)).
		Int("rows", len(rows)).
		Str("region", validator.Region()).
		Msg("starting validation")

	invalid := validator.InvalidRows(rows)
	if err := sink.Write(invalid); err != nil {
		return nil, fmt.Errorf("writing output: %w", err)
	}

	summary := &Summary{
		Mode:        ModeOffline,
		InputRows:   len(rows),
		WrittenRows: len(invalid),
		Elapsed:     e.now().Sub(start),
	}
	log.Info().
		Int("invalid", summary.WrittenRows).
		Dur("elapsed", summary.Elapsed).
		Msg("validation finished")
	return summary, nil
}

// RunOnline looks up every row through looker, window by window, and writes
// the rows that completed. The interrupt handler is installed before the first
// window; on interrupt the rows completed so far are written and the process
// exits with status 0. If RunOnline returns first, an interrupted run is
// reported through Summary.Interrupted with a nil error. When a lookup fails
// the run stops, the completed rows are still written, and the lookup error is
// returned.
func (e *Engine) RunOnline(ctx context.Context, rows []contact.Row, looker Looker, sink Sink) (*Summary, error) {
	if sink == nil {
		return nil, ErrNilSink
	}
	if looker == nil {
		return nil, ErrNilLooker
	}

	limiter, err := batch.NewLimiter(e.cfg.Lookup.RateLimit, e.cfg.Lookup.WindowSize)
	if err != nil {
		return nil, err
	}
	dispatcher, err := batch.NewDispatcher[contact.Row](e.cfg.Lookup.WindowSize, limiter)
	if err != nil {
		return nil, err
	}

	start := e.now()
	log := logging.ComponentLogger(e.logger, "engine")
	results := batch.NewResultSet[contact.Row](len(rows))

	var cached *cachedLooker
	if e.cfg.Lookup.Cache.Enabled {
		store, storeErr := cache.NewStore(e.cfg.Lookup.Cache.Dir, e.cfg.Lookup.Cache.TTL)
		if storeErr != nil {
			return nil, storeErr
		}
		cached = newCachedLooker(looker, store, logging.ComponentLogger(log, "cache"))
		looker = cached
	}

	coordinator := shutdown.New(func() error {
		return sink.Write(results.Snapshot())
	}, append([]shutdown.Option{shutdown.WithLogger(logging.ComponentLogger(log, "shutdown"))}, e.shutdownOpts...)...)

	runCtx, err := coordinator.Install(ctx)
	if err != nil {
		return nil, err
	}
	defer coordinator.Stop()

	dispatcher.WithSummary(contact.Row.Summary).WithLogger(logging.ComponentLogger(log, "dispatcher"))
	if e.progress != nil {
		dispatcher.WithReporter(batch.NewLineReporter(e.progress))
	}

	log.Info().
		Str("mode", string(ModeOnline)).
		Int("rows", len(rows)).
		Int("rate_limit", limiter.Rate()).
		Int("window_size", dispatcher.GetWindowSize()).
		Dur("interval", limiter.Interval()).
		Msg("starting validation")

	var providerErrors atomic.Int64
	task := func(ctx context.Context, row contact.Row) (contact.Row, error) {
		resolved, outcome, lookupErr := looker.Lookup(ctx, row)
		if lookupErr != nil {
			return row, lookupErr
		}
		if !outcome.OK() {
			providerErrors.Add(1)
		}
		return resolved, nil
	}

	dispatchErr := dispatcher.Dispatch(runCtx, rows, results, task)
	interrupted := errors.Is(dispatchErr, batch.ErrInterrupted) && coordinator.Interrupted()
	switch {
	case interrupted:
		log.Warn().Int("completed", results.Len()).Msg("dispatch stopped by interrupt")
		dispatchErr = nil
	case dispatchErr != nil:
		log.Error().Err(dispatchErr).Int("completed", results.Len()).Msg("dispatch stopped early")
	}

	if err = coordinator.Flush(); err != nil {
		return nil, errors.Join(dispatchErr, fmt.Errorf("writing output: %w", err))
	}

	summary := &Summary{
		Mode:           ModeOnline,
		InputRows:      len(rows),
		WrittenRows:    results.Len(),
		ProviderErrors: int(providerErrors.Load()),
		Interrupted:    interrupted,
		Elapsed:        e.now().Sub(start),
	}
	if cached != nil {
		summary.CacheHits = cached.Hits()
	}
	if dispatchErr != nil {
		return summary, dispatchErr
	}

	log.Info().
		Int("written", summary.WrittenRows).
		Int("provider_errors", summary.ProviderErrors).
		Int("cache_hits", summary.CacheHits).
		Bool("interrupted", summary.Interrupted).
		Dur("elapsed", summary.Elapsed).
		Msg("validation finished")
	return summary, nil
}
