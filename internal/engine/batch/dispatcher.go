package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Window configuration.
const (
	// DefaultWindowSize is the number of items dispatched concurrently per window.
	DefaultWindowSize = 10

	// MinWindowSize is the minimum allowed window size.
	MinWindowSize = 1

	// MaxWindowSize is the maximum allowed window size.
	MaxWindowSize = 100
)

// Common dispatch errors.
var (
	ErrInvalidWindowSize = errors.New("window size must be between 1 and 100")
	ErrNilTask           = errors.New("batch task cannot be nil")
	ErrNilResultSet      = errors.New("result set cannot be nil")

	// ErrInterrupted is returned when the context ends before the run completes.
	ErrInterrupted = errors.New("dispatch interrupted")
)

// Task processes one item and returns its updated copy.
// A returned error aborts the run once the current window has been joined.
type Task[T any] func(ctx context.Context, item T) (T, error)

// Reporter receives progress at window boundaries.
type Reporter interface {
	// Report is called before each window starts.
	Report(snapshot ProgressSnapshot)

	// Finish is called once when the run ends, successfully or not.
	Finish(snapshot ProgressSnapshot)
}

// Dispatcher runs a Task over items in paced, fixed-size concurrent windows.
type Dispatcher[T any] struct {
	// windowSize is the number of items per window.
	windowSize int

	// limiter paces window starts. Nil disables pacing.
	limiter *Limiter

	// reporter is an optional progress sink.
	reporter Reporter

	// summarize renders an item for progress output.
	summarize func(T) string

	logger zerolog.Logger
	now    func() time.Time
}

// NewDispatcher creates a dispatcher with the given window size and limiter.
func NewDispatcher[T any](windowSize int, limiter *Limiter) (*Dispatcher[T], error) {
	if windowSize < MinWindowSize || windowSize > MaxWindowSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindowSize, windowSize)
	}

	return &Dispatcher[T]{
		windowSize: windowSize,
		limiter:    limiter,
		summarize:  func(item T) string { return fmt.Sprint(item) },
		logger:     zerolog.Nop(),
		now:        time.Now,
	}, nil
}

// WithReporter sets a progress reporter for the dispatcher.
func (d *Dispatcher[T]) WithReporter(reporter Reporter) *Dispatcher[T] {
	d.reporter = reporter
	return d
}

// WithSummary sets how the last completed item is rendered in progress output.
func (d *Dispatcher[T]) WithSummary(summarize func(T) string) *Dispatcher[T] {
	if summarize != nil {
		d.summarize = summarize
	}
	return d
}

// WithLogger sets the logger used for per-window diagnostics.
func (d *Dispatcher[T]) WithLogger(logger zerolog.Logger) *Dispatcher[T] {
	d.logger = logger
	return d
}

// GetWindowSize returns the configured window size.
func (d *Dispatcher[T]) GetWindowSize() int {
	return d.windowSize
}

// Dispatch runs task over every item and appends each result to results.
//
// Windows are processed strictly in order. Within a window every item gets
// its own goroutine and the window is joined before anything else happens.
// If any task fails, the results of its successful siblings are still
// appended, the first error is returned and no further window starts.
// Cancelling ctx stops the run before the next window (or during the pacing
// wait) with ErrInterrupted; tasks already started run to completion with a
// context that is not cancelled.
func (d *Dispatcher[T]) Dispatch(ctx context.Context, items []T, results *ResultSet[T], task Task[T]) error {
	if task == nil {
		return ErrNilTask
	}
	if results == nil {
		return ErrNilResultSet
	}

	windows := d.CalculateWindows(len(items))
	progress := newProgressAt(len(items), len(windows), d.windowSize, d.now)
	defer d.finish(progress, results)

	taskCtx := context.WithoutCancel(ctx)

	for windowIndex, bounds := range windows {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w before window %d: %w", ErrInterrupted, windowIndex, err)
		}

		d.report(progress, results)

		windowStart := d.now()
		err := d.runWindow(taskCtx, items[bounds[0]:bounds[1]], results, task)
		d.refresh(progress, results)
		progress.CompleteWindow()

		d.logger.Debug().
			Int("window", windowIndex).
			Int("start", bounds[0]).
			Int("end", bounds[1]).
			Dur("took", d.now().Sub(windowStart)).
			Float64("percent", progress.PercentComplete()).
			Dur("eta", progress.EstimatedTimeRemaining()).
			Msg("window joined")

		if err != nil {
			return fmt.Errorf("window %d failed: %w", windowIndex, err)
		}

		if windowIndex == len(windows)-1 {
			break
		}

		if d.limiter != nil {
			if waitErr := d.limiter.Wait(ctx, d.now().Sub(windowStart)); waitErr != nil {
				return fmt.Errorf("%w after window %d: %w", ErrInterrupted, windowIndex, waitErr)
			}
		}
	}

	return nil
}

// runWindow starts one goroutine per item and joins them all.
// Successful results are appended as they complete; the first error is returned.
func (d *Dispatcher[T]) runWindow(ctx context.Context, window []T, results *ResultSet[T], task Task[T]) error {
	var g errgroup.Group

	for _, item := range window {
		g.Go(func() error {
			out, err := task(ctx, item)
			if err != nil {
				return err
			}
			results.Append(out)
			return nil
		})
	}

	return g.Wait()
}

// CalculateWindows returns the window boundaries for totalItems items.
// Returns a slice of [start, end) index pairs that tile [0, totalItems).
func (d *Dispatcher[T]) CalculateWindows(totalItems int) [][2]int {
	totalWindows := d.calculateTotalWindows(totalItems)
	windows := make([][2]int, totalWindows)

	for i := range totalWindows {
		start := i * d.windowSize
		end := min(start+d.windowSize, totalItems)
		windows[i] = [2]int{start, end}
	}

	return windows
}

// calculateTotalWindows calculates ceil(totalItems / windowSize).
func (d *Dispatcher[T]) calculateTotalWindows(totalItems int) int {
	if totalItems <= 0 {
		return 0
	}
	windows := totalItems / d.windowSize
	if totalItems%d.windowSize > 0 {
		windows++
	}
	return windows
}

// report refreshes progress from the result set and notifies the reporter.
func (d *Dispatcher[T]) report(progress *Progress, results *ResultSet[T]) {
	d.refresh(progress, results)
	if d.reporter != nil {
		d.reporter.Report(progress.Snapshot())
	}
}

func (d *Dispatcher[T]) finish(progress *Progress, results *ResultSet[T]) {
	d.refresh(progress, results)
	d.logger.Debug().
		Int("processed", results.Len()).
		Bool("complete", progress.IsComplete()).
		Dur("elapsed", progress.ElapsedTime()).
		Msg("dispatch finished")
	if d.reporter != nil {
		d.reporter.Finish(progress.Snapshot())
	}
}

func (d *Dispatcher[T]) refresh(progress *Progress, results *ResultSet[T]) {
	summary := ""
	if last, ok := results.Last(); ok {
		summary = d.summarize(last)
	}
	progress.Update(results.Len(), summary)
}
