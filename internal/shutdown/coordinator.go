// Package shutdown flushes partial results and exits when the process is interrupted.
//
// A Coordinator is installed once per run, before dispatch begins. On SIGINT
// or SIGTERM it cancels the run context so no further window starts, flushes
// whatever has been accumulated so far and terminates the process. The same
// flush is used by the normal completion path; whichever path gets there first
// writes the output, the other becomes a no-op.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog"
)

// Exit codes used by the interrupt path.
const (
	ExitFlushed     = 0
	ExitFlushFailed = 1
)

// ErrAlreadyInstalled is returned when Install is called more than once.
var ErrAlreadyInstalled = errors.New("shutdown handler already installed")

// FlushFunc writes the current results to the output destination.
type FlushFunc func() error

// Coordinator owns the interrupt handler for one run.
type Coordinator struct {
	flush  FlushFunc
	logger zerolog.Logger

	notify func(c chan<- os.Signal, sig ...os.Signal)
	stop   func(c chan<- os.Signal)
	exit   func(code int)

	installMu sync.Mutex
	installed bool
	signals   chan os.Signal
	done      chan struct{}
	stopOnce  sync.Once

	interrupted atomic.Bool

	flushMu  sync.Mutex
	flushed  bool
	flushErr error
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithExit replaces os.Exit.
func WithExit(exit func(code int)) Option {
	return func(c *Coordinator) { c.exit = exit }
}

// WithNotify replaces signal.Notify and signal.Stop.
func WithNotify(notify func(c chan<- os.Signal, sig ...os.Signal), stop func(c chan<- os.Signal)) Option {
	return func(c *Coordinator) {
		c.notify = notify
		c.stop = stop
	}
}

// New creates a coordinator that calls flush on interrupt.
func New(flush FlushFunc, opts ...Option) *Coordinator {
	c := &Coordinator{
		flush:  flush,
		logger: zerolog.Nop(),
		notify: signal.Notify,
		stop:   signal.Stop,
		exit:   os.Exit,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Install registers the interrupt handler and returns a context that is
// cancelled when an interrupt arrives. It may be called only once.
func (c *Coordinator) Install(ctx context.Context) (context.Context, error) {
	c.installMu.Lock()
	defer c.installMu.Unlock()

	if c.installed {
		return nil, ErrAlreadyInstalled
	}
	c.installed = true

	runCtx, cancel := context.WithCancel(ctx)

	c.signals = make(chan os.Signal, 1)
	c.notify(c.signals, os.Interrupt, syscall.SIGTERM)

	go c.wait(cancel)

	return runCtx, nil
}

func (c *Coordinator) wait(cancel context.CancelFunc) {
	defer cancel()

	select {
	case sig := <-c.signals:
		c.logger.Warn().Str("signal", sig.String()).Msg("interrupt received, flushing partial results")
		c.interrupted.Store(true)
		cancel()

		if err := c.Flush(); err != nil {
			c.logger.Error().Err(err).Msg("flush after interrupt failed")
			c.exit(ExitFlushFailed)
			return
		}
		c.exit(ExitFlushed)
	case <-c.done:
	}
}

// Flush writes the results once. Later calls return the first call's error
// without writing again. Concurrent callers wait for the flush in progress.
func (c *Coordinator) Flush() error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	if c.flushed {
		return c.flushErr
	}
	c.flushed = true
	if c.flush != nil {
		c.flushErr = c.flush()
	}
	return c.flushErr
}

// Interrupted reports whether a signal arrived. It is set before the run
// context is cancelled, so a run that stops on that cancellation sees true.
func (c *Coordinator) Interrupted() bool {
	return c.interrupted.Load()
}

// Flushed reports whether a flush has happened.
func (c *Coordinator) Flushed() bool {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()
	return c.flushed
}

// Stop unregisters the handler. Safe to call more than once, and before Install.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.installMu.Lock()
		defer c.installMu.Unlock()

		if c.signals != nil {
			c.stop(c.signals)
		}
		close(c.done)
	})
}
