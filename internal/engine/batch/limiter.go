package batch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultRate is the provider cap in operations per second.
const DefaultRate = 10

// ErrInvalidRate is returned for a non-positive rate.
var ErrInvalidRate = errors.New("rate must be at least 1 operation per second")

// Limiter paces windows so that at most Rate operations start per second.
//
// It makes one decision per window, not per call: after a window of
// windowSize concurrent operations, the next window may start once
// windowSize/Rate seconds have passed since the previous one started. This
// assumes a window's calls return well inside that interval. It is an
// approximation, not a hard real-time bound; a slow window simply gets no
// extra delay.
type Limiter struct {
	rate     int
	interval time.Duration

	// sleep blocks for d or until ctx ends. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLimiter creates a limiter for rate operations per second with windows
// of windowSize operations.
func NewLimiter(rate, windowSize int) (*Limiter, error) {
	if rate < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRate, rate)
	}
	if windowSize < MinWindowSize || windowSize > MaxWindowSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindowSize, windowSize)
	}

	return &Limiter{
		rate:     rate,
		interval: time.Second * time.Duration(windowSize) / time.Duration(rate),
		sleep:    sleepContext,
	}, nil
}

// Rate returns the configured operations per second.
func (l *Limiter) Rate() int {
	return l.rate
}

// Interval returns the minimum spacing between window starts.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Delay returns how long to wait before the next window, given the time
// elapsed since the current window started. It is never negative.
func (l *Limiter) Delay(elapsed time.Duration) time.Duration {
	remaining := l.interval - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Wait blocks for Delay(elapsed). It returns ctx.Err() if ctx ends first.
func (l *Limiter) Wait(ctx context.Context, elapsed time.Duration) error {
	d := l.Delay(elapsed)
	if d == 0 {
		return ctx.Err()
	}
	return l.sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
