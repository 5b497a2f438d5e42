package batch

import (
	"sync"
	"time"
)

// percentMultiplier is used to convert a ratio to percentage (0-100).
const percentMultiplier = 100

// Progress tracks a dispatch run for progress reporting.
// It provides thread-safe access to progress metrics.
type Progress struct {
	// TotalItems is the total number of items to process.
	TotalItems int

	// ProcessedItems is the number of items whose task has completed.
	ProcessedItems int

	// TotalWindows is the total number of windows.
	TotalWindows int

	// ProcessedWindows is the number of windows joined so far.
	ProcessedWindows int

	// WindowSize is the configured window size.
	WindowSize int

	// LastProcessed summarises the most recently completed item.
	LastProcessed string

	// StartTime is when the run started.
	StartTime time.Time

	// LastUpdateTime is when progress was last updated.
	LastUpdateTime time.Time

	now func() time.Time

	// mu protects concurrent access to progress fields.
	mu sync.RWMutex
}

// newProgressAt creates a progress tracker whose clock starts at now().
func newProgressAt(totalItems, totalWindows, windowSize int, now func() time.Time) *Progress {
	start := now()
	return &Progress{
		TotalItems:     totalItems,
		TotalWindows:   totalWindows,
		WindowSize:     windowSize,
		StartTime:      start,
		LastUpdateTime: start,
		now:            now,
	}
}

// Update sets the cumulative processed count and the last item summary.
func (p *Progress) Update(processedItems int, lastProcessed string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ProcessedItems = processedItems
	p.LastProcessed = lastProcessed
	p.LastUpdateTime = p.now()
}

// CompleteWindow marks one more window as joined.
func (p *Progress) CompleteWindow() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ProcessedWindows++
	p.LastUpdateTime = p.now()
}

// PercentComplete returns the completion percentage (0-100).
func (p *Progress) PercentComplete() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.percentCompleteUnsafe()
}

// IsComplete returns true if all items have been processed.
func (p *Progress) IsComplete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.ProcessedItems >= p.TotalItems
}

// ElapsedTime returns the time elapsed since the run started.
func (p *Progress) ElapsedTime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.now().Sub(p.StartTime)
}

// EstimatedTimeRemaining estimates the remaining run time from the average
// time per processed item. Returns 0 if nothing has been processed yet.
func (p *Progress) EstimatedTimeRemaining() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.estimatedTimeRemainingUnsafe(p.now().Sub(p.StartTime))
}

// Snapshot returns a thread-safe copy of the current progress state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	elapsed := p.now().Sub(p.StartTime)
	return ProgressSnapshot{
		TotalItems:         p.TotalItems,
		ProcessedItems:     p.ProcessedItems,
		TotalWindows:       p.TotalWindows,
		ProcessedWindows:   p.ProcessedWindows,
		LastProcessed:      p.LastProcessed,
		PercentComplete:    p.percentCompleteUnsafe(),
		ElapsedTime:        elapsed,
		EstimatedRemaining: p.estimatedTimeRemainingUnsafe(elapsed),
	}
}

// ProgressSnapshot is an immutable snapshot of progress state.
type ProgressSnapshot struct {
	TotalItems       int
	ProcessedItems   int
	TotalWindows     int
	ProcessedWindows int
	LastProcessed    string
	PercentComplete  float64
	ElapsedTime      time.Duration

	// EstimatedRemaining is zero until the first item completes and once
	// every item has.
	EstimatedRemaining time.Duration
}

// percentCompleteUnsafe calculates percent complete without locking.
// Should only be called when already holding the lock.
func (p *Progress) percentCompleteUnsafe() float64 {
	if p.TotalItems == 0 {
		return percentMultiplier
	}
	return (float64(p.ProcessedItems) / float64(p.TotalItems)) * percentMultiplier
}

func (p *Progress) estimatedTimeRemainingUnsafe(elapsed time.Duration) time.Duration {
	if p.ProcessedItems == 0 || p.ProcessedItems >= p.TotalItems {
		return 0
	}
	avgTimePerItem := elapsed / time.Duration(p.ProcessedItems)
	return avgTimePerItem * time.Duration(p.TotalItems-p.ProcessedItems)
}
