package batch

import "sync"

// ResultSet is an append-only sequence of completed items shared between the
// dispatcher and whoever flushes it. All access goes through one mutex that
// is held only for a single append or a snapshot copy.
type ResultSet[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewResultSet creates an empty result set with room for capacity items.
func NewResultSet[T any](capacity int) *ResultSet[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &ResultSet[T]{items: make([]T, 0, capacity)}
}

// Append records one completed item.
func (r *ResultSet[T]) Append(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
}

// Snapshot returns a copy of the items appended so far.
func (r *ResultSet[T]) Snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// Len returns the number of items appended so far.
func (r *ResultSet[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Last returns the most recently appended item.
func (r *ResultSet[T]) Last() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if len(r.items) == 0 {
		return zero, false
	}
	return r.items[len(r.items)-1], true
}
