// Package batch dispatches rate-limited concurrent work in fixed-size windows.
//
// The input is tiled into contiguous windows of at most WindowSize items. Each
// window runs one goroutine per item, is joined before the next one starts,
// and is followed by a pacing delay so the remote side sees no more than the
// configured rate. Key properties:
//   - Windows run strictly in index order; completion order inside a window is unspecified
//   - Results are appended to a shared ResultSet as each task finishes
//   - The first task error stops the run after its window is joined (fail-fast)
//   - Context cancellation prevents the next window from starting; in-flight tasks finish
//   - Progress is reported once per window boundary
//
// The ResultSet is the only state shared with other goroutines (the shutdown
// flush in particular). Its mutex guards single appends and snapshots, never a
// whole window.
package batch
