// Package scheduler decides what happens to every discovered resource and
// runs the work on a pluggable concurrency strategy.
//
// Handle is the single entry point. It consults the dedup index, validates
// the resource, reserves its path and hands it to the active Strategy:
//
//   - Synchronous runs each resource inline on the caller's goroutine.
//   - Spawn starts a goroutine per resource, bounded by a limit.
//   - Pool feeds a fixed set of workers through a bounded queue.
//
// Spawn and Pool apply caller-runs backpressure: when no goroutine or
// queue slot is free, the submitting goroutine processes the resource
// itself. Resources submitted from inside a worker therefore never wait
// for a slot held by their own ancestors.
//
// Failures of a single resource are logged and recorded; they never reach
// the caller of Handle.
package scheduler
