// Package metrics holds process-wide throughput and error counters, updated
// with atomic increments and read via snapshot.
package metrics

import "sync/atomic"

// Registry is one process-wide set of pipeline counters. Inject a single
// instance instead of reaching for package-level variables.
type Registry struct {
	runsStarted    atomic.Int64
	runsSucceeded  atomic.Int64
	runsFailed     atomic.Int64
	runsRejected   atomic.Int64
	dispatchSent   atomic.Int64
	dispatchFailed atomic.Int64
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	RunsStarted    int64
	RunsSucceeded  int64
	RunsFailed     int64
	RunsRejected   int64
	DispatchSent   int64
	DispatchFailed int64
}

// NewRegistry creates a zeroed Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) RunStarted()   { r.runsStarted.Add(1) }
func (r *Registry) RunSucceeded() { r.runsSucceeded.Add(1) }
func (r *Registry) RunFailed()    { r.runsFailed.Add(1) }
func (r *Registry) RunRejected()  { r.runsRejected.Add(1) }

// DispatchOutcome records one per-target send result.
func (r *Registry) DispatchOutcome(sent bool) {
	if sent {
		r.dispatchSent.Add(1)
		return
	}
	r.dispatchFailed.Add(1)
}

// Snapshot returns the current counter values.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		RunsStarted:    r.runsStarted.Load(),
		RunsSucceeded:  r.runsSucceeded.Load(),
		RunsFailed:     r.runsFailed.Load(),
		RunsRejected:   r.runsRejected.Load(),
		DispatchSent:   r.dispatchSent.Load(),
		DispatchFailed: r.dispatchFailed.Load(),
	}
}

// Reset zeroes every counter and returns the values held before the reset.
func (r *Registry) Reset() Snapshot {
	return Snapshot{
		RunsStarted:    r.runsStarted.Swap(0),
		RunsSucceeded:  r.runsSucceeded.Swap(0),
		RunsFailed:     r.runsFailed.Swap(0),
		RunsRejected:   r.runsRejected.Swap(0),
		DispatchSent:   r.dispatchSent.Swap(0),
		DispatchFailed: r.dispatchFailed.Swap(0),
	}
}
