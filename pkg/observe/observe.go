// Package observe derives per-window usage deltas from the monotonic
// cumulative counter exposed by a workload's cgroup. It mirrors the
// Source/Snapshot split this codebase's host-level sampler lineage used for
// /proc/stat, but is pull-based: callers decide when a window ends and ask
// for the delta, rather than receiving a push on a ticker.
package observe

import (
	"errors"
	"fmt"

	"cgroupgov/pkg/kernel"
)

// Source returns the cumulative usage counter for a cgroup, in
// microseconds. The default Source reads cpu.stat through pkg/kernel;
// tests substitute a fake to drive specific counter sequences.
type Source interface {
	Usage() (int64, error)
}

// KernelSource reads the cumulative counter from a cgroup v2 directory.
type KernelSource struct {
	CgroupPath string
}

// Usage implements Source.
func (k KernelSource) Usage() (int64, error) {
	return kernel.ReadUsage(k.CgroupPath)
}

// RegressionEvent is passed to OnRegression whenever the cumulative counter
// is observed to go backwards. This is not an error: it is recovered
// locally by returning a zero delta, but the caller may want to know a
// regression happened rather than having it silently swallowed.
type RegressionEvent struct {
	Previous int64
	Current  int64
}

// ErrNotInitialized is returned by Measure when Init has not been called.
var ErrNotInitialized = errors.New("observe: not initialized")

// Observer maintains the last-seen cumulative counter for one workload and
// derives per-window deltas from it.
type Observer struct {
	source Source

	initialized bool
	lastUsage   int64

	// OnRegression, if set, is called whenever the counter is observed to
	// go backwards (a kernel reset or 64-bit wrap). Measure always returns
	// a 0 delta in that case regardless of whether this hook is set.
	OnRegression func(RegressionEvent)
}

// New constructs an Observer over the given Source.
func New(source Source) *Observer {
	return &Observer{source: source}
}

// Init reads the current cumulative counter and stores it as the baseline.
// It must be called exactly once before the first Measure.
func (o *Observer) Init() error {
	usage, err := o.source.Usage()
	if err != nil {
		return fmt.Errorf("observe: init: %w", err)
	}

	o.lastUsage = usage
	o.initialized = true

	return nil
}

// Measure reads the current cumulative counter, returns the delta since the
// last Init/Measure call, and updates the baseline. A counter regression
// (current < previous) is clamped to a zero delta rather than propagated as
// an error, per the observer's recovery contract; OnRegression is notified
// when set.
func (o *Observer) Measure() (int64, error) {
	if !o.initialized {
		return 0, ErrNotInitialized
	}

	current, err := o.source.Usage()
	if err != nil {
		return 0, fmt.Errorf("observe: measure: %w", err)
	}

	previous := o.lastUsage
	o.lastUsage = current

	if current < previous {
		if o.OnRegression != nil {
			o.OnRegression(RegressionEvent{Previous: previous, Current: current})
		}

		return 0, nil
	}

	return current - previous, nil
}
