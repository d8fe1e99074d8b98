// Package replay proves the window orchestrator is deterministic (G1) and
// reproducible offline (G2): replaying the same declared budget, window
// size, and recorded observation sequence must always produce the same
// history, with no wall-clock time, no async events, and no scheduler
// involved.
package replay

import (
	"fmt"
	"reflect"

	"cgroupgov/pkg/policy"
	"cgroupgov/pkg/window"
)

// Input is everything needed to reproduce a run of policy decisions.
type Input struct {
	BudgetUS     int64
	WindowUS     int64
	Observations []int64
}

// Validate checks Input's preconditions without running a replay.
func (in Input) Validate() error {
	if in.BudgetUS <= 0 {
		return fmt.Errorf("%w: budget_us=%d", policy.ErrInvalidInput, in.BudgetUS)
	}

	if in.WindowUS <= 0 {
		return fmt.Errorf("%w: window_us=%d", policy.ErrInvalidInput, in.WindowUS)
	}

	if len(in.Observations) == 0 {
		return fmt.Errorf("%w: empty observation sequence", policy.ErrInvalidInput)
	}

	for i, usage := range in.Observations {
		if usage < 0 {
			return fmt.Errorf("%w: observation at index %d is negative: %d", policy.ErrInvalidInput, i, usage)
		}
	}

	return nil
}

// Output is the complete decision history produced by a replay.
type Output struct {
	History []window.Record
}

// Replay runs the window orchestrator once over the recorded observation
// sequence and returns its full history. It performs no I/O and consults no
// clock; the only inputs that affect its output are the ones in in.
func Replay(in Input) (Output, error) {
	if err := in.Validate(); err != nil {
		return Output{}, err
	}

	orchestrator, err := window.New(in.BudgetUS, in.WindowUS)
	if err != nil {
		return Output{}, err
	}

	for _, usage := range in.Observations {
		if _, _, _, err := orchestrator.Advance(usage); err != nil {
			return Output{}, err
		}
	}

	return Output{History: orchestrator.History()}, nil
}

// VerifyDeterminism runs Replay numRuns times over the same input and
// reports whether every run produced an identical history (G1). It requires
// at least two runs to be a meaningful check.
func VerifyDeterminism(in Input, numRuns int) (bool, error) {
	if numRuns < 2 {
		return false, fmt.Errorf("%w: need at least 2 runs to verify determinism, got %d", policy.ErrInvalidInput, numRuns)
	}

	first, err := Replay(in)
	if err != nil {
		return false, err
	}

	for i := 1; i < numRuns; i++ {
		next, err := Replay(in)
		if err != nil {
			return false, err
		}

		if !historiesEqual(first.History, next.History) {
			return false, nil
		}
	}

	return true, nil
}

func historiesEqual(a, b []window.Record) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i].WindowIndex != b[i].WindowIndex ||
			a[i].UwUS != b[i].UwUS ||
			a[i].TwUS != b[i].TwUS ||
			!reflect.DeepEqual(a[i].StateAtStart, b[i].StateAtStart) {
			return false
		}
	}

	return true
}
