// Package window sequences policy evaluation over an index counter and
// owns the per-workload decision history. It is pure: no wall clock, no I/O.
package window

import (
	"fmt"

	"cgroupgov/pkg/policy"
)

// Record is the slim replay row for one window: the state the window began
// in, the usage observed for it, and the quota enforced as a result.
type Record struct {
	WindowIndex int64
	StateAtStart policy.State
	UwUS         int64
	TwUS         int64
}

// Orchestrator sequences policy.Evaluate over a monotonic window index. B
// and W are fixed for the life of the orchestrator (invariant T1).
type Orchestrator struct {
	budgetUS int64
	windowUS int64

	windowIndex int64
	state       policy.State
	history     []Record
}

// New constructs an Orchestrator with the declared per-window budget and
// window width, starting from the initial policy state.
func New(budgetUS, windowUS int64) (*Orchestrator, error) {
	if budgetUS <= 0 {
		return nil, fmt.Errorf("%w: budget_us=%d", policy.ErrInvalidInput, budgetUS)
	}

	if windowUS <= 0 {
		return nil, fmt.Errorf("%w: window_us=%d", policy.ErrInvalidInput, windowUS)
	}

	return &Orchestrator{
		budgetUS: budgetUS,
		windowUS: windowUS,
		state:    policy.Initial(),
	}, nil
}

// Advance evaluates the policy exactly once for the observed usage of the
// just-completed window (invariant T2), appends the resulting Record to the
// history (invariant G4: no policy effect outside Advance), and returns the
// new state, decision, and full audit record.
func (o *Orchestrator) Advance(usageUS int64) (policy.State, policy.Decision, policy.Record, error) {
	stateAtStart := o.state

	nextState, decision, record, err := policy.Evaluate(stateAtStart, usageUS, o.budgetUS, o.windowUS)
	if err != nil {
		return policy.State{}, policy.Decision{}, policy.Record{}, err
	}

	index := o.windowIndex
	record.WindowIndex = &index

	o.history = append(o.history, Record{
		WindowIndex:  index,
		StateAtStart: stateAtStart,
		UwUS:         usageUS,
		TwUS:         decision.TwUS,
	})

	o.state = nextState
	o.windowIndex++

	return nextState, decision, record, nil
}

// Index returns the number of windows processed so far (the index the next
// Advance call will be stamped with).
func (o *Orchestrator) Index() int64 { return o.windowIndex }

// State returns the current policy state without evaluating anything.
func (o *Orchestrator) State() policy.State { return o.state }

// BudgetUS returns the fixed per-window budget.
func (o *Orchestrator) BudgetUS() int64 { return o.budgetUS }

// WindowUS returns the fixed window width.
func (o *Orchestrator) WindowUS() int64 { return o.windowUS }

// History returns a defensive copy of the window history so callers cannot
// mutate the orchestrator's internal state.
func (o *Orchestrator) History() []Record {
	out := make([]Record, len(o.history))
	copy(out, o.history)

	return out
}
