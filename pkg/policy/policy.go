// Package policy implements the pure CPU budget state machine.
//
// Evaluate maps (state, usage, budget) to (state', decision, record) with no
// clock, no I/O, and no randomness. Every exported type here is a value type;
// nothing in this package blocks or mutates anything outside its own return
// values.
package policy

import (
	"errors"
	"fmt"
)

// Mode is the tagged variant of a policy state.
type Mode int

const (
	// Normal means no outstanding debt; the full budget is granted next window.
	Normal Mode = iota
	// Throttled means debt remains; the next window is fully denied.
	Throttled
)

// String renders the mode the way traces expect it: upper-case, stable.
func (m Mode) String() string {
	switch m {
	case Normal:
		return "NORMAL"
	case Throttled:
		return "THROTTLED"
	default:
		return "UNKNOWN"
	}
}

// Rule identifies which branch of Evaluate fired, per §4.1.
type Rule string

const (
	RuleUnderBudget    Rule = "RULE_N1_UNDER_BUDGET"
	RuleOverBudget     Rule = "RULE_N2_OVER_BUDGET"
	RuleDebtRecovered  Rule = "RULE_T1_DEBT_RECOVERED"
	RuleStillInDebt    Rule = "RULE_T2_STILL_IN_DEBT"
)

// Invariant tags an observability-only annotation on a DecisionRecord; it
// never feeds back into the policy.
type Invariant string

const (
	InvariantNone            Invariant = ""
	InvariantUsageExceeds     Invariant = "INV_USAGE_EXCEEDS_BUDGET"
	InvariantDebtRemaining    Invariant = "INV_DEBT_REMAINING"
)

// ErrInvalidInput is returned when a precondition on Evaluate's arguments is
// violated. It is the only failure mode of the policy function.
var ErrInvalidInput = errors.New("policy: invalid input")

// State is a policy state value. It carries {mode, debt_us} and can only be
// constructed through NewState or Initial, which enforce P1 (debt_us >= 0)
// and P5 (mode == Normal => debt_us == 0). A State with Normal mode and
// positive debt is unrepresentable.
type State struct {
	mode   Mode
	debtUS int64
}

// Initial returns the starting state: Normal, zero debt.
func Initial() State {
	return State{mode: Normal, debtUS: 0}
}

// NewState is the smart constructor enforcing P1 and P5. Throttled states
// with zero debt are normalized to Normal, since mode is in principle
// derivable from debt but the pair is kept for trace legibility.
func NewState(mode Mode, debtUS int64) (State, error) {
	if debtUS < 0 {
		return State{}, fmt.Errorf("%w: negative debt_us=%d", ErrInvalidInput, debtUS)
	}

	if mode == Normal && debtUS != 0 {
		return State{}, fmt.Errorf("%w: normal mode requires zero debt, got debt_us=%d", ErrInvalidInput, debtUS)
	}

	if mode == Throttled && debtUS == 0 {
		mode = Normal
	}

	return State{mode: mode, debtUS: debtUS}, nil
}

// Mode returns the state's mode.
func (s State) Mode() Mode { return s.mode }

// DebtUS returns the state's accumulated debt in microseconds.
func (s State) DebtUS() int64 { return s.debtUS }

// Decision is the output of Evaluate: the quota enforced for the next
// window. Invariant P2: 0 <= T_w_us <= B.
type Decision struct {
	TwUS int64
}

// Record is the full audit row for one window.
type Record struct {
	WindowIndex       *int64
	StateBefore       State
	DebtBeforeUS      int64
	UsageUS           int64
	BudgetUS          int64
	EnforcedQuotaUS   int64
	StateAfter        State
	DebtAfterUS       int64
	PolicyRuleID      Rule
	ViolatedInvariant Invariant
}

// Evaluate is the pure policy function of §4.1. W is accepted for
// observability only: it is not stored in the record and never influences
// the computation.
func Evaluate(state State, usageUS, budgetUS, windowUS int64) (State, Decision, Record, error) {
	if usageUS < 0 {
		return State{}, Decision{}, Record{}, fmt.Errorf("%w: usage_us=%d", ErrInvalidInput, usageUS)
	}

	if budgetUS <= 0 {
		return State{}, Decision{}, Record{}, fmt.Errorf("%w: budget_us=%d", ErrInvalidInput, budgetUS)
	}

	_ = windowUS // observability only; never consulted by the branches below

	var (
		newMode   Mode
		newDebt   int64
		enforced  int64
		rule      Rule
		invariant Invariant
	)

	switch state.mode {
	case Normal:
		excess := usageUS - budgetUS
		if excess <= 0 {
			newMode, newDebt, enforced = Normal, 0, budgetUS
			rule, invariant = RuleUnderBudget, InvariantNone
		} else {
			newMode, newDebt, enforced = Throttled, excess, 0
			rule, invariant = RuleOverBudget, InvariantUsageExceeds
		}
	case Throttled:
		repayment := budgetUS - usageUS
		remaining := state.debtUS - repayment
		if remaining <= 0 {
			newMode, newDebt, enforced = Normal, 0, budgetUS
			rule, invariant = RuleDebtRecovered, InvariantNone
		} else {
			newMode, newDebt, enforced = Throttled, remaining, 0
			rule, invariant = RuleStillInDebt, InvariantDebtRemaining
		}
	default:
		return State{}, Decision{}, Record{}, fmt.Errorf("%w: unrecognized mode %v", ErrInvalidInput, state.mode)
	}

	nextState, err := NewState(newMode, newDebt)
	if err != nil {
		return State{}, Decision{}, Record{}, err
	}

	decision := Decision{TwUS: enforced}

	record := Record{
		WindowIndex:       nil,
		StateBefore:       state,
		DebtBeforeUS:      state.debtUS,
		UsageUS:           usageUS,
		BudgetUS:          budgetUS,
		EnforcedQuotaUS:   enforced,
		StateAfter:        nextState,
		DebtAfterUS:       newDebt,
		PolicyRuleID:      rule,
		ViolatedInvariant: invariant,
	}

	return nextState, decision, record, nil
}
