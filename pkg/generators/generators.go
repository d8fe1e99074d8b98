// Package generators produces synthetic, adversarial U_w observation
// sequences used to stress the policy and window packages: continuous
// overshoot, alternating overshoot/undershoot, zero usage, exact-budget
// boundaries, long accumulation-then-paydown, and rapid oscillation.
package generators

import (
	"fmt"

	"cgroupgov/pkg/policy"
)

// ContinuousOvershoot returns numWindows observations each equal to
// budgetUS * overshootFactor, testing unbounded debt accumulation.
func ContinuousOvershoot(budgetUS int64, overshootFactor float64, numWindows int) ([]int64, error) {
	if budgetUS <= 0 {
		return nil, fmt.Errorf("%w: budget_us=%d", policy.ErrInvalidInput, budgetUS)
	}

	if overshootFactor <= 1.0 {
		return nil, fmt.Errorf("%w: overshoot_factor must be > 1.0, got %v", policy.ErrInvalidInput, overshootFactor)
	}

	if numWindows <= 0 {
		return nil, fmt.Errorf("%w: num_windows must be > 0, got %d", policy.ErrInvalidInput, numWindows)
	}

	usage := int64(float64(budgetUS) * overshootFactor)

	out := make([]int64, numWindows)
	for i := range out {
		out[i] = usage
	}

	return out, nil
}

// AlternatingOvershootUndershoot returns numCycles (overshoot, undershoot)
// pairs, testing debt accumulation interleaved with paydown.
func AlternatingOvershootUndershoot(budgetUS int64, overshootFactor, undershootFactor float64, numCycles int) ([]int64, error) {
	if budgetUS <= 0 {
		return nil, fmt.Errorf("%w: budget_us=%d", policy.ErrInvalidInput, budgetUS)
	}

	if overshootFactor <= 1.0 {
		return nil, fmt.Errorf("%w: overshoot_factor must be > 1.0, got %v", policy.ErrInvalidInput, overshootFactor)
	}

	if undershootFactor <= 0.0 || undershootFactor >= 1.0 {
		return nil, fmt.Errorf("%w: undershoot_factor must be in (0, 1), got %v", policy.ErrInvalidInput, undershootFactor)
	}

	if numCycles <= 0 {
		return nil, fmt.Errorf("%w: num_cycles must be > 0, got %d", policy.ErrInvalidInput, numCycles)
	}

	overshoot := int64(float64(budgetUS) * overshootFactor)
	undershoot := int64(float64(budgetUS) * undershootFactor)

	out := make([]int64, 0, numCycles*2)
	for i := 0; i < numCycles; i++ {
		out = append(out, overshoot, undershoot)
	}

	return out, nil
}

// ZeroUsage returns numWindows zero observations, testing debt paydown and
// the transition back to Normal.
func ZeroUsage(numWindows int) ([]int64, error) {
	if numWindows <= 0 {
		return nil, fmt.Errorf("%w: num_windows must be > 0, got %d", policy.ErrInvalidInput, numWindows)
	}

	return make([]int64, numWindows), nil
}

// BoundaryConditions returns numWindows observations exactly equal to
// budgetUS, testing the exact-budget edge (invariant P4).
func BoundaryConditions(budgetUS int64, numWindows int) ([]int64, error) {
	if budgetUS <= 0 {
		return nil, fmt.Errorf("%w: budget_us=%d", policy.ErrInvalidInput, budgetUS)
	}

	if numWindows <= 0 {
		return nil, fmt.Errorf("%w: num_windows must be > 0, got %d", policy.ErrInvalidInput, numWindows)
	}

	out := make([]int64, numWindows)
	for i := range out {
		out[i] = budgetUS
	}

	return out, nil
}

// LongDebtAccumulation returns an accumulation phase (accumulationWindows
// windows at overshootFactor * budgetUS) followed by a paydown phase
// (paydownWindows windows at paydownFactor * budgetUS).
func LongDebtAccumulation(
	budgetUS int64,
	overshootFactor float64,
	accumulationWindows int,
	paydownFactor float64,
	paydownWindows int,
) ([]int64, error) {
	if budgetUS <= 0 {
		return nil, fmt.Errorf("%w: budget_us=%d", policy.ErrInvalidInput, budgetUS)
	}

	if overshootFactor <= 1.0 {
		return nil, fmt.Errorf("%w: overshoot_factor must be > 1.0, got %v", policy.ErrInvalidInput, overshootFactor)
	}

	if accumulationWindows <= 0 {
		return nil, fmt.Errorf("%w: accumulation_windows must be > 0, got %d", policy.ErrInvalidInput, accumulationWindows)
	}

	if paydownFactor <= 0.0 || paydownFactor >= 1.0 {
		return nil, fmt.Errorf("%w: paydown_factor must be in (0, 1), got %v", policy.ErrInvalidInput, paydownFactor)
	}

	if paydownWindows <= 0 {
		return nil, fmt.Errorf("%w: paydown_windows must be > 0, got %d", policy.ErrInvalidInput, paydownWindows)
	}

	accumulation := int64(float64(budgetUS) * overshootFactor)
	paydown := int64(float64(budgetUS) * paydownFactor)

	out := make([]int64, 0, accumulationWindows+paydownWindows)
	for i := 0; i < accumulationWindows; i++ {
		out = append(out, accumulation)
	}
	for i := 0; i < paydownWindows; i++ {
		out = append(out, paydown)
	}

	return out, nil
}

// Oscillation returns numOscillations (high, low) pairs, rapidly
// alternating between heavy overshoot and near-zero usage to stress-test
// state transitions.
func Oscillation(budgetUS int64, highFactor, lowFactor float64, numOscillations int) ([]int64, error) {
	if budgetUS <= 0 {
		return nil, fmt.Errorf("%w: budget_us=%d", policy.ErrInvalidInput, budgetUS)
	}

	if highFactor <= 1.0 {
		return nil, fmt.Errorf("%w: high_factor must be > 1.0, got %v", policy.ErrInvalidInput, highFactor)
	}

	if lowFactor < 0.0 || lowFactor >= 1.0 {
		return nil, fmt.Errorf("%w: low_factor must be in [0, 1), got %v", policy.ErrInvalidInput, lowFactor)
	}

	if numOscillations <= 0 {
		return nil, fmt.Errorf("%w: num_oscillations must be > 0, got %d", policy.ErrInvalidInput, numOscillations)
	}

	high := int64(float64(budgetUS) * highFactor)
	low := int64(float64(budgetUS) * lowFactor)

	out := make([]int64, 0, numOscillations*2)
	for i := 0; i < numOscillations; i++ {
		out = append(out, high, low)
	}

	return out, nil
}
