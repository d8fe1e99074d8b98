package generators

import (
	"testing"

	"cgroupgov/pkg/replay"
)

func TestContinuousOvershoot(t *testing.T) {
	t.Parallel()

	seq, err := ContinuousOvershoot(100_000, 2.0, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(seq) != 5 {
		t.Fatalf("expected 5 observations, got %d", len(seq))
	}

	for _, u := range seq {
		if u != 200_000 {
			t.Fatalf("expected every observation to be 200000, got %d", u)
		}
	}

	if _, err := ContinuousOvershoot(100_000, 0.5, 5); err == nil {
		t.Fatalf("expected rejection of overshoot_factor <= 1.0")
	}
}

func TestAlternatingOvershootUndershoot(t *testing.T) {
	t.Parallel()

	seq, err := AlternatingOvershootUndershoot(100_000, 2.0, 0.5, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(seq) != 6 {
		t.Fatalf("expected 6 observations (3 cycles), got %d", len(seq))
	}

	for i := 0; i < len(seq); i += 2 {
		if seq[i] != 200_000 {
			t.Fatalf("expected overshoot slot to be 200000, got %d", seq[i])
		}
		if seq[i+1] != 50_000 {
			t.Fatalf("expected undershoot slot to be 50000, got %d", seq[i+1])
		}
	}
}

func TestZeroUsage(t *testing.T) {
	t.Parallel()

	seq, err := ZeroUsage(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, u := range seq {
		if u != 0 {
			t.Fatalf("expected all zeros, got %d", u)
		}
	}
}

func TestBoundaryConditions(t *testing.T) {
	t.Parallel()

	seq, err := BoundaryConditions(100_000, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, u := range seq {
		if u != 100_000 {
			t.Fatalf("expected all observations to equal budget, got %d", u)
		}
	}
}

func TestLongDebtAccumulation(t *testing.T) {
	t.Parallel()

	seq, err := LongDebtAccumulation(100_000, 1.5, 10, 0.5, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(seq) != 30 {
		t.Fatalf("expected 30 observations, got %d", len(seq))
	}

	for i := 0; i < 10; i++ {
		if seq[i] != 150_000 {
			t.Fatalf("expected accumulation phase value 150000 at %d, got %d", i, seq[i])
		}
	}

	for i := 10; i < 30; i++ {
		if seq[i] != 50_000 {
			t.Fatalf("expected paydown phase value 50000 at %d, got %d", i, seq[i])
		}
	}
}

func TestOscillation(t *testing.T) {
	t.Parallel()

	seq, err := Oscillation(100_000, 3.0, 0.1, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(seq) != 8 {
		t.Fatalf("expected 8 observations, got %d", len(seq))
	}

	if seq[0] != 300_000 || seq[1] != 10_000 {
		t.Fatalf("unexpected oscillation values: %v", seq[:2])
	}
}

// TestGeneratedSequencesReplayDeterministically feeds every generator's
// output through the replay harness to confirm none of them trip the
// policy's own input validation and that replay stays deterministic on
// adversarial sequences, not just gentle ones.
func TestGeneratedSequencesReplayDeterministically(t *testing.T) {
	t.Parallel()

	budget := int64(100_000)
	window := int64(1_000_000)

	build := func(name string, seq []int64, err error) {
		t.Helper()

		if err != nil {
			t.Fatalf("%s: unexpected generator error: %v", name, err)
		}

		ok, err := replay.VerifyDeterminism(replay.Input{
			BudgetUS:     budget,
			WindowUS:     window,
			Observations: seq,
		}, 3)
		if err != nil {
			t.Fatalf("%s: unexpected replay error: %v", name, err)
		}

		if !ok {
			t.Fatalf("%s: expected deterministic replay", name)
		}
	}

	continuous, err := ContinuousOvershoot(budget, 3.0, 50)
	build("continuous overshoot", continuous, err)

	alternating, err := AlternatingOvershootUndershoot(budget, 2.0, 0.3, 25)
	build("alternating overshoot/undershoot", alternating, err)

	zero, err := ZeroUsage(20)
	build("zero usage", zero, err)

	boundary, err := BoundaryConditions(budget, 20)
	build("boundary conditions", boundary, err)

	longAccum, err := LongDebtAccumulation(budget, 1.5, 100, 0.5, 100)
	build("long debt accumulation", longAccum, err)

	oscillation, err := Oscillation(budget, 4.0, 0.05, 30)
	build("oscillation", oscillation, err)
}
