package store

import (
	"testing"

	"cgroupgov/pkg/policy"
	"cgroupgov/pkg/workload"
)

func mustID(t *testing.T, name string) workload.ID {
	t.Helper()

	id, err := workload.New(name)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return id
}

func TestGetStateAutoInitializes(t *testing.T) {
	t.Parallel()

	s := New()
	id := mustID(t, "web")

	state := s.GetState(id)
	if state.Mode() != policy.Normal || state.DebtUS() != 0 {
		t.Fatalf("expected auto-initialized Normal/0, got %v/%d", state.Mode(), state.DebtUS())
	}

	if rec := s.GetLastRecord(id); rec != nil {
		t.Fatalf("expected nil last record, got %+v", rec)
	}
}

func TestSetDecisionPersistsStateAndRecord(t *testing.T) {
	t.Parallel()

	s := New()
	id := mustID(t, "web")

	throttled, err := policy.NewState(policy.Throttled, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	record := policy.Record{PolicyRuleID: policy.RuleOverBudget}
	s.SetDecision(id, throttled, record)

	if got := s.GetState(id); got != throttled {
		t.Fatalf("expected persisted state %+v, got %+v", throttled, got)
	}

	lastRecord := s.GetLastRecord(id)
	if lastRecord == nil || lastRecord.PolicyRuleID != policy.RuleOverBudget {
		t.Fatalf("expected persisted record, got %+v", lastRecord)
	}
}

func TestIsolationBetweenWorkloads(t *testing.T) {
	t.Parallel()

	s := New()
	a := mustID(t, "a")
	b := mustID(t, "b")

	throttledA, _ := policy.NewState(policy.Throttled, 999)
	s.SetDecision(a, throttledA, policy.Record{})

	bState := s.GetState(b)
	if bState.Mode() != policy.Normal || bState.DebtUS() != 0 {
		t.Fatalf("workload b was affected by workload a's update: %+v", bState)
	}
}

func TestResetReinitializes(t *testing.T) {
	t.Parallel()

	s := New()
	id := mustID(t, "web")

	throttled, _ := policy.NewState(policy.Throttled, 100)
	s.SetDecision(id, throttled, policy.Record{})
	s.Reset(id)

	if got := s.GetState(id); got.Mode() != policy.Normal || got.DebtUS() != 0 {
		t.Fatalf("expected reset to Normal/0, got %+v", got)
	}

	if rec := s.GetLastRecord(id); rec != nil {
		t.Fatalf("expected last record cleared on reset, got %+v", rec)
	}
}
