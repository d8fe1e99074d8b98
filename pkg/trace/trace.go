// Package trace emits one structured record per policy decision. The sink
// is append-only: one record per decision, no batching, no reordering, and
// the record is always emitted strictly after the new state has been
// persisted but before the quota write is issued (§5), so a trace line is
// never missing for a quota that did make it to disk.
package trace

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cgroupgov/pkg/policy"
	"cgroupgov/pkg/workload"
)

// Emitter writes DecisionRecords as structured log lines through zap. Field
// names match §6: window_index, state_before, debt_before, usage_us,
// budget_us, enforced_quota, state_after, debt_after, policy_rule_id,
// violated_invariant, timestamp.
type Emitter struct {
	logger *zap.Logger
	now    func() time.Time
}

// New constructs an Emitter writing through logger.
func New(logger *zap.Logger) *Emitter {
	return &Emitter{logger: logger, now: time.Now}
}

// stateField renders a policy.State as the nested {mode, debt_us} object
// the trace format requires.
type stateField struct {
	state policy.State
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s stateField) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("mode", s.state.Mode().String())
	enc.AddInt64("debt_us", s.state.DebtUS())

	return nil
}

// Emit writes one decision record for the given workload. window_index is
// stamped by the caller (the orchestrator), never computed here, and is
// omitted when the record carries none; timestamp is a non-semantic
// wall-clock annotation.
func (e *Emitter) Emit(id workload.ID, record policy.Record) {
	fields := []zap.Field{
		zap.String("workload_id", id.String()),
		zap.Object("state_before", stateField{record.StateBefore}),
		zap.Int64("debt_before", record.DebtBeforeUS),
		zap.Int64("usage_us", record.UsageUS),
		zap.Int64("budget_us", record.BudgetUS),
		zap.Int64("enforced_quota", record.EnforcedQuotaUS),
		zap.Object("state_after", stateField{record.StateAfter}),
		zap.Int64("debt_after", record.DebtAfterUS),
		zap.String("policy_rule_id", string(record.PolicyRuleID)),
		zap.Time("timestamp", e.now()),
	}

	if record.WindowIndex != nil {
		fields = append(fields, zap.Int64("window_index", *record.WindowIndex))
	}

	if record.ViolatedInvariant != policy.InvariantNone {
		fields = append(fields, zap.String("violated_invariant", string(record.ViolatedInvariant)))
	}

	e.logger.Info("decision", fields...)
}
