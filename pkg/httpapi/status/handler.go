// Package status renders the current policy state of every registered
// workload as JSON, for operators and liveness probes.
package status

import (
	"encoding/json"
	"net/http"

	"cgroupgov/pkg/policy"
	"cgroupgov/pkg/workload"
)

// Controller exposes the status surface the handler needs: the set of
// registered workloads and each one's current state and last decision.
type Controller interface {
	Workloads() []workload.ID
	Status(id workload.ID) (policy.State, *policy.Record, bool)
}

// WorkloadSnapshot is one workload's row in the status response.
type WorkloadSnapshot struct {
	WorkloadID  string `json:"workload_id"`
	Mode        string `json:"mode"`
	DebtUS      int64  `json:"debt_us"`
	LastRuleID  string `json:"last_rule_id,omitempty"`
	LastUsageUS *int64 `json:"last_usage_us,omitempty"`
	LastQuotaUS *int64 `json:"last_quota_us,omitempty"`
	WindowIndex *int64 `json:"window_index,omitempty"`
}

// Snapshot is the full status response: one row per registered workload.
type Snapshot struct {
	Workloads []WorkloadSnapshot `json:"workloads"`
}

// Handler renders every registered workload's status as JSON.
type Handler struct {
	controller Controller
}

// NewHandler constructs a Handler backed by controller.
func NewHandler(controller Controller) *Handler {
	return &Handler{controller: controller}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(writer http.ResponseWriter, _ *http.Request) {
	if h == nil || h.controller == nil {
		http.Error(writer, "orchestrator unavailable", http.StatusServiceUnavailable)

		return
	}

	ids := h.controller.Workloads()
	snapshot := Snapshot{Workloads: make([]WorkloadSnapshot, 0, len(ids))}

	for _, id := range ids {
		state, record, ok := h.controller.Status(id)
		if !ok {
			continue
		}

		row := WorkloadSnapshot{
			WorkloadID: id.String(),
			Mode:       state.Mode().String(),
			DebtUS:     state.DebtUS(),
		}

		if record != nil {
			row.LastRuleID = string(record.PolicyRuleID)
			usage := record.UsageUS
			row.LastUsageUS = &usage
			quota := record.EnforcedQuotaUS
			row.LastQuotaUS = &quota
			row.WindowIndex = record.WindowIndex
		}

		snapshot.Workloads = append(snapshot.Workloads, row)
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		http.Error(writer, "marshal status", http.StatusInternalServerError)

		return
	}

	writer.Header().Set("Content-Type", "application/json")
	_, _ = writer.Write(payload)
}
